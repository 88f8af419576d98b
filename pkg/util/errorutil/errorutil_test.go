package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestFromResponse(t *testing.T) {
	cases := []struct {
		status int
		code   string
		want   string
	}{
		{http.StatusConflict, "", CodeConflictStale},
		{http.StatusNotFound, "", CodeNotFound},
		{http.StatusBadRequest, "", CodeValidationFailed},
		{http.StatusTeapot, "", CodeInternal},
		{http.StatusUnprocessableEntity, CodeDifficultyRequired, CodeDifficultyRequired},
	}
	for _, tc := range cases {
		err := FromResponse(tc.status, tc.code, "", nil)
		require.Equal(t, tc.want, err.Code, tc.status)
		require.Equal(t, http.StatusText(tc.status), err.Message)
	}
}

func TestRecoverable(t *testing.T) {
	require.True(t, ToDomainError(NewConflictStale(nil)).Recoverable())
	require.True(t, ToDomainError(NewNetworkFailure(errors.New("reset"))).Recoverable())
	require.False(t, ToDomainError(NewNotFound("item", nil)).Recoverable())
	require.False(t, ToDomainError(NewForbidden("no")).Recoverable())
	require.False(t, ToDomainError(NewUnauthorized("expired")).Recoverable())
	require.True(t, FromResponse(http.StatusInternalServerError, "", "", nil).Recoverable())
	require.True(t, ToDomainError(errors.New("eof")).Recoverable())
}

func TestToDomainError(t *testing.T) {
	require.Nil(t, ToDomainError(nil))
	require.Equal(t, CodeNotFound, ToDomainError(fmt.Errorf("load: %w", pgx.ErrNoRows)).Code)
	require.Equal(t, CodeInternal, ToDomainError(errors.New("boom")).Code)

	wrapped := fmt.Errorf("submit: %w", NewTransitionRejected("nope", nil))
	require.True(t, Is(wrapped, CodeTransitionRejected))
	require.False(t, Is(nil, CodeTransitionRejected))
	require.Equal(t, "", Code(errors.New("plain")))
}
