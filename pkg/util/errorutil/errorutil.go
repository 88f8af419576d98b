package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes shared by the engine, the API server and the API client.
const (
	CodeTransitionRejected = "TRANSITION_REJECTED"
	CodeDifficultyRequired = "DIFFICULTY_REQUIRED"
	CodeConflictStale      = "CONFLICT_STALE"
	CodeNetworkFailure     = "NETWORK_FAILURE"
	CodeNotFound           = "NOT_FOUND"
	CodeForbidden          = "FORBIDDEN"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeInternal           = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Recoverable reports whether the caller may retry or re-decide within the
// current session. Only session-terminal codes are unrecoverable; server
// faults such as INTERNAL_ERROR are treated as transient.
func (e *DomainError) Recoverable() bool {
	switch e.Code {
	case CodeNotFound, CodeForbidden, CodeUnauthorized:
		return false
	}
	return true
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewTransitionRejected reports an illegal state/role combination.
func NewTransitionRejected(message string, details map[string]any) error {
	return NewDomainError(CodeTransitionRejected, message, http.StatusUnprocessableEntity, details)
}

// NewDifficultyRequired reports a transition blocked on a missing difficulty rating.
func NewDifficultyRequired(details map[string]any) error {
	return NewDomainError(CodeDifficultyRequired, "difficulty must be set before this action", http.StatusUnprocessableEntity, details)
}

// NewConflictStale reports that the item advanced since the caller last read it.
func NewConflictStale(details map[string]any) error {
	return NewDomainError(CodeConflictStale, "item changed since it was last read", http.StatusConflict, details)
}

// NewNetworkFailure wraps a transport level failure.
func NewNetworkFailure(err error) error {
	return &DomainError{
		Code:       CodeNetworkFailure,
		Message:    "network failure",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// FromResponse rebuilds a DomainError from an error envelope returned by the API.
func FromResponse(status int, code, message string, details map[string]any) *DomainError {
	if code == "" {
		switch status {
		case http.StatusNotFound:
			code = CodeNotFound
		case http.StatusForbidden:
			code = CodeForbidden
		case http.StatusUnauthorized:
			code = CodeUnauthorized
		case http.StatusConflict:
			code = CodeConflictStale
		case http.StatusBadRequest:
			code = CodeValidationFailed
		default:
			code = CodeInternal
		}
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	return ToDomainError(err)
}

// Code returns the taxonomy code carried by err, or "" when err is not a DomainError.
func Code(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// Is reports whether err carries the given taxonomy code.
func Is(err error, code string) bool {
	return err != nil && Code(err) == code
}
