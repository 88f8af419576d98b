package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLog_AppendKeepsInsertionOrder(t *testing.T) {
	var log Log
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, log.Append(Entry{Actor: "u1", Action: "assign", Timestamp: base.Add(time.Minute)}))
	require.NoError(t, log.Append(Entry{Actor: "u2", Action: "start", Timestamp: base}))

	entries := log.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, "assign", entries[0].Action)
	require.Equal(t, "start", entries[1].Action)
}

func TestLog_AppendRejectsDuplicateTriple(t *testing.T) {
	var log Log
	ts := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, log.Append(Entry{Actor: "u1", Action: "assign", Timestamp: ts}))
	err := log.Append(Entry{Actor: "u1", Action: "assign", Timestamp: ts, Details: map[string]any{"note": "again"}})
	require.ErrorIs(t, err, ErrDuplicateEntry)
	require.Equal(t, 1, log.Len())

	require.NoError(t, log.Append(Entry{Actor: "u2", Action: "assign", Timestamp: ts}))
	require.Equal(t, 2, log.Len())
}

func TestLog_ReversedDoesNotReorderLog(t *testing.T) {
	var log Log
	ts := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, action := range []string{"review", "set_difficulty", "approve"} {
		require.NoError(t, log.Append(Entry{Actor: "c1", Action: action, Timestamp: ts.Add(time.Duration(i) * time.Second)}))
	}

	reversed := log.Reversed()
	require.Equal(t, "approve", reversed[0].Action)
	require.Equal(t, "review", reversed[2].Action)

	last, ok := log.Last()
	require.True(t, ok)
	require.Equal(t, "approve", last.Action)
	require.Equal(t, "review", log.Entries()[0].Action)
}

func TestLog_CloneIsIndependent(t *testing.T) {
	var log Log
	ts := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, log.Append(Entry{Actor: "a", Action: "forward", Timestamp: ts, Details: map[string]any{KeyDepartmentID: "HR"}}))

	clone := log.Clone()
	require.NoError(t, clone.Append(Entry{Actor: "a", Action: "publish", Timestamp: ts.Add(time.Second)}))
	require.Equal(t, 1, log.Len())
	require.Equal(t, 2, clone.Len())

	entries := log.Entries()
	entries[0].Details[KeyDepartmentID] = "Finance"
	require.Equal(t, "HR", log.Entries()[0].Details[KeyDepartmentID])
}

func TestLog_NextTimestampIsStrictlyIncreasing(t *testing.T) {
	var log Log
	now := time.Date(2025, 3, 1, 8, 0, 0, 500, time.UTC)

	first := log.NextTimestamp(now)
	require.Equal(t, now.Truncate(time.Microsecond), first)
	require.NoError(t, log.Append(Entry{Actor: "a", Action: "assign", Timestamp: first}))

	second := log.NextTimestamp(now)
	require.True(t, second.After(first))
	require.NoError(t, log.Append(Entry{Actor: "a", Action: "assign", Timestamp: second}))

	earlier := log.NextTimestamp(now.Add(-time.Hour))
	require.True(t, earlier.After(second))
}

func TestLog_LastOnEmpty(t *testing.T) {
	var log Log
	_, ok := log.Last()
	require.False(t, ok)
	require.Empty(t, log.Reversed())
}
