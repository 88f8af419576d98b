// Package history holds the append-only audit trail carried by every workflow item.
package history

import (
	"errors"
	"time"
)

// Detail keys understood by Describe. Producers may add others; renderers
// fall back to a generic listing for keys outside this set.
const (
	KeyOldStatus    = "old_status"
	KeyNewStatus    = "new_status"
	KeyDifficulty   = "difficulty"
	KeyDepartmentID = "department_id"
	KeyReviewNotes  = "review_notes"
	KeyAssignedTo   = "assigned_to"
	KeyPriority     = "priority"
	KeyNote         = "note"
	KeyEscalated    = "escalated"
)

// ErrDuplicateEntry is returned when an entry repeats the (actor, action,
// timestamp) triple of an entry already in the log.
var ErrDuplicateEntry = errors.New("history: duplicate entry")

// Entry is one immutable audit record.
type Entry struct {
	ID        string
	Actor     string
	ActorRole string
	Action    string
	Timestamp time.Time
	Details   map[string]any
}

// Log is an ordered, append-only sequence of entries. The zero value is an
// empty log ready for use.
type Log struct {
	entries []Entry
}

// Restore rebuilds a log from entries already persisted by the source of
// truth, keeping their order.
func Restore(entries []Entry) Log {
	log := Log{entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		log.entries = append(log.entries, copyEntry(e))
	}
	return log
}

// Append adds an entry to the end of the log.
func (l *Log) Append(e Entry) error {
	for _, existing := range l.entries {
		if existing.Actor == e.Actor && existing.Action == e.Action && existing.Timestamp.Equal(e.Timestamp) {
			return ErrDuplicateEntry
		}
	}
	l.entries = append(l.entries, copyEntry(e))
	return nil
}

// Len returns the number of entries.
func (l Log) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the entries in insertion order.
func (l Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = copyEntry(e)
	}
	return out
}

// Reversed returns a copy of the entries, newest first. The log itself is
// never reordered.
func (l Log) Reversed() []Entry {
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[len(l.entries)-1-i] = copyEntry(e)
	}
	return out
}

// Last returns the most recently appended entry.
func (l Log) Last() (Entry, bool) {
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return copyEntry(l.entries[len(l.entries)-1]), true
}

// Clone returns an independent copy; appending to it never affects l.
func (l Log) Clone() Log {
	return Restore(l.entries)
}

// NextTimestamp returns a timestamp for a new entry that is strictly after
// every entry already in the log. Timestamps are kept at microsecond
// precision so they survive a round trip through the datastore.
func (l Log) NextTimestamp(now time.Time) time.Time {
	ts := now.UTC().Truncate(time.Microsecond)
	for _, e := range l.entries {
		if !ts.After(e.Timestamp) {
			ts = e.Timestamp.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
		}
	}
	return ts
}

func copyEntry(e Entry) Entry {
	if e.Details != nil {
		details := make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			details[k] = v
		}
		e.Details = details
	}
	return e
}
