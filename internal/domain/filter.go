package domain

import (
	"strings"
	"time"
)

// ItemFilter narrows a list of items of one kind. Zero values mean "any",
// except Escalated, which defaults to the current-level queue.
type ItemFilter struct {
	Status     Status
	Query      string
	From       *time.Time
	To         *time.Time
	Priority   *Priority
	Difficulty *Difficulty
	// Escalated selects the queue: nil or false is the current-level queue,
	// which hides escalated items; true lists only escalated items.
	Escalated *bool
	// Direction is "newest" or "oldest".
	Direction string
	Limit     int
	Offset    int
}

// Matches reports whether item satisfies every set criterion except paging.
// Query matches title or description, ignoring case.
func (f ItemFilter) Matches(item *WorkflowItem) bool {
	if f.Status != "" && item.Status != f.Status {
		return false
	}
	if !f.InQueue(item) {
		return false
	}
	if f.From != nil && item.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && item.CreatedAt.After(*f.To) {
		return false
	}
	if f.Priority != nil && (item.Priority == nil || *item.Priority != *f.Priority) {
		return false
	}
	if f.Difficulty != nil && (item.Difficulty == nil || *item.Difficulty != *f.Difficulty) {
		return false
	}
	if f.Query != "" && !containsFold(item.Title, f.Query) && !containsFold(item.Description, f.Query) {
		return false
	}
	return true
}

// WantEscalated reports which escalation state the filter lists.
func (f ItemFilter) WantEscalated() bool {
	return f.Escalated != nil && *f.Escalated
}

// InQueue reports whether item belongs to the queue the filter selects.
// Escalating an item moves it out of the current-level queue.
func (f ItemFilter) InQueue(item *WorkflowItem) bool {
	return item.Escalated == f.WantEscalated()
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
