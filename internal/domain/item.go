package domain

import (
	"fmt"
	"time"

	"github.com/spec-kit/factory-workflow/internal/history"
)

// Kind selects which status registry governs an item.
type Kind string

const (
	KindIncident      Kind = "incident"
	KindPublicIdea    Kind = "public_idea"
	KindSensitiveIdea Kind = "sensitive_idea"
)

// Kinds lists every item kind.
var Kinds = []Kind{KindIncident, KindPublicIdea, KindSensitiveIdea}

// ParseKind validates a raw kind string.
func ParseKind(raw string) (Kind, error) {
	switch k := Kind(raw); k {
	case KindIncident, KindPublicIdea, KindSensitiveIdea:
		return k, nil
	}
	return "", fmt.Errorf("unknown item kind %q", raw)
}

// IsIdea reports whether the kind belongs to the idea family.
func (k Kind) IsIdea() bool {
	return k == KindPublicIdea || k == KindSensitiveIdea
}

// EntityKind is the coarse entity name used by invalidation events.
func (k Kind) EntityKind() string {
	if k.IsIdea() {
		return "idea"
	}
	return "incident"
}

// Status is a lifecycle state. Which values are legal depends on the Kind.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"

	StatusNew         Status = "new"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusImplemented Status = "implemented"

	StatusForwarded           Status = "forwarded"
	StatusDepartmentResponded Status = "department_responded"
	StatusNeedRevision        Status = "need_revision"
	StatusPublished           Status = "published"
)

// Priority is the incident urgency.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Difficulty is the categorical effort rating of an idea.
type Difficulty string

const (
	DifficultyA Difficulty = "A"
	DifficultyB Difficulty = "B"
	DifficultyC Difficulty = "C"
	DifficultyD Difficulty = "D"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyA, DifficultyB, DifficultyC, DifficultyD:
		return true
	}
	return false
}

// WorkflowItem is an incident or idea tracked by the engine.
type WorkflowItem struct {
	ID           string
	Kind         Kind
	Status       Status
	Title        string
	Description  string
	SubmitterID  string
	Priority     *Priority
	Difficulty   *Difficulty
	AssigneeID   *string
	DepartmentID *string
	Escalated    bool
	Forward      *ForwardInfo
	Response     *DepartmentResponse
	Published    *PublishedInfo
	Attachments  []string
	History      history.Log
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Clone returns a deep copy safe to mutate independently of the receiver.
func (it *WorkflowItem) Clone() *WorkflowItem {
	if it == nil {
		return nil
	}
	cp := *it
	cp.Priority = clonePtr(it.Priority)
	cp.Difficulty = clonePtr(it.Difficulty)
	cp.AssigneeID = clonePtr(it.AssigneeID)
	cp.DepartmentID = clonePtr(it.DepartmentID)
	if it.Forward != nil {
		f := *it.Forward
		cp.Forward = &f
	}
	if it.Response != nil {
		r := *it.Response
		cp.Response = &r
	}
	if it.Published != nil {
		p := *it.Published
		cp.Published = &p
	}
	if it.Attachments != nil {
		cp.Attachments = append([]string(nil), it.Attachments...)
	}
	cp.History = it.History.Clone()
	return &cp
}

// ResponsePending reports whether a department answer awaits a coordinator decision.
func (it *WorkflowItem) ResponsePending() bool {
	return it.Response != nil &&
		(it.Published == nil || !it.Published.IsPublished) &&
		it.Status == StatusDepartmentResponded
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
