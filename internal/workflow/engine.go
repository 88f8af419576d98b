package workflow

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/factory-workflow/internal/domain"
	"github.com/spec-kit/factory-workflow/internal/history"
	apperrors "github.com/spec-kit/factory-workflow/pkg/util/errorutil"
)

// Payload carries the action specific inputs of a transition request.
type Payload struct {
	AssignedTo   string            `json:"assigned_to,omitempty"`
	DepartmentID string            `json:"department_id,omitempty"`
	Priority     domain.Priority   `json:"priority,omitempty"`
	Difficulty   domain.Difficulty `json:"difficulty,omitempty"`
	Text         string            `json:"text,omitempty"`
	Note         string            `json:"note,omitempty"`
}

// Request asks the engine to fire Action on an item.
type Request struct {
	Action  Action  `json:"action"`
	Payload Payload `json:"payload"`
}

// Engine validates transitions against the registry and applies their side
// effects together with one history entry.
type Engine struct {
	now   func() time.Time
	newID func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides how history entry ids are generated.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.newID = gen
	}
}

// NewEngine constructs an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply fires req on item for actor. On success it returns a new item with
// the status change, side effects and exactly one appended history entry.
// On failure it returns a taxonomy error and item is left untouched.
func (e *Engine) Apply(item *domain.WorkflowItem, actor domain.Actor, req Request) (*domain.WorkflowItem, error) {
	if item == nil {
		return nil, apperrors.NewNotFound("item", nil)
	}
	def, ok := Lookup(item.Kind)
	if !ok || !def.HasState(item.Status) {
		return nil, rejected("item is in an unknown state", item, actor, req.Action)
	}
	if !CanTransition(item.Kind, item.Status, req.Action, actor.Role) {
		return nil, rejected("action not allowed", item, actor, req.Action)
	}

	next := item.Clone()
	details := map[string]any{
		history.KeyOldStatus: string(item.Status),
	}

	if req.Action == ActionEscalate {
		if item.Escalated {
			return nil, rejected("item already escalated", item, actor, req.Action)
		}
		next.Escalated = true
		details[history.KeyEscalated] = true
		if note := strings.TrimSpace(req.Payload.Note); note != "" {
			details[history.KeyNote] = note
		}
		return e.commit(next, actor, req.Action, item.History.NextTimestamp(e.now()), details)
	}

	rule, _ := def.Rule(req.Action, item.Status)
	if rule.Gated && def.RequireDifficultyForApproval && item.Difficulty == nil {
		return nil, apperrors.NewDifficultyRequired(map[string]any{
			"item_id": item.ID,
			"kind":    string(item.Kind),
			"action":  string(req.Action),
		})
	}

	ts := item.History.NextTimestamp(e.now())
	if err := applySideEffects(next, actor, req, ts, details); err != nil {
		return nil, err
	}
	if rule.To != "" {
		next.Status = rule.To
	}
	return e.commit(next, actor, req.Action, ts, details)
}

func (e *Engine) commit(next *domain.WorkflowItem, actor domain.Actor, action Action, ts time.Time, details map[string]any) (*domain.WorkflowItem, error) {
	details[history.KeyNewStatus] = string(next.Status)
	entry := history.Entry{
		ID:        e.newID(),
		Actor:     actor.ID,
		ActorRole: string(actor.Role),
		Action:    string(action),
		Timestamp: ts,
		Details:   details,
	}
	if err := next.History.Append(entry); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	next.UpdatedAt = ts
	return next, nil
}

func applySideEffects(next *domain.WorkflowItem, actor domain.Actor, req Request, ts time.Time, details map[string]any) error {
	p := req.Payload
	note := strings.TrimSpace(p.Note)

	switch req.Action {
	case ActionAssign:
		assignee := strings.TrimSpace(p.AssignedTo)
		if assignee == "" {
			return apperrors.NewValidationError("assigned_to required", nil)
		}
		next.AssigneeID = &assignee
		details[history.KeyAssignedTo] = assignee

	case ActionSetPriority:
		if !p.Priority.Valid() {
			return apperrors.NewValidationError("valid priority required", map[string]any{"priority": string(p.Priority)})
		}
		priority := p.Priority
		next.Priority = &priority
		details[history.KeyPriority] = string(priority)

	case ActionSetDifficulty:
		if !p.Difficulty.Valid() {
			return apperrors.NewValidationError("valid difficulty required", map[string]any{"difficulty": string(p.Difficulty)})
		}
		difficulty := p.Difficulty
		next.Difficulty = &difficulty
		details[history.KeyDifficulty] = string(difficulty)

	case ActionReview, ActionApprove, ActionReject, ActionImplement:
		if note != "" {
			details[history.KeyReviewNotes] = note
		}
		if next.Difficulty != nil {
			details[history.KeyDifficulty] = string(*next.Difficulty)
		}

	case ActionForward:
		dept := strings.TrimSpace(p.DepartmentID)
		if dept == "" {
			return apperrors.NewValidationError("department_id required", nil)
		}
		next.Forward = &domain.ForwardInfo{
			DepartmentID: dept,
			ForwardedBy:  actor.ID,
			Note:         note,
			ForwardedAt:  ts,
		}
		next.DepartmentID = &dept
		details[history.KeyDepartmentID] = dept
		if note != "" {
			details[history.KeyNote] = note
		}

	case ActionRespond:
		if next.Forward == nil {
			return rejected("idea has not been forwarded", next, actor, req.Action)
		}
		if actor.Role == domain.RoleDepartment &&
			(actor.DepartmentID == nil || *actor.DepartmentID != next.Forward.DepartmentID) {
			return rejected("idea was forwarded to another department", next, actor, req.Action)
		}
		text := strings.TrimSpace(p.Text)
		if text == "" {
			return apperrors.NewValidationError("text required", nil)
		}
		next.Response = &domain.DepartmentResponse{
			DepartmentID: next.Forward.DepartmentID,
			RespondedBy:  actor.ID,
			Text:         text,
			RespondedAt:  ts,
		}
		details[history.KeyDepartmentID] = next.Forward.DepartmentID
		details[history.KeyNote] = text

	case ActionPublish:
		if next.Response == nil {
			return rejected("no department response to publish", next, actor, req.Action)
		}
		if next.Published != nil && next.Published.IsPublished {
			return rejected("already published", next, actor, req.Action)
		}
		text := strings.TrimSpace(p.Text)
		if text == "" {
			text = next.Response.Text
		}
		next.Published = &domain.PublishedInfo{
			IsPublished: true,
			PublishedBy: actor.ID,
			Text:        text,
			PublishedAt: ts,
		}
		if note != "" {
			details[history.KeyReviewNotes] = note
		}

	case ActionRequestRevision, ActionStart, ActionResolve, ActionClose:
		if note != "" {
			details[history.KeyNote] = note
		}
	}
	return nil
}

func rejected(message string, item *domain.WorkflowItem, actor domain.Actor, action Action) error {
	return apperrors.NewTransitionRejected(message, map[string]any{
		"item_id": item.ID,
		"kind":    string(item.Kind),
		"status":  string(item.Status),
		"action":  string(action),
		"role":    string(actor.Role),
	})
}
