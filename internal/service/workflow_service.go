package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/factory-workflow/internal/api/dto"
	"github.com/spec-kit/factory-workflow/internal/domain"
	"github.com/spec-kit/factory-workflow/internal/events"
	"github.com/spec-kit/factory-workflow/internal/history"
	"github.com/spec-kit/factory-workflow/internal/observability"
	"github.com/spec-kit/factory-workflow/internal/ordering"
	"github.com/spec-kit/factory-workflow/internal/repository"
	"github.com/spec-kit/factory-workflow/internal/workflow"
	apperrors "github.com/spec-kit/factory-workflow/pkg/util/errorutil"
)

const actionSubmit = "submit"

// WorkflowService is the authoritative side of the transition engine: it
// loads items, fires transitions, persists them under optimistic version
// checks and announces every change.
type WorkflowService struct {
	items       repository.ItemRepository
	history     repository.HistoryRepository
	departments repository.DepartmentRepository
	engine      *workflow.Engine
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
}

// WorkflowDependencies bundles collaborators for the workflow service.
type WorkflowDependencies struct {
	ItemRepo       repository.ItemRepository
	HistoryRepo    repository.HistoryRepository
	DepartmentRepo repository.DepartmentRepository
	Engine         *workflow.Engine
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	Clock          func() time.Time
	IDGenerator    func() string
}

// NewWorkflowService constructs the service.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	s := &WorkflowService{
		items:       deps.ItemRepo,
		history:     deps.HistoryRepo,
		departments: deps.DepartmentRepo,
		engine:      deps.Engine,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		now:         deps.Clock,
		newID:       deps.IDGenerator,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.engine == nil {
		s.engine = workflow.NewEngine(workflow.WithClock(s.now), workflow.WithIDGenerator(s.newID))
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// CreateInput describes a newly submitted item.
type CreateInput struct {
	Title       string
	Description string
	Priority    *domain.Priority
	Difficulty  *domain.Difficulty
	Attachments []string
}

// Create submits a new item in the initial state of its kind.
func (s *WorkflowService) Create(ctx context.Context, actor domain.Actor, kind domain.Kind, input CreateInput) (*domain.WorkflowItem, error) {
	def, ok := workflow.Lookup(kind)
	if !ok {
		return nil, apperrors.NewValidationError("unknown kind", map[string]any{"kind": string(kind)})
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}
	if input.Priority != nil && (kind != domain.KindIncident || !input.Priority.Valid()) {
		return nil, apperrors.NewValidationError("priority applies to incidents only and must be valid", map[string]any{"priority": string(*input.Priority)})
	}
	if input.Difficulty != nil && (!kind.IsIdea() || !input.Difficulty.Valid()) {
		return nil, apperrors.NewValidationError("difficulty applies to ideas only and must be valid", map[string]any{"difficulty": string(*input.Difficulty)})
	}

	ts := s.now().UTC().Truncate(time.Microsecond)
	item := &domain.WorkflowItem{
		ID:          s.newID(),
		Kind:        kind,
		Status:      def.Initial,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		SubmitterID: actor.ID,
		Priority:    input.Priority,
		Difficulty:  input.Difficulty,
		Attachments: input.Attachments,
		Version:     1,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := item.History.Append(history.Entry{
		ID:        s.newID(),
		Actor:     actor.ID,
		ActorRole: string(actor.Role),
		Action:    actionSubmit,
		Timestamp: ts,
		Details:   map[string]any{history.KeyNewStatus: string(def.Initial)},
	}); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:   events.CreatedEvent(kind),
		ItemID: item.ID,
		Kind:   kind,
		Actor:  eventActor(actor),
	})
	return item, nil
}

// List returns ranked items of one kind with their history.
func (s *WorkflowService) List(ctx context.Context, kind domain.Kind, filter domain.ItemFilter) ([]*domain.WorkflowItem, error) {
	if _, ok := workflow.Lookup(kind); !ok {
		return nil, apperrors.NewValidationError("unknown kind", map[string]any{"kind": string(kind)})
	}
	if filter.Status != "" {
		if def, _ := workflow.Lookup(kind); !def.HasState(filter.Status) {
			return nil, apperrors.NewValidationError("unknown status for kind", map[string]any{"status": string(filter.Status)})
		}
	}
	items, err := s.items.List(ctx, kind, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.attachHistory(ctx, items); err != nil {
		return nil, err
	}
	return ordering.Sort(items, ordering.ParseDirection(filter.Direction)), nil
}

// Get returns one item with its history.
func (s *WorkflowService) Get(ctx context.Context, kind domain.Kind, id string) (*domain.WorkflowItem, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFound(string(kind), map[string]any{"id": id})
	}
	item, err := s.items.GetByID(ctx, kind, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.attachHistory(ctx, []*domain.WorkflowItem{item}); err != nil {
		return nil, err
	}
	return item, nil
}

// Fire applies a transition on behalf of actor. A stale ExpectedVersion, or
// a concurrent writer winning the race, yields ConflictStale.
func (s *WorkflowService) Fire(ctx context.Context, actor domain.Actor, kind domain.Kind, id string, req dto.TransitionRequest) (*domain.WorkflowItem, error) {
	item, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if req.ExpectedVersion != nil && *req.ExpectedVersion != item.Version {
		s.metrics.RecordTransition(string(kind), string(req.Action), apperrors.CodeConflictStale)
		return nil, apperrors.NewConflictStale(map[string]any{
			"id":               id,
			"expected_version": *req.ExpectedVersion,
			"current_version":  item.Version,
		})
	}
	if req.Action == workflow.ActionForward && workflow.CanTransition(kind, item.Status, req.Action, actor.Role) {
		if err := s.requireActiveDepartment(ctx, req.Payload.DepartmentID); err != nil {
			return nil, err
		}
	}

	next, err := s.engine.Apply(item, actor, workflow.Request{Action: req.Action, Payload: req.Payload})
	if err != nil {
		s.metrics.RecordTransition(string(kind), string(req.Action), apperrors.Code(err))
		return nil, err
	}
	entry, _ := next.History.Last()
	if err := s.items.SaveTransition(ctx, next, item.Version, entry); err != nil {
		mapped := apperrors.MapError(err)
		s.metrics.RecordTransition(string(kind), string(req.Action), apperrors.Code(mapped))
		return nil, mapped
	}
	s.metrics.RecordTransition(string(kind), string(req.Action), "ok")
	s.logger.Info("transition applied",
		zap.String("item_id", id),
		zap.String("kind", string(kind)),
		zap.String("action", string(req.Action)),
		zap.String("status", string(next.Status)),
		zap.Int64("version", next.Version),
	)

	s.publishEvent(ctx, events.Event{
		Type:   events.UpdatedEvent(kind),
		ItemID: id,
		Kind:   kind,
		Actor:  eventActor(actor),
		Payload: events.TransitionPayload{
			Action:    string(req.Action),
			OldStatus: item.Status,
			NewStatus: next.Status,
			Version:   next.Version,
		},
	})
	return next, nil
}

// History returns the log of one item in insertion order.
func (s *WorkflowService) History(ctx context.Context, kind domain.Kind, id string) ([]history.Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFound(string(kind), map[string]any{"id": id})
	}
	if _, err := s.items.GetByID(ctx, kind, id); err != nil {
		return nil, apperrors.MapError(err)
	}
	entries, err := s.history.ListByItem(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// Summary returns counts per kind and status.
func (s *WorkflowService) Summary(ctx context.Context) (domain.Summary, error) {
	summary, err := s.items.Summary(ctx)
	if err != nil {
		return domain.Summary{}, apperrors.MapError(err)
	}
	return summary, nil
}

// Departments lists the active forwarding targets.
func (s *WorkflowService) Departments(ctx context.Context) ([]domain.Department, error) {
	depts, err := s.departments.ListActive(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return depts, nil
}

func (s *WorkflowService) requireActiveDepartment(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperrors.NewValidationError("department_id required", nil)
	}
	dept, err := s.departments.GetByID(ctx, id)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return apperrors.NewValidationError("unknown department", map[string]any{"department_id": id})
		}
		return apperrors.MapError(err)
	}
	if !dept.IsActive {
		return apperrors.NewValidationError("department inactive", map[string]any{"department_id": id})
	}
	return nil
}

func (s *WorkflowService) attachHistory(ctx context.Context, items []*domain.WorkflowItem) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	byItem, err := s.history.ListByItems(ctx, ids)
	if err != nil {
		return apperrors.MapError(err)
	}
	for _, it := range items {
		it.History = history.Restore(byItem[it.ID])
	}
	return nil
}

func (s *WorkflowService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func eventActor(actor domain.Actor) events.Actor {
	return events.Actor{ID: actor.ID, Role: actor.Role}
}
