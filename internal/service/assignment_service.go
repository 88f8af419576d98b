package service

import (
	"context"
	"strings"

	"github.com/spec-kit/factory-workflow/internal/api/dto"
	"github.com/spec-kit/factory-workflow/internal/domain"
	"github.com/spec-kit/factory-workflow/internal/ordering"
	"github.com/spec-kit/factory-workflow/internal/workflow"
	apperrors "github.com/spec-kit/factory-workflow/pkg/util/errorutil"
)

// assignmentScanLimit bounds how many pending incidents are ranked per call.
const assignmentScanLimit = 500

// AssignmentService hands out the next incident in queue order.
type AssignmentService struct {
	workflow *WorkflowService
}

// NewAssignmentService creates the service.
func NewAssignmentService(workflowService *WorkflowService) *AssignmentService {
	return &AssignmentService{workflow: workflowService}
}

// Next returns the incident that AssignNext would pick, without changing it.
func (s *AssignmentService) Next(ctx context.Context) (*domain.WorkflowItem, error) {
	pending, err := s.workflow.List(ctx, domain.KindIncident, domain.ItemFilter{
		Status:    domain.StatusPending,
		Direction: string(ordering.Oldest),
		Limit:     assignmentScanLimit,
	})
	if err != nil {
		return nil, err
	}
	next := ordering.NextForAssignment(pending)
	if next == nil {
		return nil, apperrors.NewNotFound("pending incident", nil)
	}
	return next, nil
}

// AssignNext assigns the highest ranked pending incident to assignee.
func (s *AssignmentService) AssignNext(ctx context.Context, actor domain.Actor, assignee string) (*domain.WorkflowItem, error) {
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return nil, apperrors.NewValidationError("assigned_to required", nil)
	}
	if !workflow.CanTransition(domain.KindIncident, domain.StatusPending, workflow.ActionAssign, actor.Role) {
		return nil, apperrors.NewForbidden("insufficient role for assignment")
	}
	next, err := s.Next(ctx)
	if err != nil {
		return nil, err
	}
	version := next.Version
	return s.workflow.Fire(ctx, actor, domain.KindIncident, next.ID, dto.TransitionRequest{
		Action:          workflow.ActionAssign,
		Payload:         workflow.Payload{AssignedTo: assignee},
		ExpectedVersion: &version,
	})
}
