package workflow

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/factory-workflow/internal/domain"
	"github.com/spec-kit/factory-workflow/internal/history"
	apperrors "github.com/spec-kit/factory-workflow/pkg/util/errorutil"
)

var (
	supervisor  = domain.Actor{ID: "sup-1", Role: domain.RoleSupervisor}
	technician  = domain.Actor{ID: "tech-1", Role: domain.RoleTechnician}
	coordinator = domain.Actor{ID: "coord-1", Role: domain.RoleCoordinator}
	employee    = domain.Actor{ID: "emp-1", Role: domain.RoleEmployee}
)

func hrActor() domain.Actor {
	dept := "HR"
	return domain.Actor{ID: "hr-1", Role: domain.RoleDepartment, DepartmentID: &dept}
}

func newTestEngine() *Engine {
	clock := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	seq := 0
	return NewEngine(
		WithClock(func() time.Time { return clock }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("h-%d", seq)
		}),
	)
}

func newItem(kind domain.Kind) *domain.WorkflowItem {
	def, _ := Lookup(kind)
	return &domain.WorkflowItem{
		ID:        "item-1",
		Kind:      kind,
		Status:    def.Initial,
		CreatedAt: time.Date(2025, 5, 30, 8, 0, 0, 0, time.UTC),
	}
}

func mustApply(t *testing.T, e *Engine, item *domain.WorkflowItem, actor domain.Actor, req Request) *domain.WorkflowItem {
	t.Helper()
	next, err := e.Apply(item, actor, req)
	require.NoError(t, err)
	return next
}

func requireAccepted(t *testing.T, before, after *domain.WorkflowItem) {
	t.Helper()
	require.Equal(t, before.History.Len()+1, after.History.Len())
	last, ok := after.History.Last()
	require.True(t, ok)
	require.Equal(t, string(after.Status), last.Details[history.KeyNewStatus])
	require.Equal(t, string(before.Status), last.Details[history.KeyOldStatus])
}

func TestEngine_IncidentLifecycle(t *testing.T) {
	e := newTestEngine()
	item := newItem(domain.KindIncident)

	assigned := mustApply(t, e, item, supervisor, Request{Action: ActionAssign, Payload: Payload{AssignedTo: "tech-1"}})
	requireAccepted(t, item, assigned)
	require.Equal(t, domain.StatusAssigned, assigned.Status)
	require.Equal(t, "tech-1", *assigned.AssigneeID)
	require.Equal(t, domain.StatusPending, item.Status)
	require.Nil(t, item.AssigneeID)

	started := mustApply(t, e, assigned, technician, Request{Action: ActionStart})
	requireAccepted(t, assigned, started)
	require.Equal(t, domain.StatusInProgress, started.Status)

	reassigned := mustApply(t, e, started, supervisor, Request{Action: ActionAssign, Payload: Payload{AssignedTo: "tech-2"}})
	requireAccepted(t, started, reassigned)
	require.Equal(t, domain.StatusInProgress, reassigned.Status)
	require.Equal(t, "tech-2", *reassigned.AssigneeID)

	resolved := mustApply(t, e, reassigned, technician, Request{Action: ActionResolve, Payload: Payload{Note: "replaced belt"}})
	requireAccepted(t, reassigned, resolved)
	require.Equal(t, domain.StatusResolved, resolved.Status)
	require.Equal(t, 4, resolved.History.Len())

	_, err := e.Apply(resolved, supervisor, Request{Action: ActionClose})
	require.True(t, apperrors.Is(err, apperrors.CodeTransitionRejected))
}

func TestEngine_RejectedTransitionHasNoEffect(t *testing.T) {
	e := newTestEngine()
	item := newItem(domain.KindIncident)
	item = mustApply(t, e, item, supervisor, Request{Action: ActionAssign, Payload: Payload{AssignedTo: "tech-1"}})
	snapshot := item.Clone()

	cases := []struct {
		actor domain.Actor
		req   Request
		code  string
	}{
		{employee, Request{Action: ActionStart}, apperrors.CodeTransitionRejected},
		{technician, Request{Action: ActionAssign, Payload: Payload{AssignedTo: "me"}}, apperrors.CodeTransitionRejected},
		{supervisor, Request{Action: ActionApprove}, apperrors.CodeTransitionRejected},
		{supervisor, Request{Action: Action("teleport")}, apperrors.CodeTransitionRejected},
		{supervisor, Request{Action: ActionAssign}, apperrors.CodeValidationFailed},
		{supervisor, Request{Action: ActionSetPriority, Payload: Payload{Priority: "urgent"}}, apperrors.CodeValidationFailed},
	}

	for _, tc := range cases {
		next, err := e.Apply(item, tc.actor, tc.req)
		require.Nil(t, next)
		require.Equal(t, tc.code, apperrors.Code(err), "action %s", tc.req.Action)
		require.Equal(t, snapshot, item)
	}
}

func TestEngine_ApproveRequiresDifficulty(t *testing.T) {
	e := newTestEngine()
	idea := newItem(domain.KindPublicIdea)
	idea = mustApply(t, e, idea, coordinator, Request{Action: ActionReview})
	before := idea.Clone()

	_, err := e.Apply(idea, coordinator, Request{Action: ActionApprove})
	require.True(t, apperrors.Is(err, apperrors.CodeDifficultyRequired))
	require.False(t, apperrors.Is(err, apperrors.CodeTransitionRejected))
	require.Equal(t, before, idea)
	require.Equal(t, domain.StatusUnderReview, idea.Status)

	rated := mustApply(t, e, idea, coordinator, Request{Action: ActionSetDifficulty, Payload: Payload{Difficulty: domain.DifficultyB}})
	requireAccepted(t, idea, rated)
	require.Equal(t, domain.StatusUnderReview, rated.Status)

	approved := mustApply(t, e, rated, coordinator, Request{Action: ActionApprove, Payload: Payload{Note: "good idea"}})
	requireAccepted(t, rated, approved)
	require.Equal(t, domain.StatusApproved, approved.Status)
	last, _ := approved.History.Last()
	require.Equal(t, "B", last.Details[history.KeyDifficulty])
	require.Equal(t, "good idea", last.Details[history.KeyReviewNotes])

	implemented := mustApply(t, e, approved, coordinator, Request{Action: ActionImplement})
	require.Equal(t, domain.StatusImplemented, implemented.Status)
}

func TestEngine_GateDoesNotMaskRoleFailure(t *testing.T) {
	e := newTestEngine()
	idea := newItem(domain.KindPublicIdea)
	idea = mustApply(t, e, idea, coordinator, Request{Action: ActionReview})

	_, err := e.Apply(idea, employee, Request{Action: ActionApprove})
	require.True(t, apperrors.Is(err, apperrors.CodeTransitionRejected))
}

func TestEngine_SensitiveIdeaScenario(t *testing.T) {
	e := newTestEngine()
	hr := hrActor()
	idea := newItem(domain.KindSensitiveIdea)

	_, err := e.Apply(idea, hr, Request{Action: ActionRespond, Payload: Payload{Text: "noted"}})
	require.True(t, apperrors.Is(err, apperrors.CodeTransitionRejected))
	require.Equal(t, 0, idea.History.Len())

	forwarded := mustApply(t, e, idea, coordinator, Request{Action: ActionForward, Payload: Payload{DepartmentID: "HR"}})
	requireAccepted(t, idea, forwarded)
	require.Equal(t, domain.StatusForwarded, forwarded.Status)
	require.NotNil(t, forwarded.Forward)
	require.Equal(t, "HR", forwarded.Forward.DepartmentID)

	responded := mustApply(t, e, forwarded, hr, Request{Action: ActionRespond, Payload: Payload{Text: "we will fix the rota"}})
	requireAccepted(t, forwarded, responded)
	require.Equal(t, domain.StatusDepartmentResponded, responded.Status)
	require.True(t, responded.ResponsePending())

	published := mustApply(t, e, responded, coordinator, Request{Action: ActionPublish})
	requireAccepted(t, responded, published)
	require.Equal(t, domain.StatusPublished, published.Status)
	require.True(t, published.Published.IsPublished)
	require.Equal(t, "we will fix the rota", published.Published.Text)
	require.False(t, published.ResponsePending())
	require.NotNil(t, published.Forward)

	frozen := *published.Published
	_, err = e.Apply(published, coordinator, Request{Action: ActionPublish, Payload: Payload{Text: "edited"}})
	require.True(t, apperrors.Is(err, apperrors.CodeTransitionRejected))
	require.Equal(t, frozen, *published.Published)
}

func TestEngine_RevisionLoopKeepsForwardInfo(t *testing.T) {
	e := newTestEngine()
	hr := hrActor()
	idea := newItem(domain.KindSensitiveIdea)
	idea = mustApply(t, e, idea, coordinator, Request{Action: ActionForward, Payload: Payload{DepartmentID: "HR"}})
	idea = mustApply(t, e, idea, hr, Request{Action: ActionRespond, Payload: Payload{Text: "first draft"}})

	revised := mustApply(t, e, idea, coordinator, Request{Action: ActionRequestRevision, Payload: Payload{Note: "more detail"}})
	requireAccepted(t, idea, revised)
	require.Equal(t, domain.StatusNeedRevision, revised.Status)
	require.False(t, revised.ResponsePending())
	require.NotNil(t, revised.Forward)

	_, err := e.Apply(revised, coordinator, Request{Action: ActionPublish})
	require.True(t, apperrors.Is(err, apperrors.CodeTransitionRejected))

	again := mustApply(t, e, revised, hr, Request{Action: ActionRespond, Payload: Payload{Text: "second draft"}})
	require.Equal(t, domain.StatusDepartmentResponded, again.Status)
	require.Equal(t, "second draft", again.Response.Text)

	rerouted := mustApply(t, e, revised, coordinator, Request{Action: ActionForward, Payload: Payload{DepartmentID: "Safety"}})
	require.Equal(t, "Safety", rerouted.Forward.DepartmentID)
	_, err = e.Apply(rerouted, hr, Request{Action: ActionRespond, Payload: Payload{Text: "not ours"}})
	require.True(t, apperrors.Is(err, apperrors.CodeTransitionRejected))
}

func TestEngine_ForwardNeverClearsAssignee(t *testing.T) {
	e := newTestEngine()
	idea := newItem(domain.KindSensitiveIdea)
	owner := "coord-9"
	idea.AssigneeID = &owner

	forwarded := mustApply(t, e, idea, coordinator, Request{Action: ActionForward, Payload: Payload{DepartmentID: "HR"}})
	require.Equal(t, "coord-9", *forwarded.AssigneeID)
	require.Equal(t, "HR", *forwarded.DepartmentID)
}

func TestEngine_EscalateIsSideChannel(t *testing.T) {
	e := newTestEngine()
	item := newItem(domain.KindIncident)

	escalated := mustApply(t, e, item, supervisor, Request{Action: ActionEscalate, Payload: Payload{Note: "line stopped"}})
	requireAccepted(t, item, escalated)
	require.True(t, escalated.Escalated)
	require.Equal(t, domain.StatusPending, escalated.Status)
	last, _ := escalated.History.Last()
	require.Equal(t, true, last.Details[history.KeyEscalated])

	_, err := e.Apply(escalated, supervisor, Request{Action: ActionEscalate})
	require.True(t, apperrors.Is(err, apperrors.CodeTransitionRejected))

	assigned := mustApply(t, e, escalated, supervisor, Request{Action: ActionAssign, Payload: Payload{AssignedTo: "tech-1"}})
	require.True(t, assigned.Escalated)
}

func TestEngine_HistoryEntriesAreUnique(t *testing.T) {
	e := newTestEngine()
	item := newItem(domain.KindIncident)
	item = mustApply(t, e, item, supervisor, Request{Action: ActionAssign, Payload: Payload{AssignedTo: "a"}})
	item = mustApply(t, e, item, supervisor, Request{Action: ActionAssign, Payload: Payload{AssignedTo: "b"}})
	item = mustApply(t, e, item, supervisor, Request{Action: ActionAssign, Payload: Payload{AssignedTo: "c"}})

	entries := item.History.Entries()
	require.Len(t, entries, 3)
	for i := 1; i < len(entries); i++ {
		require.True(t, entries[i].Timestamp.After(entries[i-1].Timestamp))
	}
	require.Equal(t, []string{"h-1", "h-2", "h-3"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})
}

func TestEngine_UnknownStateIsRejected(t *testing.T) {
	e := newTestEngine()
	item := newItem(domain.KindIncident)
	item.Status = domain.StatusPublished

	_, err := e.Apply(item, domain.Actor{ID: "root", Role: domain.RoleAdmin}, Request{Action: ActionClose})
	require.True(t, apperrors.Is(err, apperrors.CodeTransitionRejected))
}
