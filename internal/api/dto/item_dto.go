package dto

import (
	"fmt"
	"time"

	"github.com/spec-kit/factory-workflow/internal/domain"
	"github.com/spec-kit/factory-workflow/internal/history"
	"github.com/spec-kit/factory-workflow/internal/workflow"
)

// CreateItemRequest payload for submitting a new item.
type CreateItemRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Priority    *domain.Priority   `json:"priority,omitempty"`
	Difficulty  *domain.Difficulty `json:"difficulty,omitempty"`
	Attachments []string           `json:"attachments"`
}

// TransitionRequest payload for firing an action.
type TransitionRequest struct {
	Action          workflow.Action  `json:"action"`
	Payload         workflow.Payload `json:"payload"`
	ExpectedVersion *int64           `json:"expected_version,omitempty"`
}

// ItemResponse is the wire shape of a workflow item.
type ItemResponse struct {
	ID           string                      `json:"id"`
	Kind         domain.Kind                 `json:"kind"`
	Status       domain.Status               `json:"status"`
	Title        string                      `json:"title"`
	Description  string                      `json:"description"`
	SubmitterID  string                      `json:"submitter_id"`
	Priority     *domain.Priority            `json:"priority"`
	Difficulty   *domain.Difficulty          `json:"difficulty"`
	AssigneeID   *string                     `json:"assignee_id"`
	DepartmentID *string                     `json:"department_id"`
	Escalated    bool                        `json:"escalated"`
	Forward      *ForwardInfoResponse        `json:"forward_info"`
	Response     *DepartmentResponseResponse `json:"department_response"`
	Published    *PublishedInfoResponse      `json:"published_info"`
	Attachments  []string                    `json:"attachments"`
	History      []HistoryEntryResponse      `json:"history"`
	Version      int64                       `json:"version"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// ForwardInfoResponse wire shape.
type ForwardInfoResponse struct {
	DepartmentID string    `json:"department_id"`
	ForwardedBy  string    `json:"forwarded_by"`
	Note         string    `json:"note,omitempty"`
	ForwardedAt  time.Time `json:"forwarded_at"`
}

// DepartmentResponseResponse wire shape.
type DepartmentResponseResponse struct {
	DepartmentID string    `json:"department_id"`
	RespondedBy  string    `json:"responded_by"`
	Text         string    `json:"text"`
	RespondedAt  time.Time `json:"responded_at"`
}

// PublishedInfoResponse wire shape.
type PublishedInfoResponse struct {
	IsPublished bool      `json:"is_published"`
	PublishedBy string    `json:"published_by"`
	Text        string    `json:"text"`
	PublishedAt time.Time `json:"published_at"`
}

// HistoryEntryResponse wire shape; Description is rendered server side.
type HistoryEntryResponse struct {
	ID          string         `json:"id"`
	Actor       string         `json:"actor"`
	ActorRole   string         `json:"actor_role"`
	Action      string         `json:"action"`
	Timestamp   time.Time      `json:"timestamp"`
	Details     map[string]any `json:"details"`
	Description string         `json:"description,omitempty"`
}

// SummaryResponse holds counts per kind and status.
type SummaryResponse struct {
	Counts      map[domain.Kind]map[domain.Status]int `json:"counts"`
	GeneratedAt time.Time                             `json:"generated_at"`
}

// ErrorBody is the error envelope produced by the API.
type ErrorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

// ItemFromDomain converts an item into its wire shape.
func ItemFromDomain(item *domain.WorkflowItem) ItemResponse {
	resp := ItemResponse{
		ID:           item.ID,
		Kind:         item.Kind,
		Status:       item.Status,
		Title:        item.Title,
		Description:  item.Description,
		SubmitterID:  item.SubmitterID,
		Priority:     item.Priority,
		Difficulty:   item.Difficulty,
		AssigneeID:   item.AssigneeID,
		DepartmentID: item.DepartmentID,
		Escalated:    item.Escalated,
		Attachments:  item.Attachments,
		History:      HistoryFromDomain(item.History.Entries()),
		Version:      item.Version,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
	if resp.Attachments == nil {
		resp.Attachments = []string{}
	}
	if f := item.Forward; f != nil {
		resp.Forward = &ForwardInfoResponse{DepartmentID: f.DepartmentID, ForwardedBy: f.ForwardedBy, Note: f.Note, ForwardedAt: f.ForwardedAt}
	}
	if r := item.Response; r != nil {
		resp.Response = &DepartmentResponseResponse{DepartmentID: r.DepartmentID, RespondedBy: r.RespondedBy, Text: r.Text, RespondedAt: r.RespondedAt}
	}
	if p := item.Published; p != nil {
		resp.Published = &PublishedInfoResponse{IsPublished: p.IsPublished, PublishedBy: p.PublishedBy, Text: p.Text, PublishedAt: p.PublishedAt}
	}
	return resp
}

// ToDomain converts a wire item into the domain model.
func (r ItemResponse) ToDomain() (*domain.WorkflowItem, error) {
	kind, err := domain.ParseKind(string(r.Kind))
	if err != nil {
		return nil, err
	}
	if def, ok := workflow.Lookup(kind); !ok || !def.HasState(r.Status) {
		return nil, fmt.Errorf("item %s: status %q is not valid for %s", r.ID, r.Status, kind)
	}
	item := &domain.WorkflowItem{
		ID:           r.ID,
		Kind:         kind,
		Status:       r.Status,
		Title:        r.Title,
		Description:  r.Description,
		SubmitterID:  r.SubmitterID,
		Priority:     r.Priority,
		Difficulty:   r.Difficulty,
		AssigneeID:   r.AssigneeID,
		DepartmentID: r.DepartmentID,
		Escalated:    r.Escalated,
		Attachments:  r.Attachments,
		History:      history.Restore(HistoryToDomain(r.History)),
		Version:      r.Version,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if f := r.Forward; f != nil {
		item.Forward = &domain.ForwardInfo{DepartmentID: f.DepartmentID, ForwardedBy: f.ForwardedBy, Note: f.Note, ForwardedAt: f.ForwardedAt}
	}
	if d := r.Response; d != nil {
		item.Response = &domain.DepartmentResponse{DepartmentID: d.DepartmentID, RespondedBy: d.RespondedBy, Text: d.Text, RespondedAt: d.RespondedAt}
	}
	if p := r.Published; p != nil {
		item.Published = &domain.PublishedInfo{IsPublished: p.IsPublished, PublishedBy: p.PublishedBy, Text: p.Text, PublishedAt: p.PublishedAt}
	}
	return item, nil
}

// HistoryFromDomain converts entries into wire shape.
func HistoryFromDomain(entries []history.Entry) []HistoryEntryResponse {
	resp := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, HistoryEntryResponse{
			ID:          e.ID,
			Actor:       e.Actor,
			ActorRole:   e.ActorRole,
			Action:      e.Action,
			Timestamp:   e.Timestamp,
			Details:     e.Details,
			Description: history.Describe(e),
		})
	}
	return resp
}

// HistoryToDomain converts wire entries back into history entries.
func HistoryToDomain(entries []HistoryEntryResponse) []history.Entry {
	out := make([]history.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, history.Entry{
			ID:        e.ID,
			Actor:     e.Actor,
			ActorRole: e.ActorRole,
			Action:    e.Action,
			Timestamp: e.Timestamp,
			Details:   e.Details,
		})
	}
	return out
}

// SummaryFromDomain converts summary counts.
func SummaryFromDomain(s domain.Summary) SummaryResponse {
	return SummaryResponse{Counts: s.Counts, GeneratedAt: s.GeneratedAt}
}

// ToDomain converts summary counts.
func (s SummaryResponse) ToDomain() domain.Summary {
	counts := s.Counts
	if counts == nil {
		counts = map[domain.Kind]map[domain.Status]int{}
	}
	return domain.Summary{Counts: counts, GeneratedAt: s.GeneratedAt}
}

// AssignNextRequest payload for handing out the next pending incident.
type AssignNextRequest struct {
	AssignedTo string `json:"assigned_to"`
}

// DepartmentResponse wire shape of a forwarding target.
type DepartmentResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DepartmentsFromDomain converts departments into wire shape.
func DepartmentsFromDomain(depts []domain.Department) []DepartmentResponse {
	out := make([]DepartmentResponse, 0, len(depts))
	for _, d := range depts {
		out = append(out, DepartmentResponse{ID: d.ID, Name: d.Name})
	}
	return out
}
