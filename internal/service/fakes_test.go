package service

import (
	"context"
	"sync"

	"github.com/spec-kit/factory-workflow/internal/domain"
	"github.com/spec-kit/factory-workflow/internal/events"
	"github.com/spec-kit/factory-workflow/internal/history"
	apperrors "github.com/spec-kit/factory-workflow/pkg/util/errorutil"
)

type memStore struct {
	mu      sync.Mutex
	items   map[string]*domain.WorkflowItem
	order   []string
	entries map[string][]history.Entry
}

func newMemStore() *memStore {
	return &memStore{items: map[string]*domain.WorkflowItem{}, entries: map[string][]history.Entry{}}
}

func (m *memStore) Create(_ context.Context, item *domain.WorkflowItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := item.Clone()
	m.entries[item.ID] = stored.History.Entries()
	stored.History = history.Log{}
	m.items[item.ID] = stored
	m.order = append(m.order, item.ID)
	return nil
}

func (m *memStore) GetByID(_ context.Context, kind domain.Kind, id string) (*domain.WorkflowItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok || item.Kind != kind {
		return nil, apperrors.NewNotFound(string(kind), map[string]any{"id": id})
	}
	return item.Clone(), nil
}

func (m *memStore) List(_ context.Context, kind domain.Kind, filter domain.ItemFilter) ([]*domain.WorkflowItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.WorkflowItem
	for _, id := range m.order {
		item := m.items[id]
		if item.Kind == kind && filter.Matches(item) {
			out = append(out, item.Clone())
		}
	}
	return out, nil
}

func (m *memStore) SaveTransition(_ context.Context, item *domain.WorkflowItem, expectedVersion int64, entry history.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.items[item.ID]
	if !ok {
		return apperrors.NewNotFound("item", nil)
	}
	if stored.Version != expectedVersion {
		return apperrors.NewConflictStale(map[string]any{"id": item.ID})
	}
	item.Version = expectedVersion + 1
	next := item.Clone()
	next.History = history.Log{}
	m.items[item.ID] = next
	m.entries[item.ID] = append(m.entries[item.ID], entry)
	return nil
}

func (m *memStore) Summary(context.Context) (domain.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[domain.Kind]map[domain.Status]int{}
	for _, item := range m.items {
		if counts[item.Kind] == nil {
			counts[item.Kind] = map[domain.Status]int{}
		}
		counts[item.Kind][item.Status]++
	}
	return domain.Summary{Counts: counts}, nil
}

func (m *memStore) ListByItem(ctx context.Context, itemID string) ([]history.Entry, error) {
	byItem, err := m.ListByItems(ctx, []string{itemID})
	return byItem[itemID], err
}

func (m *memStore) ListByItems(_ context.Context, itemIDs []string) (map[string][]history.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string][]history.Entry{}
	for _, id := range itemIDs {
		out[id] = append([]history.Entry(nil), m.entries[id]...)
	}
	return out, nil
}

// bump simulates a concurrent writer.
func (m *memStore) bump(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id].Version++
}

type memDepartments struct {
	depts map[string]domain.Department
}

func (d *memDepartments) GetByID(_ context.Context, id string) (*domain.Department, error) {
	dept, ok := d.depts[id]
	if !ok {
		return nil, apperrors.NewNotFound("department", map[string]any{"id": id})
	}
	return &dept, nil
}

func (d *memDepartments) ListActive(context.Context) ([]domain.Department, error) {
	var out []domain.Department
	for _, dept := range d.depts {
		if dept.IsActive {
			out = append(out, dept)
		}
	}
	return out, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingDispatcher) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (r *recordingDispatcher) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
