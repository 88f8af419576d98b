// Package syncer keeps client side collections of workflow items eventually
// consistent with the API server.
package syncer

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/factory-workflow/internal/api/dto"
	"github.com/spec-kit/factory-workflow/internal/domain"
	"github.com/spec-kit/factory-workflow/internal/observability"
	"github.com/spec-kit/factory-workflow/internal/ordering"
	"github.com/spec-kit/factory-workflow/internal/workflow"
	apperrors "github.com/spec-kit/factory-workflow/pkg/util/errorutil"
)

// ErrSuperseded is returned by Refresh when a newer refetch was started
// before this one completed. Its response is discarded.
var ErrSuperseded = errors.New("refetch superseded by a newer request")

// API is the subset of the REST client used by the sync layer.
type API interface {
	List(ctx context.Context, kind domain.Kind, filter domain.ItemFilter) ([]*domain.WorkflowItem, error)
	Transition(ctx context.Context, kind domain.Kind, id string, req dto.TransitionRequest) (*domain.WorkflowItem, error)
	Summary(ctx context.Context) (domain.Summary, error)
}

// Listener observes a ranked snapshot after every visible change.
type Listener func(kind domain.Kind, items []*domain.WorkflowItem)

// undoEntry records the state an optimistic mutation replaced.
type undoEntry struct {
	id     string
	before *domain.WorkflowItem
	after  *domain.WorkflowItem
}

// Collection holds the items of one kind. All mutation goes through the
// transition path (Submit) or the reconciliation path (Refresh), both under mu.
type Collection struct {
	kind    domain.Kind
	api     API
	engine  *workflow.Engine
	filter  domain.ItemFilter
	retry   RetryPolicy
	logger  *zap.Logger
	metrics *observability.Metrics

	mu        sync.Mutex
	items     map[string]*domain.WorkflowItem
	order     []string
	loaded    bool
	seq       uint64
	inflight  map[string]chan struct{}
	undo      []undoEntry
	listeners []Listener
}

// NewCollection creates an empty collection for kind.
func NewCollection(kind domain.Kind, api API, opts ...Option) *Collection {
	c := &Collection{
		kind:     kind,
		api:      api,
		engine:   workflow.NewEngine(),
		retry:    DefaultRetryPolicy(),
		logger:   zap.NewNop(),
		items:    map[string]*domain.WorkflowItem{},
		inflight: map[string]chan struct{}{},
	}
	for _, opt := range opts {
		opt.apply(c)
	}
	c.logger = c.logger.With(zap.String("kind", string(kind)))
	return c
}

// Kind returns the kind held by the collection.
func (c *Collection) Kind() domain.Kind {
	return c.kind
}

// Subscribe registers l for change notifications.
func (c *Collection) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Loaded reports whether at least one refetch has been applied.
func (c *Collection) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Items returns a ranked copy of the items in the collection's queue.
// Escalated items leave the current-level queue.
func (c *Collection) Items() []*domain.WorkflowItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Get returns a copy of one item.
func (c *Collection) Get(id string) (*domain.WorkflowItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[id]
	if !ok {
		return nil, false
	}
	return item.Clone(), true
}

// PendingMutations returns the number of optimistic mutations awaiting the server.
func (c *Collection) PendingMutations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.undo)
}

// Submit applies req optimistically, then confirms it with the server.
// Transitions on the same item are serialized: a second call waits for the
// first to resolve. On failure the optimistic state is rolled back unless a
// refetch already replaced it; ConflictStale also triggers a refetch.
func (c *Collection) Submit(ctx context.Context, actor domain.Actor, id string, req workflow.Request) (*domain.WorkflowItem, error) {
	release, err := c.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	c.mu.Lock()
	current, ok := c.items[id]
	if !ok {
		c.mu.Unlock()
		return nil, apperrors.NewNotFound(string(c.kind), map[string]any{"id": id})
	}
	optimistic, err := c.engine.Apply(current, actor, req)
	if err != nil {
		c.mu.Unlock()
		c.metrics.RecordTransition(string(c.kind), string(req.Action), apperrors.Code(err))
		return nil, err
	}
	entry := undoEntry{id: id, before: current, after: optimistic}
	c.undo = append(c.undo, entry)
	c.items[id] = optimistic
	snap := c.snapshotLocked()
	listeners := c.listeners
	c.mu.Unlock()
	notify(listeners, c.kind, snap)

	expected := current.Version
	confirmed, err := c.api.Transition(ctx, c.kind, id, dto.TransitionRequest{
		Action:          req.Action,
		Payload:         req.Payload,
		ExpectedVersion: &expected,
	})

	c.mu.Lock()
	c.dropUndoLocked(entry)
	changed := false
	if err != nil {
		if c.items[id] == optimistic {
			c.items[id] = entry.before
			changed = true
		}
	} else if held, ok := c.items[id]; !ok || held == optimistic || held.Version <= confirmed.Version {
		if !ok {
			c.order = append(c.order, id)
		}
		c.items[id] = confirmed
		changed = true
	}
	if changed {
		snap = c.snapshotLocked()
	}
	listeners = c.listeners
	c.mu.Unlock()
	if changed {
		notify(listeners, c.kind, snap)
	}

	if err != nil {
		c.metrics.RecordTransition(string(c.kind), string(req.Action), apperrors.Code(err))
		c.logger.Info("transition rolled back",
			zap.String("item_id", id),
			zap.String("action", string(req.Action)),
			zap.String("code", apperrors.Code(err)),
		)
		if apperrors.Is(err, apperrors.CodeConflictStale) {
			if rerr := c.RefreshWithRetry(ctx); rerr != nil && !errors.Is(rerr, ErrSuperseded) {
				c.logger.Warn("refetch after conflict failed", zap.Error(rerr))
			}
		}
		return nil, err
	}
	c.metrics.RecordTransition(string(c.kind), string(req.Action), "ok")
	return confirmed.Clone(), nil
}

// Refresh refetches the whole collection and replaces it wholesale. Only the
// most recently started refetch may apply its response; older responses are
// discarded with ErrSuperseded. Listeners are notified only when the
// replacement is observable. A failed refetch leaves state untouched.
func (c *Collection) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	fetched, err := c.api.List(ctx, c.kind, c.filter)

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		c.metrics.RecordRefetch(string(c.kind), observability.RefetchDiscarded)
		c.logger.Debug("discarding superseded refetch", zap.Uint64("seq", seq))
		return ErrSuperseded
	}
	if err != nil {
		c.mu.Unlock()
		c.metrics.RecordRefetch(string(c.kind), observability.RefetchFailed)
		return err
	}

	items := make(map[string]*domain.WorkflowItem, len(fetched))
	order := make([]string, 0, len(fetched))
	for _, it := range fetched {
		if it == nil || it.Kind != c.kind || !c.filter.InQueue(it) {
			continue
		}
		if _, dup := items[it.ID]; !dup {
			order = append(order, it.ID)
		}
		items[it.ID] = it
	}

	wasLoaded := c.loaded
	c.loaded = true
	if wasLoaded && sameItems(c.items, items) {
		c.mu.Unlock()
		c.metrics.RecordRefetch(string(c.kind), observability.RefetchUnchanged)
		return nil
	}
	c.items = items
	c.order = order
	snap := c.snapshotLocked()
	listeners := c.listeners
	c.mu.Unlock()

	c.metrics.RecordRefetch(string(c.kind), observability.RefetchApplied)
	notify(listeners, c.kind, snap)
	return nil
}

// RefreshWithRetry retries transient refetch failures with exponential
// backoff. It stops early when superseded or when ctx ends.
func (c *Collection) RefreshWithRetry(ctx context.Context) error {
	var err error
	for attempt := 0; attempt < c.retry.attempts(); attempt++ {
		err = c.Refresh(ctx)
		if err == nil || errors.Is(err, ErrSuperseded) {
			return err
		}
		if de := apperrors.ToDomainError(err); !de.Recoverable() {
			return err
		}
		delay := c.retry.Delay(attempt)
		c.logger.Warn("refetch failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func (c *Collection) acquire(ctx context.Context, id string) (func(), error) {
	for {
		c.mu.Lock()
		wait, busy := c.inflight[id]
		if !busy {
			done := make(chan struct{})
			c.inflight[id] = done
			c.mu.Unlock()
			return func() {
				c.mu.Lock()
				delete(c.inflight, id)
				c.mu.Unlock()
				close(done)
			}, nil
		}
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

func (c *Collection) dropUndoLocked(entry undoEntry) {
	for i := range c.undo {
		if c.undo[i].after == entry.after {
			c.undo = append(c.undo[:i], c.undo[i+1:]...)
			return
		}
	}
}

func (c *Collection) snapshotLocked() []*domain.WorkflowItem {
	out := make([]*domain.WorkflowItem, 0, len(c.order))
	for _, id := range c.order {
		if it, ok := c.items[id]; ok && c.filter.InQueue(it) {
			out = append(out, it.Clone())
		}
	}
	return ordering.Sort(out, ordering.ParseDirection(c.filter.Direction))
}

func notify(listeners []Listener, kind domain.Kind, snap []*domain.WorkflowItem) {
	for _, l := range listeners {
		l(kind, snap)
	}
}

func sameItems(a, b map[string]*domain.WorkflowItem) bool {
	if len(a) != len(b) {
		return false
	}
	for id, x := range a {
		y, ok := b[id]
		if !ok || !reflect.DeepEqual(x, y) {
			return false
		}
	}
	return true
}
