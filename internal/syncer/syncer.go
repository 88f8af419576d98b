package syncer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/factory-workflow/internal/domain"
	"github.com/spec-kit/factory-workflow/internal/events"
	"github.com/spec-kit/factory-workflow/internal/push"
)

// Syncer owns one Collection per kind, routes invalidations to them and runs
// the fallback summary poll.
type Syncer struct {
	api         API
	collections map[domain.Kind]*Collection
	logger      *zap.Logger

	mu      sync.Mutex
	summary domain.Summary
	polled  bool
}

// New creates collections for kinds (all kinds when empty).
func New(api API, kinds []domain.Kind, opts ...Option) *Syncer {
	if len(kinds) == 0 {
		kinds = domain.Kinds
	}
	s := &Syncer{api: api, collections: make(map[domain.Kind]*Collection, len(kinds)), logger: zap.NewNop()}
	for _, kind := range kinds {
		c := NewCollection(kind, api, opts...)
		s.collections[kind] = c
	}
	base := &Collection{logger: zap.NewNop()}
	for _, opt := range opts {
		opt.apply(base)
	}
	s.logger = base.logger
	return s
}

// Collection returns the collection for kind.
func (s *Syncer) Collection(kind domain.Kind) (*Collection, bool) {
	c, ok := s.collections[kind]
	return c, ok
}

// Load refreshes every collection.
func (s *Syncer) Load(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range s.collections {
		g.Go(func() error { return ignoreSuperseded(c.RefreshWithRetry(gctx)) })
	}
	return g.Wait()
}

// Invalidate refetches every collection the event names. Unknown names are
// ignored; incident events touch only the incident collection and idea
// events touch both idea collections.
func (s *Syncer) Invalidate(ctx context.Context, event events.EventType) error {
	kinds := event.Kinds()
	if len(kinds) == 0 {
		s.logger.Debug("ignoring unknown push event", zap.String("event", string(event)))
		return nil
	}
	var g errgroup.Group
	for _, kind := range kinds {
		c, ok := s.collections[kind]
		if !ok {
			continue
		}
		g.Go(func() error { return ignoreSuperseded(c.RefreshWithRetry(ctx)) })
	}
	return g.Wait()
}

// PushHandler adapts Invalidate to a push.Handler. Each event is handled on
// its own goroutine so a slow refetch never blocks the channel.
func (s *Syncer) PushHandler(ctx context.Context) push.Handler {
	return func(event events.EventType) {
		go func() {
			if err := s.Invalidate(ctx, event); err != nil && ctx.Err() == nil {
				s.logger.Warn("invalidation refetch failed", zap.String("event", string(event)), zap.Error(err))
			}
		}()
	}
}

// Summary returns the last polled counts.
func (s *Syncer) Summary() domain.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// PollOnce fetches summary counts. Kinds whose counts moved since the
// previous poll are refetched, covering missed push events.
func (s *Syncer) PollOnce(ctx context.Context) error {
	summary, err := s.api.Summary(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev, polled := s.summary, s.polled
	s.summary, s.polled = summary, true
	s.mu.Unlock()

	if !polled {
		return nil
	}
	var g errgroup.Group
	for kind, c := range s.collections {
		if reflect.DeepEqual(nonEmpty(prev.Counts[kind]), nonEmpty(summary.Counts[kind])) {
			continue
		}
		g.Go(func() error { return ignoreSuperseded(c.RefreshWithRetry(ctx)) })
	}
	return g.Wait()
}

// StartPolling schedules PollOnce every interval. The returned function
// stops the schedule and waits for a running poll to finish.
func (s *Syncer) StartPolling(ctx context.Context, interval time.Duration) (func(), error) {
	if interval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}
	sched := cron.New()
	_, err := sched.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if err := s.PollOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("summary poll failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule poll: %w", err)
	}
	sched.Start()
	return func() { <-sched.Stop().Done() }, nil
}

func ignoreSuperseded(err error) error {
	if errors.Is(err, ErrSuperseded) {
		return nil
	}
	return err
}

func nonEmpty(m map[domain.Status]int) map[domain.Status]int {
	out := make(map[domain.Status]int, len(m))
	for k, v := range m {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}
