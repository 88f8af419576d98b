package syncer

import (
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/factory-workflow/internal/config"
	"github.com/spec-kit/factory-workflow/internal/domain"
	"github.com/spec-kit/factory-workflow/internal/observability"
	"github.com/spec-kit/factory-workflow/internal/workflow"
)

// Option customizes a Collection or a Syncer.
type Option interface {
	apply(*Collection)
}

type optionFunc func(*Collection)

func (f optionFunc) apply(c *Collection) { f(c) }

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(c *Collection) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithMetrics records refetch and transition outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return optionFunc(func(c *Collection) {
		c.metrics = m
	})
}

// WithEngine replaces the engine used for optimistic mutations.
func WithEngine(e *workflow.Engine) Option {
	return optionFunc(func(c *Collection) {
		if e != nil {
			c.engine = e
		}
	})
}

// WithFilter narrows what the collection fetches.
func WithFilter(f domain.ItemFilter) Option {
	return optionFunc(func(c *Collection) {
		c.filter = f
	})
}

// WithRetryPolicy overrides the refetch backoff.
func WithRetryPolicy(p RetryPolicy) Option {
	return optionFunc(func(c *Collection) {
		c.retry = p
	})
}

// RetryPolicy is an exponential backoff for failed refetches.
type RetryPolicy struct {
	Base     time.Duration
	Max      time.Duration
	Attempts int
}

// DefaultRetryPolicy starts at 500ms, caps at 30s and gives up after 5 attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Base: 500 * time.Millisecond, Max: 30 * time.Second, Attempts: 5}
}

// RetryPolicyFromConfig builds a policy from sync settings.
func RetryPolicyFromConfig(cfg config.SyncConfig) RetryPolicy {
	p := DefaultRetryPolicy()
	if cfg.RetryBaseMillis > 0 {
		p.Base = cfg.RetryBase()
	}
	if cfg.RetryMaxMillis > 0 {
		p.Max = cfg.RetryMax()
	}
	if cfg.RetryAttempts > 0 {
		p.Attempts = cfg.RetryAttempts
	}
	return p
}

// Delay returns the wait before retry number attempt (zero based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.Max > 0 && d >= p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

func (p RetryPolicy) attempts() int {
	if p.Attempts <= 0 {
		return 1
	}
	return p.Attempts
}
