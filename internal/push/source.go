// Package push delivers coarse invalidation events to the sync layer.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/factory-workflow/internal/events"
)

// Handler receives one event name per delivered message. Delivery is
// at-least-once and unordered.
type Handler func(events.EventType)

// Source is a push channel. Run blocks until ctx ends or the channel drops.
type Source interface {
	Run(ctx context.Context, handle Handler) error
}

// ParseMessage extracts the event name from a push payload. It accepts
// {"event_type": ...}, {"event": ...}, {"type": ...}, a JSON string or a bare name.
func ParseMessage(payload []byte) (events.EventType, bool) {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return "", false
	}
	switch trimmed[0] {
	case '{':
		var msg struct {
			EventType string `json:"event_type"`
			Event     string `json:"event"`
			Type      string `json:"type"`
		}
		if err := json.Unmarshal([]byte(trimmed), &msg); err != nil {
			return "", false
		}
		for _, name := range []string{msg.EventType, msg.Event, msg.Type} {
			if name != "" {
				return events.EventType(name), true
			}
		}
		return "", false
	case '"':
		var name string
		if err := json.Unmarshal([]byte(trimmed), &name); err != nil || name == "" {
			return "", false
		}
		return events.EventType(name), true
	}
	return events.EventType(trimmed), true
}

const defaultReconnectDelay = 500 * time.Millisecond

var waitFor = time.After

// Listen runs src until ctx ends, reconnecting after failures with a delay
// that doubles up to maxDelay. A session that delivered at least one message
// counts as connected and resets the delay to base.
func Listen(ctx context.Context, src Source, handle Handler, base, maxDelay time.Duration, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if base <= 0 {
		base = defaultReconnectDelay
	}
	if maxDelay < base {
		maxDelay = base
	}
	delay := base
	for {
		var delivered atomic.Bool
		err := src.Run(ctx, func(event events.EventType) {
			delivered.Store(true)
			handle(event)
		})
		if ctx.Err() != nil {
			return
		}
		if delivered.Load() {
			delay = base
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("push channel dropped", zap.Error(err), zap.Duration("retry_in", delay))
		}
		select {
		case <-ctx.Done():
			return
		case <-waitFor(delay):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
