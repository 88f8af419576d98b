package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/factory-workflow/internal/events"
)

// NotificationService logs item events and relays them as coarse
// invalidations to connected clients.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	relay      events.EventHandler
}

// NewNotificationService creates the service. relay may be nil, in which
// case events are only logged.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, relay events.EventHandler) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		relay:      relay,
	}
}

// RegisterHandlers subscribes to every item event.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.EventTypes {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	n.logger.Info("item event",
		zap.String("event", string(event.Type)),
		zap.String("item_id", event.ItemID),
		zap.String("kind", string(event.Kind)),
		zap.String("actor", event.Actor.ID),
		zap.Any("payload", event.Payload),
	)
	if n.relay == nil {
		return nil
	}
	return n.relay(ctx, event)
}
