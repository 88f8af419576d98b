package worker

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/factory-workflow/internal/events"
	"github.com/spec-kit/factory-workflow/internal/service"
)

// StartInvalidationRelay subscribes the event log to dispatcher and, when a
// Redis client is available, relays each event to channel as a coarse
// invalidation.
func StartInvalidationRelay(dispatcher events.Dispatcher, client *redis.Client, channel string, logger *zap.Logger) *service.NotificationService {
	var relay events.EventHandler
	if client != nil && channel != "" {
		relay = events.NewRedisPublisher(client, channel).Handle
	}
	notifications := service.NewNotificationService(dispatcher, logger, relay)
	notifications.RegisterHandlers()
	return notifications
}
