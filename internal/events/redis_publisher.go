package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher relays coarse invalidations to a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher bound to channel.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Channel returns the target channel name.
func (p *RedisPublisher) Channel() string {
	return p.channel
}

// Handle publishes the invalidation for e; it satisfies EventHandler.
func (p *RedisPublisher) Handle(ctx context.Context, e Event) error {
	if p == nil || p.client == nil {
		return nil
	}
	body, err := json.Marshal(InvalidationFor(e))
	if err != nil {
		return fmt.Errorf("encode invalidation: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	return nil
}
