package push

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisSource receives invalidations relayed by the API server.
type RedisSource struct {
	client  *redis.Client
	channel string
}

// NewRedisSource subscribes to channel on client.
func NewRedisSource(client *redis.Client, channel string) *RedisSource {
	return &RedisSource{client: client, channel: channel}
}

// Run implements Source.
func (s *RedisSource) Run(ctx context.Context, handle Handler) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			if name, ok := ParseMessage([]byte(msg.Payload)); ok {
				handle(name)
			}
		}
	}
}
