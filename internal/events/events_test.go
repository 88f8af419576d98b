package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/factory-workflow/internal/domain"
)

func TestEventType_Kinds(t *testing.T) {
	require.Equal(t, []domain.Kind{domain.KindIncident}, EventIncidentUpdated.Kinds())
	require.Equal(t, []domain.Kind{domain.KindPublicIdea, domain.KindSensitiveIdea}, EventIdeaCreated.Kinds())
	require.Nil(t, EventType("ticket_created").Kinds())

	require.Equal(t, EventIdeaCreated, CreatedEvent(domain.KindSensitiveIdea))
	require.Equal(t, EventIncidentUpdated, UpdatedEvent(domain.KindIncident))
}

func TestDispatcher_ContinuesAfterHandlerError(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	var calls []string
	d.Subscribe(EventIncidentUpdated, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	d.Subscribe(EventIncidentUpdated, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventIdeaUpdated, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventIncidentUpdated, ItemID: "i-1"}))
	require.Equal(t, []string{"first", "second"}, calls)
}

func TestRedisPublisher_PublishesCoarseInvalidation(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	sub := client.Subscribe(ctx, "workflow:test")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPublisher(client, "workflow:test")
	require.NoError(t, pub.Handle(ctx, Event{
		Type:   EventIdeaUpdated,
		ItemID: "idea-1",
		Kind:   domain.KindSensitiveIdea,
		Payload: TransitionPayload{
			Action: "forward", OldStatus: domain.StatusNew, NewStatus: domain.StatusForwarded,
		},
	}))

	select {
	case msg := <-sub.Channel():
		var inv Invalidation
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &inv))
		require.Equal(t, Invalidation{EntityKind: "idea", EventType: EventIdeaUpdated}, inv)
		require.NotContains(t, msg.Payload, "idea-1")
	case <-time.After(2 * time.Second):
		t.Fatal("no invalidation received")
	}
}
