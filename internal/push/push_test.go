package push

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/factory-workflow/internal/events"
)

func TestParseMessage(t *testing.T) {
	cases := map[string]events.EventType{
		`{"entity_kind":"idea","event_type":"idea_updated"}`: events.EventIdeaUpdated,
		`{"event":"incident_created"}`:                        events.EventIncidentCreated,
		`{"type":"incident_updated","id":"x"}`:                events.EventIncidentUpdated,
		`"idea_created"`:                                      events.EventIdeaCreated,
		"  incident_updated\n":                                events.EventIncidentUpdated,
	}
	for raw, want := range cases {
		got, ok := ParseMessage([]byte(raw))
		require.True(t, ok, raw)
		require.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"", "{}", `{"broken"`, `""`} {
		_, ok := ParseMessage([]byte(raw))
		require.False(t, ok, raw)
	}
}

func collect(t *testing.T, ch <-chan events.EventType, n int) []events.EventType {
	t.Helper()
	var got []events.EventType
	deadline := time.After(3 * time.Second)
	for len(got) < n {
		select {
		case name := <-ch:
			got = append(got, name)
		case <-deadline:
			t.Fatalf("received %d of %d events", len(got), n)
		}
	}
	return got
}

func TestRedisSource_DeliversEventNames(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan events.EventType, 4)
	errCh := make(chan error, 1)
	src := NewRedisSource(client, "inv")
	go func() { errCh <- src.Run(ctx, func(e events.EventType) { got <- e }) }()

	require.Eventually(t, func() bool {
		return len(srv.PubSubChannels("inv")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	srv.Publish("inv", `{"entity_kind":"incident","event_type":"incident_updated"}`)
	srv.Publish("inv", `idea_created`)

	require.Equal(t, []events.EventType{events.EventIncidentUpdated, events.EventIdeaCreated}, collect(t, got, 2))

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("source did not stop")
	}
}

func TestWebsocketSource_DeliversEventNames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"idea_updated"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`incident_created`))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan events.EventType, 4)
	errCh := make(chan error, 1)
	src := NewWebsocketSource("ws"+strings.TrimPrefix(srv.URL, "http"), "tok")
	go func() { errCh <- src.Run(ctx, func(e events.EventType) { got <- e }) }()

	require.Equal(t, []events.EventType{events.EventIdeaUpdated, events.EventIncidentCreated}, collect(t, got, 2))

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("source did not stop")
	}
}

type flakySource struct {
	runs int
}

func (f *flakySource) Run(ctx context.Context, handle Handler) error {
	f.runs++
	handle(events.EventIncidentUpdated)
	return context.DeadlineExceeded
}

func TestListen_ReconnectsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &flakySource{}
	count := 0
	Listen(ctx, src, func(events.EventType) {
		count++
		if count == 3 {
			cancel()
		}
	}, time.Millisecond, 4*time.Millisecond, nil)

	require.Equal(t, 3, src.runs)
	require.Equal(t, 3, count)
}

type scriptedSource struct {
	sessions []bool
	runs     int
	cancel   context.CancelFunc
}

func (s *scriptedSource) Run(ctx context.Context, handle Handler) error {
	if s.runs == len(s.sessions) {
		s.cancel()
		return ctx.Err()
	}
	if s.sessions[s.runs] {
		handle(events.EventIdeaUpdated)
	}
	s.runs++
	return errors.New("connection reset")
}

func recordWaits(t *testing.T) *[]time.Duration {
	t.Helper()
	var waits []time.Duration
	waitFor = func(d time.Duration) <-chan time.Time {
		waits = append(waits, d)
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}
	t.Cleanup(func() { waitFor = time.After })
	return &waits
}

func TestListen_BackoffResetsAfterConnectedSession(t *testing.T) {
	waits := recordWaits(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &scriptedSource{sessions: []bool{false, false, true, false, false, false}, cancel: cancel}

	Listen(ctx, src, func(events.EventType) {}, 10*time.Millisecond, 30*time.Millisecond, nil)

	require.Equal(t, []time.Duration{
		10 * time.Millisecond, 20 * time.Millisecond,
		10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond, 30 * time.Millisecond,
	}, *waits)
}

func TestListen_NonPositiveBaseUsesDefault(t *testing.T) {
	waits := recordWaits(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &scriptedSource{sessions: []bool{false, false}, cancel: cancel}

	Listen(ctx, src, func(events.EventType) {}, 0, 0, nil)

	require.Equal(t, []time.Duration{defaultReconnectDelay, defaultReconnectDelay}, *waits)
}
