package push

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
)

// WebsocketSource reads invalidations from an external push endpoint.
type WebsocketSource struct {
	url    string
	token  string
	dialer *websocket.Dialer
}

// NewWebsocketSource creates a source for url; token is sent as a bearer header when set.
func NewWebsocketSource(url, token string) *WebsocketSource {
	return &WebsocketSource{url: url, token: token, dialer: websocket.DefaultDialer}
}

// Run implements Source.
func (s *WebsocketSource) Run(ctx context.Context, handle Handler) error {
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}
	conn, _, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if name, ok := ParseMessage(payload); ok {
			handle(name)
		}
	}
}
