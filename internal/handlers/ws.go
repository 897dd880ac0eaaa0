// internal/handlers/ws.go
package handlers

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/promptclash/server/internal/middleware"
	"github.com/promptclash/server/internal/notify"
)

// LobbyWS streams lobby events to the client over a websocket.
func (s *Server) LobbyWS(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.Lobbies.Get(id); err != nil {
		writeError(w, err)
		return
	}
	s.streamChannel(w, r, notify.LobbyChannel(id))
}

// GameWS streams game events to the client over a websocket.
func (s *Server) GameWS(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.Games.Get(id); err != nil {
		writeError(w, err)
		return
	}
	s.streamChannel(w, r, notify.GameChannel(id))
}

// streamChannel upgrades the connection and forwards every event published on
// the Redis channel until the client goes away. Requires a configured
// notifier; without one the websocket surface is unavailable.
func (s *Server) streamChannel(w http.ResponseWriter, r *http.Request, channel string) {
	if s.Notifier == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event streaming is not configured",
		})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin checks are handled upstream
	})
	if err != nil {
		s.Logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, r.URL.Path)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := s.Notifier.Subscribe(ctx, channel)
	defer sub.Close()

	// Drain client frames so pings and close frames are processed; any read
	// error means the client is gone.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	streamErr := forwardEvents(ctx, sub.Channel(), func(payload []byte) error {
		return conn.Write(ctx, websocket.MessageText, payload)
	})

	middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, r.URL.Path, streamErr)
	conn.Close(websocket.StatusNormalClosure, "")
}

// forwardEvents pumps event payloads into write until the context is
// cancelled, the message channel closes, or a write fails. Selecting on the
// context keeps the forwarder from blocking on a quiet channel after the
// client has disconnected.
func forwardEvents(ctx context.Context, msgs <-chan *redis.Message, write func([]byte) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := write([]byte(msg.Payload)); err != nil {
				return err
			}
		}
	}
}
