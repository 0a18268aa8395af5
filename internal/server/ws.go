package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vijay5b3/SkillSpeak/internal/relay"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// handleWebSocket is the WebSocket push channel used by the desktop
// overlay. It carries the same StreamEvent frames as /events; the
// connection is push-only and inbound messages are ignored.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	sub := s.registry.Subscribe(sessionFrom(r), relay.TransportWebSocket, sourceFrom(r))

	// Reader exists only to observe the close handshake.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.registry.Unsubscribe(sub)
				return
			}
		}
	}()

	go s.writeLoop(conn, sub)
}

func (s *Server) writeLoop(conn *websocket.Conn, sub *relay.Subscriber) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
		s.registry.Unsubscribe(sub)
	}()

	for {
		select {
		case <-sub.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(wsWriteTimeout))
			return
		case frame := <-sub.Frames():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Debug().Err(err).Str("subscriberId", sub.ID).Msg("WebSocket write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}
