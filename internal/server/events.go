package server

import (
	"fmt"
	"net/http"

	"github.com/vijay5b3/SkillSpeak/internal/relay"
)

// handleEvents is the SSE push channel. One long-lived response per
// connection: an immediate connection-acknowledgement comment, then one
// `data:` frame per broadcast StreamEvent.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.shuttingDown() {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Acknowledge before any frame so the client can tell a live channel
	// from a hung request.
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	sub := s.registry.Subscribe(sessionFrom(r), relay.TransportSSE, sourceFrom(r))
	defer s.registry.Unsubscribe(sub)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.Done():
			return
		case frame := <-sub.Frames():
			if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
