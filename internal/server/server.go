// Package server exposes the relay over HTTP: the chat endpoint, the SSE
// and WebSocket push channels, liveness, and metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/vijay5b3/SkillSpeak/internal/config"
	"github.com/vijay5b3/SkillSpeak/internal/metrics"
	"github.com/vijay5b3/SkillSpeak/internal/profile"
	"github.com/vijay5b3/SkillSpeak/internal/relay"
	"github.com/vijay5b3/SkillSpeak/internal/upstream"
)

// Server is the relay's HTTP front end.
type Server struct {
	cfg      *config.Config
	registry *relay.Registry
	upstream *upstream.Client
	profiles *profile.Store
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	upgrader websocket.Upgrader
	server   *http.Server

	shutdownMu     sync.RWMutex
	isShuttingDown bool
}

// New creates the HTTP server around an already-wired relay.
func New(cfg *config.Config, registry *relay.Registry, client *upstream.Client, profiles *profile.Store, logger zerolog.Logger, m *metrics.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		registry: registry,
		upstream: client,
		profiles: profiles,
		metrics:  m,
		logger:   logger.With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Browser and overlay clients connect from arbitrary origins
				return true
			},
		},
	}
}

// Handler returns the full route tree. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.withCORS(s.handleChat))
	mux.HandleFunc("/events", s.withCORS(s.handleEvents))
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

// Start begins serving. It does not block.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.cfg.Server.Addr(),
		Handler: s.Handler(),
	}

	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting relay server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Relay server error")
		}
	}()

	return nil
}

// Stop drains the server. New push connections are refused while in-flight
// requests get the shutdown timeout to complete.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	if s.server == nil {
		return nil
	}

	s.logger.Info().Msg("Shutting down relay server")

	// Push subscribers hold their connections open indefinitely; closing
	// them here lets Shutdown return within the timeout.
	s.registry.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Relay server stopped")
	return nil
}

func (s *Server) shuttingDown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.isShuttingDown
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	stats := s.registry.GetStats()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":            "ok",
		"sessions":          stats.Sessions,
		"subscribers":       stats.Subscribers,
		"legacySubscribers": stats.LegacySubscribers,
	})
}

// withCORS answers preflight requests and opens the endpoint to browser
// clients on other origins.
func (s *Server) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Client-Id, X-Source")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

// sessionFrom extracts the session id from the query or header, query
// winning. Empty means the legacy unscoped group.
func sessionFrom(r *http.Request) string {
	if v := r.URL.Query().Get("clientId"); v != "" {
		return v
	}
	return r.Header.Get("X-Client-Id")
}

// sourceFrom extracts the client source tag, for example "web" or "overlay".
func sourceFrom(r *http.Request) string {
	if v := r.URL.Query().Get("source"); v != "" {
		return v
	}
	return r.Header.Get("X-Source")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{"message": message},
	})
}
