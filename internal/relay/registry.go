package relay

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vijay5b3/SkillSpeak/internal/metrics"
)

// Registry is the process-wide session registry. It multiplexes named
// sessions and the legacy unscoped subscriber group. State starts empty on
// process start and is dropped on process exit; nothing is persisted.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	legacy   map[string]*Subscriber

	grace   time.Duration
	buffer  int
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewRegistry creates an empty registry.
func NewRegistry(grace time.Duration, buffer int, logger zerolog.Logger, m *metrics.Metrics) *Registry {
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	return &Registry{
		sessions: make(map[string]*Session),
		legacy:   make(map[string]*Subscriber),
		grace:    grace,
		buffer:   buffer,
		logger:   logger.With().Str("component", "registry").Logger(),
		metrics:  m,
	}
}

// Canonical normalizes a session id at the relay boundary. Clients
// lower-case ids inconsistently, so matching is case-insensitive here.
func Canonical(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Resolve returns the session for id, creating it if absent. It never
// fails. An empty id has no session; Resolve returns nil for it.
func (r *Registry) Resolve(id string) *Session {
	id = Canonical(id)
	if id == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(id)
}

func (r *Registry) resolveLocked(id string) *Session {
	if session, ok := r.sessions[id]; ok {
		return session
	}

	session := newSession(id)
	r.sessions[id] = session

	if r.metrics != nil {
		r.metrics.SessionsTotal.Inc()
		r.metrics.SessionsActive.Set(float64(len(r.sessions)))
	}
	r.logger.Info().Str("sessionId", id).Msg("Session created")

	return session
}

// Subscribe attaches a new subscriber. An empty session id joins the
// legacy unscoped group. A subscribe arriving before a pending reap fires
// cancels the removal.
func (r *Registry) Subscribe(sessionID, transport, source string) *Subscriber {
	id := Canonical(sessionID)
	sub := NewSubscriber(id, transport, source, r.buffer)

	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		r.legacy[sub.ID] = sub
		r.logger.Info().
			Str("subscriberId", sub.ID).
			Str("transport", transport).
			Int("legacyClients", len(r.legacy)).
			Msg("Subscriber connected (legacy)")
	} else {
		session := r.resolveLocked(id)
		session.addSubscriber(sub)
		r.logger.Info().
			Str("sessionId", id).
			Str("subscriberId", sub.ID).
			Str("transport", transport).
			Str("source", source).
			Int("sessionClients", session.subscriberCount()).
			Msg("Subscriber connected")
	}

	if r.metrics != nil {
		r.metrics.SubscribersConnected.WithLabelValues(transport).Inc()
	}

	return sub
}

// Unsubscribe detaches a subscriber on transport close. Unknown
// subscribers are a no-op. When a session's last subscriber leaves, the
// session is scheduled for reaping after the grace period.
func (r *Registry) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	sub.Close()

	r.mu.Lock()
	defer r.mu.Unlock()

	if sub.SessionID == "" {
		if _, ok := r.legacy[sub.ID]; !ok {
			return
		}
		delete(r.legacy, sub.ID)
		r.logger.Info().
			Str("subscriberId", sub.ID).
			Int("legacyClients", len(r.legacy)).
			Msg("Subscriber disconnected (legacy)")
	} else {
		session, ok := r.sessions[sub.SessionID]
		if !ok || !session.removeSubscriber(sub.ID) {
			return
		}
		r.logger.Info().
			Str("sessionId", session.ID).
			Str("subscriberId", sub.ID).
			Int("sessionClients", session.subscriberCount()).
			Msg("Subscriber disconnected")

		if session.subscriberCount() == 0 {
			r.scheduleReapLocked(session)
		}
	}

	if r.metrics != nil {
		r.metrics.SubscribersConnected.WithLabelValues(sub.Transport).Dec()
	}
}

// scheduleReapLocked arms the grace timer for an empty session. Caller
// holds the registry lock.
func (r *Registry) scheduleReapLocked(session *Session) {
	if session.reapTimer != nil {
		session.reapTimer.Stop()
	}
	id := session.ID
	session.reapTimer = time.AfterFunc(r.grace, func() {
		r.reapIfEmpty(id)
	})
}

// reapIfEmpty removes a session that has stayed empty for the whole grace
// period. A session with live subscribers is never removed.
func (r *Registry) reapIfEmpty(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok || session.subscriberCount() > 0 || session.lastEmptyAt.IsZero() {
		return
	}

	delete(r.sessions, id)
	if r.metrics != nil {
		r.metrics.SessionsReaped.Inc()
		r.metrics.SessionsActive.Set(float64(len(r.sessions)))
	}
	r.logger.Info().Str("sessionId", id).Msg("Cleaned up empty session")
}

// SweepExpired reaps every session that has been empty for longer than the
// grace period. Safety net behind the per-session timers; returns the
// number of sessions removed.
func (r *Registry) SweepExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	reaped := 0
	for id, session := range r.sessions {
		if session.subscriberCount() > 0 || session.lastEmptyAt.IsZero() {
			continue
		}
		if now.Sub(session.lastEmptyAt) < r.grace {
			continue
		}
		if session.reapTimer != nil {
			session.reapTimer.Stop()
		}
		delete(r.sessions, id)
		reaped++
		r.logger.Info().Str("sessionId", id).Msg("Cleaned up empty session (sweep)")
	}

	if reaped > 0 && r.metrics != nil {
		r.metrics.SessionsReaped.Add(float64(reaped))
		r.metrics.SessionsActive.Set(float64(len(r.sessions)))
	}

	return reaped
}

// Stats is a point-in-time view of registry state.
type Stats struct {
	Sessions          int
	Subscribers       int
	LegacySubscribers int
}

// GetStats returns current counts for housekeeping logs.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, session := range r.sessions {
		total += session.subscriberCount()
	}
	return Stats{
		Sessions:          len(r.sessions),
		Subscribers:       total,
		LegacySubscribers: len(r.legacy),
	}
}

// SessionSources returns the source tags recorded for a session, or nil if
// the session does not exist.
func (r *Registry) SessionSources(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[Canonical(id)]
	if !ok {
		return nil
	}
	return session.sources()
}

// HasSession reports whether a session currently exists.
func (r *Registry) HasSession(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.sessions[Canonical(id)]
	return ok
}

// Close shuts down every subscriber and drops all state.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, session := range r.sessions {
		if session.reapTimer != nil {
			session.reapTimer.Stop()
		}
		for _, sub := range session.subscribers {
			sub.Close()
		}
	}
	for _, sub := range r.legacy {
		sub.Close()
	}
	r.sessions = make(map[string]*Session)
	r.legacy = make(map[string]*Subscriber)

	r.logger.Info().Msg("Registry closed")
}
