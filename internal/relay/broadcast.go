package relay

// Broadcast fans an event out to every subscriber of the named session, or
// to the legacy unscoped group when sessionID is empty. The two groups are
// mutually exclusive: a session-scoped event never reaches legacy
// subscribers and vice versa.
//
// Broadcast is fire-and-forget. A failed write to one subscriber is logged
// and counted but neither aborts delivery to the rest nor evicts the
// subscriber; eviction happens only when the transport reports the
// connection closed. Broadcasting to an id with no live session delivers
// nothing and creates nothing.
func (r *Registry) Broadcast(sessionID string, event StreamEvent) {
	frame, err := event.Encode()
	if err != nil {
		// Never send a malformed frame; drop it instead.
		r.logger.Error().
			Err(err).
			Str("type", string(event.Type)).
			Msg("Failed to serialize event, frame dropped")
		return
	}

	id := Canonical(sessionID)
	scope := "session"

	var subs []*Subscriber
	r.mu.RLock()
	if id == "" {
		scope = "legacy"
		subs = make([]*Subscriber, 0, len(r.legacy))
		for _, sub := range r.legacy {
			subs = append(subs, sub)
		}
	} else if session, ok := r.sessions[id]; ok {
		subs = session.snapshot()
	}
	r.mu.RUnlock()

	if len(subs) == 0 {
		r.logger.Debug().
			Str("sessionId", id).
			Str("type", string(event.Type)).
			Msg("No subscribers to broadcast to")
		return
	}

	success := 0
	failed := 0
	for _, sub := range subs {
		if err := sub.enqueue(frame); err != nil {
			r.logger.Warn().
				Err(err).
				Str("sessionId", id).
				Str("subscriberId", sub.ID).
				Str("type", string(event.Type)).
				Msg("Failed to write to subscriber")
			failed++
			if r.metrics != nil {
				r.metrics.FramesDroppedTotal.Inc()
			}
		} else {
			success++
		}
	}

	if r.metrics != nil {
		r.metrics.BroadcastsTotal.WithLabelValues(scope, string(event.Type)).Inc()
	}
	r.logger.Debug().
		Str("sessionId", id).
		Str("scope", scope).
		Str("type", string(event.Type)).
		Int("success", success).
		Int("failed", failed).
		Msg("Event broadcast complete")
}
