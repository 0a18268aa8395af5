package relay

import (
	"time"
)

// Session is one isolated conversation context with its own set of live
// subscribers. All fields are guarded by the owning Registry's lock.
type Session struct {
	ID          string
	subscribers map[string]*Subscriber
	sourceTags  map[string]struct{}
	createdAt   time.Time

	// lastEmptyAt is set when the subscriber count reaches zero and
	// cleared on the next subscribe. The reaper uses it.
	lastEmptyAt time.Time
	reapTimer   *time.Timer
}

func newSession(id string) *Session {
	return &Session{
		ID:          id,
		subscribers: make(map[string]*Subscriber),
		sourceTags:  make(map[string]struct{}),
		createdAt:   time.Now(),
	}
}

// SubscriberCount returns the number of live subscribers. Caller must hold
// the registry lock; exported snapshots go through Registry.Stats.
func (s *Session) subscriberCount() int {
	return len(s.subscribers)
}

// Sources returns the source tags seen on this session, observability only.
func (s *Session) sources() []string {
	out := make([]string, 0, len(s.sourceTags))
	for tag := range s.sourceTags {
		out = append(out, tag)
	}
	return out
}

func (s *Session) addSubscriber(sub *Subscriber) {
	s.subscribers[sub.ID] = sub
	if sub.Source != "" {
		s.sourceTags[sub.Source] = struct{}{}
	}
	s.lastEmptyAt = time.Time{}
	if s.reapTimer != nil {
		s.reapTimer.Stop()
		s.reapTimer = nil
	}
}

func (s *Session) removeSubscriber(id string) bool {
	if _, ok := s.subscribers[id]; !ok {
		return false
	}
	delete(s.subscribers, id)
	if len(s.subscribers) == 0 {
		s.lastEmptyAt = time.Now()
	}
	return true
}

func (s *Session) snapshot() []*Subscriber {
	subs := make([]*Subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	return subs
}
