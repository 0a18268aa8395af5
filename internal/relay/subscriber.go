package relay

import (
	"errors"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Transport names for subscriber connections.
const (
	TransportSSE       = "sse"
	TransportWebSocket = "ws"
)

// ErrQueueFull is returned when a subscriber's outbound buffer is full.
// The frame is dropped for that subscriber; the subscriber itself stays
// registered until the transport reports the connection dead.
var ErrQueueFull = errors.New("subscriber queue full")

// ErrClosed is returned when writing to a closed subscriber.
var ErrClosed = errors.New("subscriber closed")

// Subscriber is one long-lived push connection. The transport handler owns
// the connection and drains Frames; the registry owns membership.
type Subscriber struct {
	ID          string
	SessionID   string // canonical session id, empty for the legacy group
	Transport   string
	Source      string
	ConnectedAt time.Time

	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

// NewSubscriber creates a subscriber with a buffered outbound queue.
func NewSubscriber(sessionID, transport, source string, buffer int) *Subscriber {
	id, _ := gonanoid.New()
	if buffer <= 0 {
		buffer = 256
	}
	return &Subscriber{
		ID:          id,
		SessionID:   sessionID,
		Transport:   transport,
		Source:      source,
		ConnectedAt: time.Now(),
		frames:      make(chan []byte, buffer),
		done:        make(chan struct{}),
	}
}

// Frames returns the outbound frame queue for the transport to drain.
func (s *Subscriber) Frames() <-chan []byte {
	return s.frames
}

// Done is closed when the subscriber is shut down.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Close shuts down the subscriber. Safe to call more than once.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// enqueue writes a serialized frame without blocking. A full queue or a
// closed subscriber yields an error; the caller decides what to log.
func (s *Subscriber) enqueue(frame []byte) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	select {
	case s.frames <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}
