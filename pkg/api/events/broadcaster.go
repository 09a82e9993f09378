// Package events fans decoded lifecycle events out to in-process listeners
// such as websocket streams.
package events

import (
	"sync"
	"time"

	"github.com/strainwise/convmem/pkg/eventbus"
)

// Event is the canonical event payload delivered to stream subscribers.
type Event struct {
	Type      string    `json:"type"`
	EventID   string    `json:"event_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// FromMemoryEvent converts a decoded bus event into a stream event.
func FromMemoryEvent(ev eventbus.MemoryEvent) Event {
	return Event{
		Type:      ev.Envelope.EventType,
		EventID:   ev.Envelope.EventID,
		UserID:    ev.Envelope.UserID,
		SessionID: ev.Envelope.SessionID,
		Timestamp: ev.Envelope.Timestamp,
		Payload:   ev.Payload,
	}
}

// Stream is one subscriber's view of the broadcaster.
type Stream struct {
	ch     chan Event
	userID string
}

// C returns the event channel. It is closed on Unsubscribe or Close.
func (s *Stream) C() <-chan Event {
	return s.ch
}

// Broadcaster broadcasts events to in-process subscribers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[*Stream]struct{}
	closed      bool
}

// NewBroadcaster creates a broadcaster instance.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[*Stream]struct{}),
	}
}

// Subscribe returns a stream of events for userID, or of every event when
// userID is empty.
func (b *Broadcaster) Subscribe(userID string, buffer int) *Stream {
	if buffer <= 0 {
		buffer = 16
	}
	s := &Stream{ch: make(chan Event, buffer), userID: userID}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s
	}
	b.subscribers[s] = struct{}{}
	return s
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(s *Stream) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[s]; !ok {
		return
	}
	delete(b.subscribers, s)
	close(s.ch)
}

// Broadcast delivers event to every matching subscriber. Slow subscribers
// lose events instead of blocking the relay.
func (b *Broadcaster) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subscribers {
		if s.userID != "" && s.userID != event.UserID {
			continue
		}
		select {
		case s.ch <- event:
		default:
		}
	}
}

// Subscribers returns the number of open streams.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for s := range b.subscribers {
		close(s.ch)
		delete(b.subscribers, s)
	}
}
