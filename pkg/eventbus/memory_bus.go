package eventbus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Message is a delivered event-bus message.
type Message struct {
	Subject   string
	Payload   []byte
	Timestamp time.Time
}

// Subscriber opens pattern subscriptions.
type Subscriber interface {
	Subscribe(pattern string, buffer int) (*Subscription, error)
}

// Bus is a transport that can also be subscribed to.
type Bus interface {
	Transport
	Subscriber
	Close() error
}

// Subscription represents a stream subscription.
type Subscription struct {
	ch      chan Message
	release func()
	once    sync.Once
}

// C returns read-only message channel.
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// Close removes the subscription and closes its channel.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
		close(s.ch)
	})
	return nil
}

var _ Bus = (*MemoryBus)(nil)

// MemoryBus is an in-process pub/sub transport for single-node deployments and tests.
type MemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Message
	subs        map[*Subscription]struct{}
	closed      bool
}

// NewMemoryBus creates an in-memory event bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subscribers: make(map[string][]chan Message),
		subs:        make(map[*Subscription]struct{}),
	}
}

// Publish publishes to all matching subscriptions.
func (b *MemoryBus) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if subject == "" {
		return fmt.Errorf("eventbus: subject cannot be empty")
	}

	msg := Message{
		Subject:   subject,
		Payload:   append([]byte(nil), payload...),
		Timestamp: time.Now().UTC(),
	}

	// Sends happen under the read lock so Close cannot close a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for pattern, channels := range b.subscribers {
		if !subjectMatches(pattern, subject) {
			continue
		}
		for _, ch := range channels {
			select {
			case ch <- msg:
			default:
				// non-blocking drop for slow subscribers
			}
		}
	}
	return nil
}

// Subscribe subscribes by subject pattern.
func (b *MemoryBus) Subscribe(pattern string, buffer int) (*Subscription, error) {
	if pattern == "" {
		return nil, fmt.Errorf("eventbus: subscription pattern cannot be empty")
	}
	if buffer <= 0 {
		buffer = 32
	}
	ch := make(chan Message, buffer)
	sub := &Subscription{ch: ch}
	sub.release = func() { b.unsubscribe(pattern, sub) }

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("eventbus: bus is closed")
	}
	b.subscribers[pattern] = append(b.subscribers[pattern], ch)
	b.subs[sub] = struct{}{}
	return sub, nil
}

// Close shuts down every open subscription. Later subscribes fail.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	return nil
}

func (b *MemoryBus) unsubscribe(pattern string, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sub)
	target := sub.ch
	channels := b.subscribers[pattern]
	filtered := channels[:0]
	for _, ch := range channels {
		if ch == target {
			continue
		}
		filtered = append(filtered, ch)
	}
	if len(filtered) == 0 {
		delete(b.subscribers, pattern)
		return
	}
	b.subscribers[pattern] = filtered
}

// subjectMatches supports exact, "*" segment, and ">" suffix wildcards.
func subjectMatches(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	if strings.HasSuffix(pattern, ".>") {
		prefix := strings.TrimSuffix(pattern, ".>")
		if prefix == "" {
			return true
		}
		return subject == prefix || strings.HasPrefix(subject, prefix+".")
	}

	patternParts := strings.Split(pattern, ".")
	subjectParts := strings.Split(subject, ".")
	if len(patternParts) != len(subjectParts) {
		return false
	}
	for i := range patternParts {
		if patternParts[i] == "*" {
			continue
		}
		if patternParts[i] != subjectParts[i] {
			return false
		}
	}
	return true
}
