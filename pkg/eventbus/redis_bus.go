package eventbus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannelPrefix namespaces bus channels inside a shared Redis.
const DefaultRedisChannelPrefix = "convmem:events:"

var _ Bus = (*RedisBus)(nil)

// RedisBus is a Redis Pub/Sub-backed transport so several nodes share one
// event stream.
type RedisBus struct {
	client        redis.UniversalClient
	channelPrefix string

	mu     sync.RWMutex
	subs   map[*Subscription]context.CancelFunc
	closed bool
}

// NewRedisBus creates a Redis-backed event bus.
func NewRedisBus(client redis.UniversalClient, channelPrefix string) *RedisBus {
	if channelPrefix == "" {
		channelPrefix = DefaultRedisChannelPrefix
	}
	return &RedisBus{
		client:        client,
		channelPrefix: channelPrefix,
		subs:          make(map[*Subscription]context.CancelFunc),
	}
}

// Publish sends payload on the channel derived from subject.
func (b *RedisBus) Publish(ctx context.Context, subject string, payload []byte) error {
	if subject == "" {
		return fmt.Errorf("eventbus: subject cannot be empty")
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return fmt.Errorf("eventbus: redis bus is closed")
	}

	if err := b.client.Publish(ctx, b.channelPrefix+subject, payload).Err(); err != nil {
		return fmt.Errorf("eventbus: redis publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe subscribes by subject pattern using the same wildcard rules as
// MemoryBus.
func (b *RedisBus) Subscribe(pattern string, buffer int) (*Subscription, error) {
	if pattern == "" {
		return nil, fmt.Errorf("eventbus: subscription pattern cannot be empty")
	}
	if buffer <= 0 {
		buffer = 32
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("eventbus: redis bus is closed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := b.client.PSubscribe(ctx, b.channelPrefix+globPattern(pattern))

	ch := make(chan Message, buffer)
	done := make(chan struct{})
	sub := &Subscription{ch: ch}
	sub.release = func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		cancel()
		<-done
	}
	b.subs[sub] = cancel

	go b.forwardMessages(ctx, pubsub, pattern, ch, done)
	return sub, nil
}

func (b *RedisBus) forwardMessages(ctx context.Context, pubsub *redis.PubSub, pattern string, ch chan Message, done chan struct{}) {
	defer close(done)
	defer func() {
		_ = pubsub.Close()
	}()

	redisCh := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-redisCh:
			if !ok {
				return
			}
			subject := strings.TrimPrefix(msg.Channel, b.channelPrefix)
			if !subjectMatches(pattern, subject) {
				continue
			}
			select {
			case ch <- Message{Subject: subject, Payload: []byte(msg.Payload), Timestamp: time.Now().UTC()}:
			default:
				// non-blocking drop for slow subscribers
			}
		}
	}
}

// Close shuts down every open subscription.
func (b *RedisBus) Close() error {
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

// Healthy checks if the Redis connection is alive.
func (b *RedisBus) Healthy(ctx context.Context) bool {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return false
	}
	return b.client.Ping(ctx).Err() == nil
}

// globPattern widens a subject pattern into a Redis PSUBSCRIBE glob.
// Matches are narrowed again with subjectMatches on delivery.
func globPattern(pattern string) string {
	parts := strings.Split(pattern, ".")
	for i, part := range parts {
		if part == "*" || part == ">" {
			parts[i] = "*"
		}
	}
	return strings.Join(parts, ".")
}
