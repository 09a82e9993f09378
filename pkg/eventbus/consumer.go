package eventbus

import (
	"encoding/json"
	"fmt"
	"sync"
)

// DefaultDedupWindow is how many recent event IDs a consumer remembers.
const DefaultDedupWindow = 4096

// EnvelopeConsumer validates/routes envelopes and suppresses duplicate
// deliveries within a bounded window of recent event IDs.
type EnvelopeConsumer struct {
	router *SchemaRouter
	window int

	mu         sync.Mutex
	seenEvents map[string]struct{}
	seenOrder  []string
}

// NewEnvelopeConsumer creates a schema-aware consumer.
func NewEnvelopeConsumer(router *SchemaRouter) *EnvelopeConsumer {
	return NewEnvelopeConsumerWithWindow(router, DefaultDedupWindow)
}

// NewEnvelopeConsumerWithWindow creates a consumer remembering at most
// window event IDs.
func NewEnvelopeConsumerWithWindow(router *SchemaRouter, window int) *EnvelopeConsumer {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &EnvelopeConsumer{
		router:     router,
		window:     window,
		seenEvents: make(map[string]struct{}, window),
		seenOrder:  make([]string, 0, window),
	}
}

// DecodeAndValidate decodes raw event bytes, validates schema routing, and suppresses duplicates.
func (c *EnvelopeConsumer) DecodeAndValidate(raw []byte) (Envelope, any, bool, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Envelope{}, nil, false, fmt.Errorf("eventbus: invalid envelope json: %w", err)
	}

	if c.router != nil {
		if err := c.router.ValidateIncoming(envelope); err != nil {
			return Envelope{}, nil, false, err
		}
	}

	c.mu.Lock()
	if _, exists := c.seenEvents[envelope.EventID]; exists {
		c.mu.Unlock()
		return envelope, nil, true, nil
	}
	c.remember(envelope.EventID)
	c.mu.Unlock()

	var decoded any = envelope
	var err error
	if c.router != nil {
		decoded, err = c.router.Decode(envelope)
		if err != nil {
			return Envelope{}, nil, false, err
		}
	}
	return envelope, decoded, false, nil
}

// remember must be called with c.mu held.
func (c *EnvelopeConsumer) remember(eventID string) {
	if len(c.seenOrder) >= c.window {
		oldest := c.seenOrder[0]
		c.seenOrder = c.seenOrder[1:]
		delete(c.seenEvents, oldest)
	}
	c.seenEvents[eventID] = struct{}{}
	c.seenOrder = append(c.seenOrder, eventID)
}
