package memory

import (
	"context"

	"github.com/strainwise/convmem/pkg/eventbus"
)

// EventPublisher publishes lifecycle events. *eventbus.Publisher satisfies it.
type EventPublisher interface {
	PublishLifecycleEvent(ctx context.Context, event eventbus.LifecycleEvent) (eventbus.Envelope, error)
}

// emitter publishes user events and logs failures. A nil publisher drops
// every event.
type emitter struct {
	publisher EventPublisher
	logger    hubLogger
}

func (e emitter) user(ctx context.Context, userID, sessionID, eventType string, payload any) {
	if e.publisher == nil {
		return
	}
	_, err := e.publisher.PublishLifecycleEvent(ctx, eventbus.LifecycleEvent{
		Domain:    eventbus.DomainUser,
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		Schema:    eventbus.SchemaVersionV1,
		Payload:   payload,
	})
	if err != nil {
		e.logger.Warn("failed to publish memory event", "event", eventType, "user_id", userID, "error", err)
	}
}

func (e emitter) system(ctx context.Context, eventType string, payload any) {
	if e.publisher == nil {
		return
	}
	_, err := e.publisher.PublishLifecycleEvent(ctx, eventbus.LifecycleEvent{
		Domain:    eventbus.DomainSystem,
		EventType: eventType,
		Schema:    eventbus.SchemaVersionV1,
		Payload:   payload,
	})
	if err != nil {
		e.logger.Warn("failed to publish system event", "event", eventType, "error", err)
	}
}
