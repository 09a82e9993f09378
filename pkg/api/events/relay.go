package events

import (
	"context"
	"fmt"

	"github.com/strainwise/convmem/pkg/eventbus"
	"github.com/strainwise/convmem/pkg/logger"
)

// Relay moves lifecycle events from the bus into a Broadcaster.
type Relay struct {
	bus         eventbus.Subscriber
	consumer    *eventbus.EnvelopeConsumer
	broadcaster *Broadcaster
	log         logger.Logger
	buffer      int
}

// NewRelay creates a relay decoding with the memory schema router.
func NewRelay(bus eventbus.Subscriber, broadcaster *Broadcaster, log logger.Logger, buffer int) (*Relay, error) {
	router, err := eventbus.NewMemorySchemaRouter()
	if err != nil {
		return nil, fmt.Errorf("build schema router: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Relay{
		bus:         bus,
		consumer:    eventbus.NewEnvelopeConsumer(router),
		broadcaster: broadcaster,
		log:         log,
		buffer:      buffer,
	}, nil
}

// Run forwards events until ctx is done or the subscription closes.
func (r *Relay) Run(ctx context.Context) error {
	sub, err := r.bus.Subscribe(eventbus.AllSubjects, r.buffer)
	if err != nil {
		return fmt.Errorf("subscribe to lifecycle events: %w", err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.C():
			if !ok {
				return nil
			}
			r.forward(msg)
		}
	}
}

func (r *Relay) forward(msg eventbus.Message) {
	_, decoded, duplicate, err := r.consumer.DecodeAndValidate(msg.Payload)
	if err != nil {
		r.log.Warn("dropping undecodable lifecycle event", "subject", msg.Subject, "error", err)
		return
	}
	if duplicate {
		return
	}
	event, ok := decoded.(eventbus.MemoryEvent)
	if !ok {
		r.log.Warn("unexpected lifecycle event type", "subject", msg.Subject)
		return
	}
	r.broadcaster.Broadcast(FromMemoryEvent(event))
}
