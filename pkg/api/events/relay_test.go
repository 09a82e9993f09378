package events

import (
	"context"
	"testing"
	"time"

	"github.com/strainwise/convmem/pkg/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelay_ForwardsDecodedEvents(t *testing.T) {
	bus := eventbus.NewMemoryBus()
	broadcaster := NewBroadcaster()
	stream := broadcaster.Subscribe("u1", 4)

	relay, err := NewRelay(bus, broadcaster, nil, 8)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	publisher, err := eventbus.NewPublisher("node-1", bus, eventbus.DefaultRetryConfig(), nil)
	require.NoError(t, err)

	// Publish until the relay's subscription is attached.
	require.Eventually(t, func() bool {
		_, _ = publisher.PublishLifecycleEvent(context.Background(), eventbus.LifecycleEvent{
			Domain:    eventbus.DomainUser,
			EventType: eventbus.EventSessionRotated,
			UserID:    "u1",
			SessionID: "s2",
			Payload:   eventbus.SessionRotatedPayload{PreviousSessionID: "s1", SessionID: "s2"},
		})
		return len(stream.C()) > 0
	}, 2*time.Second, 20*time.Millisecond)

	event := <-stream.C()
	assert.Equal(t, eventbus.EventSessionRotated, event.Type)
	assert.Equal(t, "u1", event.UserID)
	assert.Equal(t, "s2", event.SessionID)
	payload, ok := event.Payload.(*eventbus.SessionRotatedPayload)
	require.True(t, ok, "payload type %T", event.Payload)
	assert.Equal(t, "s1", payload.PreviousSessionID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestRelay_DropsGarbage(t *testing.T) {
	bus := eventbus.NewMemoryBus()
	broadcaster := NewBroadcaster()
	stream := broadcaster.Subscribe("", 4)

	relay, err := NewRelay(bus, broadcaster, nil, 8)
	require.NoError(t, err)

	relay.forward(eventbus.Message{Subject: "convmem.v1.user.u1.x", Payload: []byte("{")})
	assert.Len(t, stream.C(), 0)
}
