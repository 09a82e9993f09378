package eventbus

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSchemaRouter_RejectsUndeclaredField(t *testing.T) {
	router, err := NewMemorySchemaRouter()
	if err != nil {
		t.Fatalf("NewMemorySchemaRouter() error = %v", err)
	}
	env, err := BuildEnvelope(BuildEnvelopeInput{
		EventType:   EventConversationRecorded,
		NodeID:      "node-1",
		UserID:      "u1",
		OrderingKey: "u1",
		Sequence:    1,
		Payload: map[string]any{
			"entry_id":   "e1",
			"outcome":    "recorded",
			"query_type": "general",
			"query":      "what helps with sleep?",
		},
	})
	if err != nil {
		t.Fatalf("BuildEnvelope() error = %v", err)
	}
	err = router.ValidateIncoming(env)
	if err == nil || !strings.Contains(err.Error(), `"query"`) {
		t.Fatalf("expected undeclared query field to fail validation, got %v", err)
	}
}

func TestSchemaRouter_AcceptsOptionalFields(t *testing.T) {
	router, err := NewMemorySchemaRouter()
	if err != nil {
		t.Fatalf("NewMemorySchemaRouter() error = %v", err)
	}
	env, err := BuildEnvelope(BuildEnvelopeInput{
		EventType:   EventConversationRecorded,
		NodeID:      "node-1",
		UserID:      "u1",
		OrderingKey: "u1",
		Sequence:    1,
		Payload: ConversationRecordedPayload{
			EntryID:   "e1",
			Outcome:   "recorded",
			QueryType: "product_search",
			Entities:  []string{"blue dream"},
		},
	})
	if err != nil {
		t.Fatalf("BuildEnvelope() error = %v", err)
	}
	if err := router.ValidateOutgoing(env); err != nil {
		t.Fatalf("ValidateOutgoing() error = %v", err)
	}
}

func TestSchemaRouter_UnknownEventTypePasses(t *testing.T) {
	router, err := NewMemorySchemaRouter()
	if err != nil {
		t.Fatalf("NewMemorySchemaRouter() error = %v", err)
	}
	env, err := BuildEnvelope(BuildEnvelopeInput{
		EventType:   "custom.event",
		NodeID:      "node-1",
		UserID:      "u1",
		OrderingKey: "u1",
		Sequence:    1,
		Payload:     map[string]any{"anything": true},
	})
	if err != nil {
		t.Fatalf("BuildEnvelope() error = %v", err)
	}
	if err := router.ValidateIncoming(env); err != nil {
		t.Fatalf("ValidateIncoming() error = %v", err)
	}
}

func TestPublisher_ValidateWithRejectsBeforeTransport(t *testing.T) {
	bus := NewMemoryBus()
	sub, err := bus.Subscribe(SubjectPrefix+".>", 4)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	publisher, err := NewPublisher("node-1", bus, DefaultRetryConfig(), nil)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	router, err := NewMemorySchemaRouter()
	if err != nil {
		t.Fatalf("NewMemorySchemaRouter() error = %v", err)
	}
	publisher.ValidateWith(router)

	_, err = publisher.PublishLifecycleEvent(context.Background(), LifecycleEvent{
		Domain:    DomainUser,
		EventType: EventConversationRecorded,
		UserID:    "u1",
		Payload: map[string]any{
			"entry_id":   "e1",
			"outcome":    "recorded",
			"query_type": "general",
			"response":   "try chamomile",
		},
	})
	if err == nil {
		t.Fatal("expected payload with response text to be rejected")
	}

	select {
	case msg := <-sub.C():
		t.Fatalf("rejected event reached the transport: %s", msg.Payload)
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := publisher.PublishLifecycleEvent(context.Background(), LifecycleEvent{
		Domain:    DomainUser,
		EventType: EventMemoryErased,
		UserID:    "u1",
		Payload:   MemoryErasedPayload{Conversations: 2},
	}); err != nil {
		t.Fatalf("PublishLifecycleEvent() error = %v", err)
	}
	select {
	case <-sub.C():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for valid event")
	}
}
