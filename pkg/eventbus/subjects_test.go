package eventbus

import (
	"context"
	"testing"
	"time"
)

func TestUserSubject(t *testing.T) {
	tests := []struct {
		userID    string
		eventType string
		want      string
	}{
		{"u1", EventSessionFlushed, "convmem.v1.user.u1.session.flushed"},
		{"a.b", EventMemoryErased, "convmem.v1.user.a_b.memory.erased"},
		{"", EventSettingsUpdated, "convmem.v1.user.unknown.settings.updated"},
		{"x*>", EventConversationRecorded, "convmem.v1.user.x__.conversation.recorded"},
	}
	for _, tt := range tests {
		if got := UserSubject(tt.userID, tt.eventType); got != tt.want {
			t.Errorf("UserSubject(%q, %q) = %q, want %q", tt.userID, tt.eventType, got, tt.want)
		}
	}
}

func TestSubjectMatches(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		want    bool
	}{
		{UserWildcardSubject("u1"), UserSubject("u1", EventSessionFlushed), true},
		{UserWildcardSubject("u1"), UserSubject("u2", EventSessionFlushed), false},
		{UserWildcardSubject("u1"), UserSubject("u10", EventSessionFlushed), false},
		{DomainWildcardSubject(DomainUser), UserSubject("u2", EventMemoryErased), true},
		{"convmem.v1.user.*.memory.erased", UserSubject("u3", EventMemoryErased), true},
		{"convmem.v1.user.*.memory.erased", UserSubject("u3", EventSessionFlushed), false},
	}
	for _, tt := range tests {
		if got := subjectMatches(tt.pattern, tt.subject); got != tt.want {
			t.Errorf("subjectMatches(%q, %q) = %v, want %v", tt.pattern, tt.subject, got, tt.want)
		}
	}
}

func TestPublisher_UserScopedDelivery(t *testing.T) {
	bus := NewMemoryBus()
	sub, err := bus.Subscribe(UserWildcardSubject("u1"), 4)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	publisher, err := NewPublisher("node-1", bus, DefaultRetryConfig(), nil)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	ctx := context.Background()
	for _, user := range []string{"u2", "u1"} {
		if _, err := publisher.PublishLifecycleEvent(ctx, LifecycleEvent{
			Domain:    DomainUser,
			EventType: EventMemoryErased,
			UserID:    user,
			Payload:   MemoryErasedPayload{Conversations: 1},
		}); err != nil {
			t.Fatalf("PublishLifecycleEvent() error = %v", err)
		}
	}

	select {
	case msg := <-sub.C():
		if msg.Subject != UserSubject("u1", EventMemoryErased) {
			t.Fatalf("unexpected subject %q", msg.Subject)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for u1 event")
	}
	select {
	case msg := <-sub.C():
		t.Fatalf("unexpected extra message on %q", msg.Subject)
	default:
	}
}

func TestPublisher_RejectsUserEventWithoutUser(t *testing.T) {
	publisher, err := NewPublisher("node-1", NewMemoryBus(), DefaultRetryConfig(), nil)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	_, err = publisher.PublishLifecycleEvent(context.Background(), LifecycleEvent{
		Domain:    DomainUser,
		EventType: EventMemoryErased,
	})
	if err == nil {
		t.Fatal("expected error for missing user id")
	}
}

func TestSchemaRouter_RejectsMissingRequiredField(t *testing.T) {
	router, err := NewMemorySchemaRouter()
	if err != nil {
		t.Fatalf("NewMemorySchemaRouter() error = %v", err)
	}
	env, err := BuildEnvelope(BuildEnvelopeInput{
		EventType:   EventSessionRotated,
		NodeID:      "node-1",
		UserID:      "u1",
		OrderingKey: "u1",
		Sequence:    1,
		Payload:     map[string]any{"session_id": "s2"},
	})
	if err != nil {
		t.Fatalf("BuildEnvelope() error = %v", err)
	}
	if err := router.ValidateIncoming(env); err == nil {
		t.Fatal("expected missing previous_session_id to fail validation")
	}
}
