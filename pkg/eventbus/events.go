package eventbus

import (
	"encoding/json"
	"fmt"
)

// Memory lifecycle event types.
const (
	EventConversationRecorded = "conversation.recorded"
	EventSessionFlushed       = "session.flushed"
	EventSessionRotated       = "session.rotated"
	EventMemoryErased         = "memory.erased"
	EventSettingsUpdated      = "settings.updated"
	EventRetentionSwept       = "retention.swept"
)

// ConversationRecordedPayload describes one recorded exchange. It never
// carries query or response text.
type ConversationRecordedPayload struct {
	EntryID   string   `json:"entry_id"`
	Outcome   string   `json:"outcome"`
	QueryType string   `json:"query_type"`
	Entities  []string `json:"entities,omitempty"`
}

// SessionFlushedPayload reports a flush of a session buffer.
type SessionFlushedPayload struct {
	Flushed int  `json:"flushed"`
	Pending int  `json:"pending"`
	Rotated bool `json:"rotated,omitempty"`
}

// SessionRotatedPayload reports a session id change.
type SessionRotatedPayload struct {
	PreviousSessionID string `json:"previous_session_id"`
	SessionID         string `json:"session_id"`
}

// MemoryErasedPayload reports a completed erasure.
type MemoryErasedPayload struct {
	Conversations int `json:"conversations"`
}

// SettingsUpdatedPayload carries the settings after an update.
type SettingsUpdatedPayload struct {
	Settings json.RawMessage `json:"settings"`
}

// RetentionSweptPayload reports one retention sweep.
type RetentionSweptPayload struct {
	Users   int `json:"users"`
	Deleted int `json:"deleted"`
}

// MemoryEvent is the consumer view of a decoded v1 envelope.
type MemoryEvent struct {
	Envelope Envelope
	Payload  any
}

// MemoryPayloadSchemas lists the v1 payload contracts.
func MemoryPayloadSchemas() []PayloadSchema {
	return []PayloadSchema{
		{SchemaVersion: SchemaVersionV1, EventType: EventConversationRecorded, Required: []string{"entry_id", "outcome", "query_type"}, Optional: []string{"entities"}},
		{SchemaVersion: SchemaVersionV1, EventType: EventSessionFlushed, Required: []string{"flushed", "pending"}, Optional: []string{"rotated"}},
		{SchemaVersion: SchemaVersionV1, EventType: EventSessionRotated, Required: []string{"previous_session_id", "session_id"}},
		{SchemaVersion: SchemaVersionV1, EventType: EventMemoryErased, Required: []string{"conversations"}},
		{SchemaVersion: SchemaVersionV1, EventType: EventSettingsUpdated, Required: []string{"settings"}},
		{SchemaVersion: SchemaVersionV1, EventType: EventRetentionSwept, Required: []string{"users", "deleted"}},
	}
}

// NewMemorySchemaRouter returns a router with every memory payload schema and
// the v1 decoder registered.
func NewMemorySchemaRouter() (*SchemaRouter, error) {
	router := NewSchemaRouter()
	for _, schema := range MemoryPayloadSchemas() {
		if err := router.RegisterPayloadSchema(schema); err != nil {
			return nil, err
		}
	}
	if err := router.RegisterDecoder(SchemaVersionV1, decodeMemoryV1); err != nil {
		return nil, err
	}
	return router, nil
}

func decodeMemoryV1(envelope Envelope) (any, error) {
	var payload any
	switch envelope.EventType {
	case EventConversationRecorded:
		payload = &ConversationRecordedPayload{}
	case EventSessionFlushed:
		payload = &SessionFlushedPayload{}
	case EventSessionRotated:
		payload = &SessionRotatedPayload{}
	case EventMemoryErased:
		payload = &MemoryErasedPayload{}
	case EventSettingsUpdated:
		payload = &SettingsUpdatedPayload{}
	case EventRetentionSwept:
		payload = &RetentionSweptPayload{}
	default:
		return MemoryEvent{Envelope: envelope, Payload: envelope.Payload}, nil
	}
	if err := json.Unmarshal(envelope.Payload, payload); err != nil {
		return nil, fmt.Errorf("eventbus: decode %s payload: %w", envelope.EventType, err)
	}
	return MemoryEvent{Envelope: envelope, Payload: payload}, nil
}
