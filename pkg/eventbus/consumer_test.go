package eventbus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawEnvelope(t *testing.T, userID string) []byte {
	t.Helper()
	env, err := BuildEnvelope(BuildEnvelopeInput{
		EventType:     EventMemoryErased,
		SchemaVersion: SchemaVersionV1,
		NodeID:        "node-1",
		UserID:        userID,
		OrderingKey:   userID,
		Sequence:      1,
		Payload:       MemoryErasedPayload{Conversations: 2},
	})
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

func TestEnvelopeConsumer_DedupWindowIsBounded(t *testing.T) {
	router, err := NewMemorySchemaRouter()
	require.NoError(t, err)
	consumer := NewEnvelopeConsumerWithWindow(router, 2)

	first := rawEnvelope(t, "u1")
	second := rawEnvelope(t, "u2")
	third := rawEnvelope(t, "u3")

	for _, raw := range [][]byte{first, second, third} {
		_, decoded, dup, err := consumer.DecodeAndValidate(raw)
		require.NoError(t, err)
		require.False(t, dup)
		event, ok := decoded.(MemoryEvent)
		require.True(t, ok)
		assert.Equal(t, 2, event.Payload.(*MemoryErasedPayload).Conversations)
	}

	_, _, dup, err := consumer.DecodeAndValidate(third)
	require.NoError(t, err)
	assert.True(t, dup, "recent event should be suppressed")

	_, _, dup, err = consumer.DecodeAndValidate(first)
	require.NoError(t, err)
	assert.False(t, dup, "evicted event is delivered again")
}

func TestEnvelopeConsumer_RejectsGarbage(t *testing.T) {
	consumer := NewEnvelopeConsumer(nil)
	_, _, _, err := consumer.DecodeAndValidate([]byte("not json"))
	assert.Error(t, err)
}
