package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/strainwise/convmem/pkg/codec"
	"github.com/strainwise/convmem/pkg/storage"
	storagememory "github.com/strainwise/convmem/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConversationStore(t *testing.T, withCipher bool) (*ConversationStore, storage.DocumentStore) {
	t.Helper()
	docs := storagememory.NewMemoryStorage()
	var cipher Cipher
	if withCipher {
		c, err := codec.NewFromBase64(testKey)
		require.NoError(t, err)
		cipher = c
	}
	return NewConversationStore(docs, cipher, nil, nil), docs
}

func TestConversationStore_AppendClassifies(t *testing.T) {
	s, _ := newTestConversationStore(t, false)
	ctx := context.Background()

	entry := &ConversationEntry{
		UserID:   "u1",
		Query:    "How do I cross Blue Dream with OG Kush?",
		Response: "Blue Dream and OG Kush make a balanced hybrid.",
	}
	require.NoError(t, s.Append(ctx, entry))

	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())
	assert.Equal(t, QueryBreeding, entry.QueryType)
	assert.Equal(t, []string{"Blue Dream", "OG Kush"}, entry.MentionedEntities)
	assert.Equal(t, []string{}, entry.RequestedAttributes)
}

func TestConversationStore_ReadRecentOrderAndLimit(t *testing.T) {
	s, _ := newTestConversationStore(t, true)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, &ConversationEntry{
			UserID:      "u1",
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			Query:       string(rune('a' + i)),
			Response:    "r",
			IsEncrypted: i%2 == 0,
		}))
	}

	recent, err := s.ReadRecent(ctx, "u1", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"e", "d", "c"}, []string{recent[0].Query, recent[1].Query, recent[2].Query})
	assert.True(t, recent[0].IsEncrypted)
	assert.False(t, recent[1].IsEncrypted)

	all, err := s.ReadAll(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := s.ReadRecent(ctx, "u2", 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestConversationStore_EncryptWithoutCipher(t *testing.T) {
	s, _ := newTestConversationStore(t, false)

	err := s.Append(context.Background(), &ConversationEntry{UserID: "u1", Query: "q", Response: "r", IsEncrypted: true})
	assert.ErrorIs(t, err, ErrNoCipher)
}

func TestConversationStore_SkipsUnreadableRecords(t *testing.T) {
	s, docs := newTestConversationStore(t, false)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, &ConversationEntry{UserID: "u1", Query: "q", Response: "r"}))
	_, err := docs.Insert(ctx, ConversationsCollection, &storage.Document{
		UserID:    "u1",
		Timestamp: time.Now(),
		Data:      json.RawMessage(`"not an object"`),
	})
	require.NoError(t, err)

	entries, err := s.ReadAll(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "q", entries[0].Query)
}

func TestConversationStore_DeleteOlderThan(t *testing.T) {
	s, _ := newTestConversationStore(t, false)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		require.NoError(t, s.Append(ctx, &ConversationEntry{
			UserID:    "u1",
			Timestamp: base.AddDate(0, 0, i*10),
			Query:     "q",
		}))
	}

	n, err := s.DeleteOlderThan(ctx, "u1", base.AddDate(0, 0, 15))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := s.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	n, err = s.DeleteAll(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
