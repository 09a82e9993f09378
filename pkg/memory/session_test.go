package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_AutosaveRetriesBufferedEntries(t *testing.T) {
	cfg := testMemoryConfig()
	cfg.AutosaveInterval = 10 * time.Millisecond
	f := newHubFixture(t, cfg, nil)
	ctx := context.Background()

	f.docs.failInsert.Store(true)
	result := f.hub.RecordConversation(ctx, "u1", "Best strain for sleep?", "Northern Lights.", nil)
	require.Equal(t, OutcomeBuffered, result.Outcome)
	sessionID := result.Entry.SessionID

	require.NoError(t, f.hub.Start(ctx))
	f.docs.failInsert.Store(false)

	require.Eventually(t, func() bool {
		n, err := f.hub.conversations.Count(ctx, "u1")
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)

	info, ok := f.hub.CurrentSession("u1")
	require.True(t, ok)
	assert.Equal(t, sessionID, info.ID, "autosave never rotates the session")
}

func TestSessionManager_FlushAllRespectsAutoSessionSave(t *testing.T) {
	f := newHubFixture(t, nil, nil)
	ctx := context.Background()

	_, err := f.hub.UpdateSettings(ctx, "u1", SettingsPatch{AutoSessionSave: boolPtr(false)})
	require.NoError(t, err)

	f.docs.failInsert.Store(true)
	f.hub.RecordConversation(ctx, "u1", "Best strain for sleep?", "Northern Lights.", nil)
	f.hub.RecordConversation(ctx, "u2", "Best strain for sleep?", "Northern Lights.", nil)
	f.docs.failInsert.Store(false)

	require.NoError(t, f.hub.sessions.FlushAll(ctx))

	n, err := f.hub.conversations.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = f.hub.conversations.Count(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// An explicit session boundary still flushes.
	_, err = f.hub.StartNewSession(ctx, "u1")
	require.NoError(t, err)
	n, err = f.hub.conversations.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSessionManager_ConcurrentRecords(t *testing.T) {
	f := newHubFixture(t, nil, nil)
	ctx := context.Background()
	const n = 40

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%10 == 0 {
				_, _ = f.hub.StartNewSession(ctx, "u1")
				return
			}
			f.hub.RecordConversation(ctx, "u1", "Best strain for sleep?", "Northern Lights.", nil)
		}(i)
	}
	wg.Wait()

	count, err := f.hub.conversations.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, n-n/10, count)

	profile, err := f.hub.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Northern Lights"}, profile.PreferredEntities)
}

func TestSessionManager_SessionIDStableWithinSession(t *testing.T) {
	f := newHubFixture(t, nil, nil)
	ctx := context.Background()

	a := f.hub.RecordConversation(ctx, "u1", "q1", "r1", nil)
	b := f.hub.RecordConversation(ctx, "u1", "q2", "r2", nil)
	assert.Equal(t, a.Entry.SessionID, b.Entry.SessionID)

	other := f.hub.RecordConversation(ctx, "u2", "q1", "r1", nil)
	assert.NotEqual(t, a.Entry.SessionID, other.Entry.SessionID)

	next, err := f.hub.StartNewSession(ctx, "u1")
	require.NoError(t, err)
	c := f.hub.RecordConversation(ctx, "u1", "q3", "r3", nil)
	assert.Equal(t, next, c.Entry.SessionID)
}
