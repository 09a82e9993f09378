package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/strainwise/convmem/config"
	"github.com/strainwise/convmem/pkg/codec"
	"github.com/strainwise/convmem/pkg/kv"
	kvmemory "github.com/strainwise/convmem/pkg/kv/memory"
	"github.com/strainwise/convmem/pkg/storage"
	storagememory "github.com/strainwise/convmem/pkg/storage/memory"
	"github.com/stretchr/testify/require"
)

const testKey = "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8="

var errInjected = errors.New("injected failure")

// fakeClock starts on Monday 2026-03-02 12:00 UTC.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyDocs injects failures into a document store.
type flakyDocs struct {
	storage.DocumentStore
	failInsert atomic.Bool
	failRead   atomic.Bool
	failDelete atomic.Bool

	// When hold is set, Insert signals entered and blocks until hold closes.
	hold    chan struct{}
	entered chan struct{}
}

func (f *flakyDocs) Insert(ctx context.Context, collection string, doc *storage.Document) (string, error) {
	if f.hold != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
		<-f.hold
	}
	if f.failInsert.Load() {
		return "", &storage.StorageUnavailableError{Cause: errInjected}
	}
	return f.DocumentStore.Insert(ctx, collection, doc)
}

func (f *flakyDocs) Find(ctx context.Context, collection string, query storage.Query) ([]*storage.Document, error) {
	if f.failRead.Load() {
		return nil, &storage.StorageUnavailableError{Cause: errInjected}
	}
	return f.DocumentStore.Find(ctx, collection, query)
}

func (f *flakyDocs) DeleteByUser(ctx context.Context, collection, userID string) (int, error) {
	if f.failDelete.Load() {
		return 0, &storage.StorageUnavailableError{Cause: errInjected}
	}
	return f.DocumentStore.DeleteByUser(ctx, collection, userID)
}

// flakyCache injects failures into a cache.
type flakyCache struct {
	kv.Cache
	failGet    atomic.Bool
	failSet    atomic.Bool
	failDelete atomic.Bool
}

func (f *flakyCache) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failGet.Load() {
		return nil, &kv.UnavailableError{Backend: "test", Op: "get", Cause: errInjected}
	}
	return f.Cache.Get(ctx, key)
}

func (f *flakyCache) Set(ctx context.Context, key string, value []byte) error {
	if f.failSet.Load() {
		return &kv.UnavailableError{Backend: "test", Op: "set", Cause: errInjected}
	}
	return f.Cache.Set(ctx, key, value)
}

func (f *flakyCache) Delete(ctx context.Context, key string) error {
	if f.failDelete.Load() {
		return &kv.UnavailableError{Backend: "test", Op: "delete", Cause: errInjected}
	}
	return f.Cache.Delete(ctx, key)
}

func testMemoryConfig() *config.MemoryConfig {
	return &config.MemoryConfig{
		EncryptionKey:    testKey,
		AutosaveInterval: time.Hour,
		RecentWindow:     DefaultRecentWindow,
		Defaults: config.SettingsDefaults{
			Enabled:              true,
			RetentionDays:        90,
			EncryptSensitiveData: true,
			AllowAnalytics:       true,
			AutoSessionSave:      true,
		},
	}
}

type hubFixture struct {
	hub   *MemoryHub
	docs  *flakyDocs
	cache *flakyCache
	codec *codec.Codec
	clock *fakeClock
}

func newHubFixture(t *testing.T, cfg *config.MemoryConfig, events EventPublisher) *hubFixture {
	t.Helper()
	if cfg == nil {
		cfg = testMemoryConfig()
	}
	c, err := codec.NewFromBase64(testKey)
	require.NoError(t, err)

	f := &hubFixture{
		docs:  &flakyDocs{DocumentStore: storagememory.NewMemoryStorage()},
		cache: &flakyCache{Cache: kvmemory.New()},
		codec: c,
		clock: newFakeClock(),
	}
	f.hub, err = NewMemoryHub(cfg, Dependencies{
		Conversations: f.docs,
		Cache:         f.cache,
		Cipher:        c,
		Events:        events,
	}, nil)
	require.NoError(t, err)
	f.hub.setClock(f.clock.Now)
	t.Cleanup(func() { _ = f.hub.Stop(context.Background()) })
	return f
}

// storedEntries returns the raw stored records of userID, newest first.
func (f *hubFixture) storedEntries(t *testing.T, userID string) []ConversationEntry {
	t.Helper()
	docs, err := f.docs.DocumentStore.Find(context.Background(), ConversationsCollection, storage.Query{UserID: userID})
	require.NoError(t, err)
	out := make([]ConversationEntry, 0, len(docs))
	for _, d := range docs {
		var e ConversationEntry
		require.NoError(t, json.Unmarshal(d.Data, &e))
		out = append(out, e)
	}
	return out
}

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }
