package badger

import (
	"context"
	"testing"

	"github.com/strainwise/convmem/pkg/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerCacheSuite(t *testing.T) {
	suite := &kv.CacheTestSuite{
		NewCache: func(t *testing.T) kv.Cache {
			store, err := New(&Config{
				Path:              t.TempDir(),
				ValueLogFileSize:  1 << 20,
				NumVersionsToKeep: 1,
			})
			require.NoError(t, err)
			return store
		},
	}
	suite.RunAllTests(t)
}

func TestBadgerInMemory(t *testing.T) {
	store, err := New(&Config{InMemory: true})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, kv.ProfileKey("u1"), []byte("p")))
	assert.NoError(t, store.Ping(ctx))
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := New(&Config{Path: dir, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, kv.SettingsKey("u1"), []byte(`{"enabled":false}`)))
	require.NoError(t, store.Close())

	reopened, err := New(&Config{Path: dir})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, kv.SettingsKey("u1"))
	require.NoError(t, err)
	assert.Equal(t, `{"enabled":false}`, string(got))
}

func TestBadgerPingAfterClose(t *testing.T) {
	store, err := New(&Config{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	var unavailable *kv.UnavailableError
	assert.ErrorAs(t, store.Ping(context.Background()), &unavailable)
}
