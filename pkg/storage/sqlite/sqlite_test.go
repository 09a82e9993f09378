package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/strainwise/convmem/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorageSuite(t *testing.T) {
	suite := &storage.StorageTestSuite{
		NewStorage: func(t *testing.T) storage.DocumentStore {
			store, err := New(&Config{Path: filepath.Join(t.TempDir(), "convmem.db")})
			require.NoError(t, err)
			return store
		},
	}
	suite.RunAllTests(t)
}

func TestSQLiteInMemory(t *testing.T) {
	store, err := New(&Config{Path: ":memory:"})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	_, err = store.Insert(ctx, "conversations", &storage.Document{UserID: "u1", Data: json.RawMessage(`{}`)})
	require.NoError(t, err)

	n, err := store.Count(ctx, "conversations", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, store.Ping(ctx))
}

func TestSQLiteReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "convmem.db")
	ctx := context.Background()

	store, err := New(&Config{Path: path})
	require.NoError(t, err)
	ts := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	_, err = store.Insert(ctx, "conversations", &storage.Document{UserID: "u1", Timestamp: ts, Data: json.RawMessage(`{"a":1}`)})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := New(&Config{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	docs, err := reopened.Find(ctx, "conversations", storage.Query{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.True(t, docs[0].Timestamp.Equal(ts))
}
