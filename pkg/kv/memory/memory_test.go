package memory

import (
	"context"
	"testing"

	"github.com/strainwise/convmem/pkg/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSuite(t *testing.T) {
	suite := &kv.CacheTestSuite{
		NewCache: func(t *testing.T) kv.Cache { return New() },
	}
	suite.RunAllTests(t)
}

func TestMemoryCopiesValues(t *testing.T) {
	store := New()
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value))
	value[0] = 'z'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'z'
	again, _ := store.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
	assert.Equal(t, 1, store.Len())
}
