package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/strainwise/convmem/config"
	"github.com/strainwise/convmem/pkg/logger"
)

const testEncryptionKey = "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8="

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Memory.EncryptionKey = testEncryptionKey
	cfg.Memory.AutosaveInterval = time.Hour
	cfg.Storage.Conversations.Type = "memory"
	cfg.Storage.Cache.Type = "memory"
	cfg.Events.Transport = "memory"
	cfg.Server.RateLimit.Enabled = false
	cfg.Metrics.Enabled = false
	return cfg
}

func testLogger() logger.Logger {
	return logger.New(&logger.Config{Level: logger.ErrorLevel, Format: "json", Output: "stdout"})
}

func TestNew_Errors(t *testing.T) {
	_, err := New(context.Background(), nil, nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Memory.EncryptionKey = "short"
	_, err = New(context.Background(), cfg, testLogger())
	assert.ErrorContains(t, err, "codec")

	cfg = testConfig()
	cfg.Storage.Cache.Type = "etcd"
	_, err = New(context.Background(), cfg, testLogger())
	assert.ErrorContains(t, err, "unknown cache type")
}

func TestApp_Lifecycle(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = cfg.Server.Port

	a, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)

	srv := httptest.NewServer(a.Server().Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "not ready before Start")

	require.NoError(t, a.Start(context.Background()))
	assert.Error(t, a.Start(context.Background()))

	resp, err = http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/v1/users/u1/conversations", "application/json",
		strings.NewReader(`{"query":"what helps with sleep?","response":"Try Granddaddy Purple."}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, a.Hub().ActiveSessions())

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "memory_conversations_total")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(ctx))
	assert.False(t, a.Hub().Started())
}

func TestApp_ShutdownWithoutStart(t *testing.T) {
	a, err := New(context.Background(), testConfig(), testLogger())
	require.NoError(t, err)
	assert.NoError(t, a.Shutdown(context.Background()))
}

func TestApp_EventsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Events.Enabled = false

	a, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	assert.Nil(t, a.bus)
	require.NoError(t, a.Start(context.Background()))
	assert.NoError(t, a.Shutdown(context.Background()))
}

func TestApp_Reload(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RequestsPerSecond = 1
	cfg.Server.RateLimit.Burst = 1

	a, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer a.Shutdown(context.Background())

	require.NotNil(t, a.limiter)
	ok, _ := a.limiter.Allow("user:u1")
	require.True(t, ok)
	ok, _ = a.limiter.Allow("user:u1")
	require.False(t, ok)

	next := testConfig()
	next.Log.Level = "debug"
	next.Server.RateLimit.RequestsPerSecond = 1000
	next.Server.RateLimit.Burst = 10
	a.Reload(next)

	assert.Equal(t, logger.DebugLevel, a.log.GetLevel())
	time.Sleep(20 * time.Millisecond)
	ok, _ = a.limiter.Allow("user:u1")
	assert.True(t, ok)
}

func TestOpenConversations(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  config.DocumentStoreConfig
	}{
		{"memory", config.DocumentStoreConfig{Type: "memory"}},
		{"sqlite", config.DocumentStoreConfig{Type: "sqlite", Path: filepath.Join(dir, "conv.db")}},
		{"badger", config.DocumentStoreConfig{Type: "badger", Badger: config.BadgerConfig{Path: filepath.Join(dir, "badger")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := OpenConversations(tt.cfg)
			require.NoError(t, err)
			assert.NoError(t, store.Ping(context.Background()))
			assert.NoError(t, store.Close())
		})
	}

	_, err := OpenConversations(config.DocumentStoreConfig{Type: "mongo"})
	assert.ErrorContains(t, err, "unknown conversation store type")
}

func TestOpenCache(t *testing.T) {
	store, err := OpenCache(config.CacheConfig{Type: "memory"})
	require.NoError(t, err)
	assert.NoError(t, store.Close())

	store, err = OpenCache(config.CacheConfig{Type: "badger", Badger: config.BadgerConfig{Path: t.TempDir()}})
	require.NoError(t, err)
	assert.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, store.Close())

	// Redis dials lazily; construction alone must succeed.
	store, err = OpenCache(config.CacheConfig{Type: "redis", Redis: config.RedisConfig{Address: "127.0.0.1:1"}})
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestOpenBus(t *testing.T) {
	bus, err := OpenBus(config.EventsConfig{Transport: "memory"})
	require.NoError(t, err)
	assert.NoError(t, bus.Close())

	bus, err = OpenBus(config.EventsConfig{Transport: "redis", Redis: config.RedisConfig{Address: "127.0.0.1:1"}})
	require.NoError(t, err)
	assert.NoError(t, bus.Close())

	_, err = OpenBus(config.EventsConfig{Transport: "nats"})
	assert.Error(t, err)
}
