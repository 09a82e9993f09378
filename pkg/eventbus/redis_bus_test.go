package eventbus

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireRedisClient(tb testing.TB) redis.UniversalClient {
	tb.Helper()

	addr := os.Getenv("CONVMEM_REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  500 * time.Millisecond,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		tb.Skipf("redis is not available at %s: %v", addr, err)
	}

	tb.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestGlobPattern(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{pattern: "convmem.v1.user.u1.conversation.recorded", want: "convmem.v1.user.u1.conversation.recorded"},
		{pattern: "convmem.v1.user.u1.>", want: "convmem.v1.user.u1.*"},
		{pattern: "convmem.v1.user.*.session.flushed", want: "convmem.v1.user.*.session.flushed"},
		{pattern: ">", want: "*"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, globPattern(tt.pattern), tt.pattern)
	}
}

func TestRedisBus_PublishSubscribeAcrossBuses(t *testing.T) {
	client := requireRedisClient(t)
	prefix := fmt.Sprintf("convmem:test:events:%d:", time.Now().UnixNano())

	pubBus := NewRedisBus(client, prefix)
	defer pubBus.Close()
	subBus := NewRedisBus(client, prefix)
	defer subBus.Close()

	sub, err := subBus.Subscribe(UserWildcardSubject("u1"), 8)
	require.NoError(t, err)
	defer sub.Close()

	// Give the Redis subscription loop a moment to attach before publishing.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, pubBus.Publish(context.Background(), UserSubject("u2", EventConversationRecorded), []byte(`{"skip":true}`)))
	require.NoError(t, pubBus.Publish(context.Background(), UserSubject("u1", EventConversationRecorded), []byte(`{"v":1}`)))

	select {
	case msg := <-sub.C():
		assert.Equal(t, UserSubject("u1", EventConversationRecorded), msg.Subject)
		assert.JSONEq(t, `{"v":1}`, string(msg.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for redis event")
	}
}

func TestRedisBus_PublishAfterCloseReturnsError(t *testing.T) {
	client := requireRedisClient(t)
	bus := NewRedisBus(client, fmt.Sprintf("convmem:test:events:closed:%d:", time.Now().UnixNano()))

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	err := bus.Publish(context.Background(), SystemSubject("node-1", EventRetentionSwept), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")

	_, err = bus.Subscribe(SystemSubject("node-1", EventRetentionSwept), 1)
	require.Error(t, err)
	assert.False(t, bus.Healthy(context.Background()))
}

func TestRedisBus_Healthy(t *testing.T) {
	client := requireRedisClient(t)
	bus := NewRedisBus(client, "")
	defer bus.Close()

	assert.True(t, bus.Healthy(context.Background()))
}
