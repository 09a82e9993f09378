package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus_CloseStopsDelivery(t *testing.T) {
	bus := NewMemoryBus()
	sub, err := bus.Subscribe(UserWildcardSubject("u1"), 4)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), UserSubject("u1", EventSessionFlushed), []byte(`{}`)))
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	msg, ok := <-sub.C()
	require.True(t, ok)
	assert.Equal(t, UserSubject("u1", EventSessionFlushed), msg.Subject)

	_, ok = <-sub.C()
	assert.False(t, ok, "channel should be closed after Close")

	require.NoError(t, bus.Publish(context.Background(), UserSubject("u1", EventSessionFlushed), []byte(`{}`)))
}

func TestMemoryBus_SlowSubscriberDrops(t *testing.T) {
	bus := NewMemoryBus()
	sub, err := bus.Subscribe(DomainWildcardSubject(DomainSystem), 1)
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(context.Background(), SystemSubject("n1", EventRetentionSwept), []byte(`{}`)))
	}
	assert.Len(t, sub.C(), 1)
}

func TestMemoryBus_ConcurrentPublishAndClose(t *testing.T) {
	bus := NewMemoryBus()
	subject := UserSubject("u1", EventConversationRecorded)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = bus.Publish(context.Background(), subject, []byte(`{}`))
			}
		}
	}()

	for i := 0; i < 50; i++ {
		sub, err := bus.Subscribe(UserWildcardSubject("u1"), 1)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
		require.NoError(t, sub.Close())
	}
	close(stop)
	wg.Wait()
}

func TestMemoryBus_RejectsEmptyInputs(t *testing.T) {
	bus := NewMemoryBus()

	_, err := bus.Subscribe("", 1)
	assert.Error(t, err)
	assert.Error(t, bus.Publish(context.Background(), "", nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, bus.Publish(ctx, "x", nil), context.Canceled)
}

func TestMemoryBus_CloseEndsSubscriptions(t *testing.T) {
	bus := NewMemoryBus()
	sub, err := bus.Subscribe(UserWildcardSubject("u1"), 1)
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	_, ok := <-sub.C()
	assert.False(t, ok, "subscription channel should close with the bus")
	require.NoError(t, sub.Close())

	_, err = bus.Subscribe(UserWildcardSubject("u1"), 1)
	assert.Error(t, err)
	assert.NoError(t, bus.Publish(context.Background(), UserSubject("u1", EventSessionFlushed), []byte(`{}`)))
}
