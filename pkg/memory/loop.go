package memory

import (
	"context"
	"sync"
	"time"
)

// intervalLoop runs a function on a fixed ticker until stopped.
type intervalLoop struct {
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newIntervalLoop(interval time.Duration) *intervalLoop {
	return &intervalLoop{interval: interval}
}

// start launches the loop. Errors returned by fn are passed to onErr and the
// loop continues. Starting a running loop is a no-op.
func (l *intervalLoop) start(parentCtx context.Context, fn func(ctx context.Context) error, onErr func(error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil || l.interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(parentCtx)
	l.cancel = cancel
	l.done = make(chan struct{})
	done := l.done

	go func() {
		defer close(done)
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := fn(ctx); err != nil && onErr != nil {
					onErr(err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// stop cancels the loop and waits for the in-flight run to return.
func (l *intervalLoop) stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (l *intervalLoop) running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}
