package privilege

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultKeepAliveInterval stays below sudo's default five minute timestamp.
const DefaultKeepAliveInterval = 60 * time.Second

// KeepAlive refreshes sudo credentials in the background until stopped.
type KeepAlive struct {
	stopped atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// StartKeepAlive refreshes e every interval on its own goroutine. Refresh
// failures are logged and never interrupt the caller.
func StartKeepAlive(ctx context.Context, e *Elevator, interval time.Duration, logger zerolog.Logger) *KeepAlive {
	if interval <= 0 {
		interval = DefaultKeepAliveInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	k := &KeepAlive{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(k.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if k.stopped.Load() {
					return
				}
				if err := e.Refresh(ctx); err != nil && ctx.Err() == nil {
					logger.Warn().Err(err).Msg("sudo keep-alive refresh failed")
				}
			}
		}
	}()

	return k
}

// Stop ends the refresh loop and waits for it to exit.
func (k *KeepAlive) Stop() {
	if k == nil {
		return
	}
	k.once.Do(func() {
		k.stopped.Store(true)
		k.cancel()
		<-k.done
	})
}
