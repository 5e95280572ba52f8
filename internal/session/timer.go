package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// timer counts whole ticks while a session records.
type timer struct {
	mu      sync.Mutex
	elapsed int
	stopped bool
	cancel  context.CancelFunc
}

// startTimer launches the tick goroutine. onTick runs on that goroutine
// with the new count and must not block on the caller of stop.
func startTimer(ctx context.Context, interval time.Duration, onTick func(int)) *timer {
	ctx, cancel := context.WithCancel(ctx)
	t := &timer{cancel: cancel}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.mu.Lock()
				if t.stopped {
					t.mu.Unlock()
					return
				}
				t.elapsed++
				n := t.elapsed
				t.mu.Unlock()

				if onTick != nil {
					onTick(n)
				}
			}
		}
	}()

	return t
}

// stop freezes the count and returns it. Safe to call more than once.
func (t *timer) stop() int {
	t.mu.Lock()
	t.stopped = true
	n := t.elapsed
	t.mu.Unlock()
	t.cancel()
	return n
}

func (t *timer) seconds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}

// FormatElapsed renders seconds as mm:ss.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
