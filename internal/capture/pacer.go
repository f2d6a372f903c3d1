package capture

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errAlreadyRunning = errors.New("source already running")

// pacer drives a paced source goroutine at a fixed interval.
type pacer struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// start runs step once per interval until step returns false, ctx is done or
// stop is called.
func (p *pacer) start(ctx context.Context, interval time.Duration, step func() bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return errAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.running = true

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !step() {
					return
				}
			}
		}
	}()

	return nil
}

// stop cancels the loop and waits for an in-flight step to finish.
func (p *pacer) stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
}
