// Package debounce runs only the last of a burst of calls.
package debounce

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned by Call when a newer call replaced it.
var ErrSuperseded = errors.New("superseded by a newer call")

// Debouncer delays work until no newer call has arrived for the configured
// delay. Starting a call cancels the pending one, and the context of one that
// is already running.
type Debouncer struct {
	delay time.Duration

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelCauseFunc
}

func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Call waits for the quiet period and then runs fn. It returns ErrSuperseded
// if another Call starts first, or ctx's error if ctx ends.
func (d *Debouncer) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	cctx, cancel := context.WithCancelCause(ctx)

	d.mu.Lock()
	if d.cancel != nil {
		d.cancel(ErrSuperseded)
	}
	d.gen++
	gen := d.gen
	d.cancel = cancel
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		if d.gen == gen {
			d.cancel = nil
		}
		d.mu.Unlock()
		cancel(nil)
	}()

	timer := time.NewTimer(d.delay)
	defer timer.Stop()

	select {
	case <-cctx.Done():
		return cause(cctx)
	case <-timer.C:
	}

	err := fn(cctx)
	if errors.Is(context.Cause(cctx), ErrSuperseded) {
		return ErrSuperseded
	}
	return err
}

// Stop cancels whatever call is pending or running.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel(ErrSuperseded)
		d.cancel = nil
	}
}

func cause(ctx context.Context) error {
	if c := context.Cause(ctx); errors.Is(c, ErrSuperseded) {
		return ErrSuperseded
	}
	return ctx.Err()
}
