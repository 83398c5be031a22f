package rpc

import (
	"context"
	"sync"
)

// Call is the cancellable, asynchronous result of a procedure call.
//
// Contract:
//   - Concurrency: all methods are safe for concurrent use.
//   - Cancel only cancels the call's context. Whether remote work stops is up
//     to the transport; callers must not rely on it.
type Call struct {
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once

	out []byte
	err error
}

// Go starts op in its own goroutine under a cancellable child of ctx.
func Go(ctx context.Context, op func(ctx context.Context) ([]byte, error)) *Call {
	ctx, cancel := context.WithCancel(ctx)
	c := &Call{done: make(chan struct{}), cancel: cancel}
	go func() {
		out, err := op(ctx)
		c.finish(out, err)
	}()
	return c
}

// Resolved returns an already completed Call.
func Resolved(out []byte, err error) *Call {
	c := &Call{done: make(chan struct{}), cancel: func() {}}
	c.finish(out, err)
	return c
}

func (c *Call) finish(out []byte, err error) {
	c.once.Do(func() {
		c.out, c.err = out, err
		c.cancel()
		close(c.done)
	})
}

// Done is closed when the call has completed.
func (c *Call) Done() <-chan struct{} { return c.done }

// Cancel requests cancellation of the call.
func (c *Call) Cancel() { c.cancel() }

// Wait blocks until the call completes or ctx is done. When ctx ends first
// the call is cancelled and ctx.Err() is returned.
func (c *Call) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-c.done:
		return c.out, c.err
	case <-ctx.Done():
		c.Cancel()
		return nil, ctx.Err()
	}
}
