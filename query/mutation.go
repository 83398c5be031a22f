package query

import (
	"context"
	"sync"

	"github.com/jonwraymond/rpcquery/cache"
	"github.com/jonwraymond/rpcquery/rpc"
)

// MutationOptions carries caller side effects. The facade invokes them as
// given and never invalidates or refetches on its own.
type MutationOptions[In, Out any] struct {
	// OnMutate runs before the call. Its return value is handed to the
	// other callbacks, e.g. a snapshot for rolling back an optimistic update.
	OnMutate  func(input In) any
	OnSuccess func(data Out, input In, mctx any)
	OnError   func(err error, input In, mctx any)
	OnSettled func(data Out, err error, input In, mctx any)
}

// MutationState is the state of the last Mutate call.
type MutationState[Out any] struct {
	Status cache.Status
	Data   Out
	Err    error
}

// Mutation calls one mutation procedure.
type Mutation[In, Out any] struct {
	f    *Facade
	path string
	opts MutationOptions[In, Out]

	mu    sync.Mutex
	state MutationState[Out]
}

// UseMutation returns a Mutation for path.
func UseMutation[In, Out any](f *Facade, path string, opts MutationOptions[In, Out]) *Mutation[In, Out] {
	return &Mutation[In, Out]{f: f, path: path, opts: opts}
}

// Mutate serializes input, calls the mutation and returns the deserialized
// result. Mutations are never retried. A call cancelled through ctx skips
// OnError and OnSuccess, runs OnSettled with the context error so work begun
// in OnMutate can be undone, and leaves the previous state in place.
func (m *Mutation[In, Out]) Mutate(ctx context.Context, input In) (Out, error) {
	var mctx any
	if m.opts.OnMutate != nil {
		mctx = m.opts.OnMutate(input)
	}

	m.mu.Lock()
	prev := m.state
	m.state = MutationState[Out]{Status: cache.StatusLoading}
	m.mu.Unlock()

	out, err := fetchAs[Out](ctx, m.f, rpc.KindMutation, m.path, input)
	if isCancellation(ctx, err) {
		m.mu.Lock()
		m.state = prev
		m.mu.Unlock()
		var zero Out
		if m.opts.OnSettled != nil {
			m.opts.OnSettled(zero, err, input, mctx)
		}
		return zero, err
	}

	m.mu.Lock()
	if err != nil {
		m.state = MutationState[Out]{Status: cache.StatusError, Err: err}
	} else {
		m.state = MutationState[Out]{Status: cache.StatusSuccess, Data: out}
	}
	m.mu.Unlock()

	if err != nil {
		if m.opts.OnError != nil {
			m.opts.OnError(err, input, mctx)
		}
	} else if m.opts.OnSuccess != nil {
		m.opts.OnSuccess(out, input, mctx)
	}
	if m.opts.OnSettled != nil {
		m.opts.OnSettled(out, err, input, mctx)
	}
	return out, err
}

// State returns the state of the last call.
func (m *Mutation[In, Out]) State() MutationState[Out] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reset returns the mutation to idle.
func (m *Mutation[In, Out]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = MutationState[Out]{}
}
