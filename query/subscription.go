package query

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jonwraymond/rpcquery/cache"
	"github.com/jonwraymond/rpcquery/rpc"
)

// SubscriptionOptions configures UseSubscription.
type SubscriptionOptions[Out any] struct {
	// Disabled starts nothing until SetEnabled(true).
	Disabled bool

	OnBatch func(batch []Out)
	OnError func(err error)
}

// subscriptionRun is one poll. stopped is set before its call is cancelled
// and checked before any callback runs.
type subscriptionRun struct {
	stopped atomic.Bool
	cancel  context.CancelFunc
}

func (r *subscriptionRun) stop() {
	r.stopped.Store(true)
	r.cancel()
}

// Subscription performs one subscription poll per distinct [path, input].
//
// Contract:
//   - Only the latest run may invoke callbacks; earlier runs are stopped and
//     their results dropped.
//   - Cancellation is never reported through OnError.
type Subscription[In, Out any] struct {
	f    *Facade
	path string
	opts SubscriptionOptions[Out]
	ctx  context.Context

	mu      sync.Mutex
	input   In
	depKey  string
	enabled bool
	run     *subscriptionRun
	closed  bool
	detach  func() bool
}

// UseSubscription starts a poll of the subscription procedure path.
// Cancelling ctx has the same effect as Close.
func UseSubscription[In, Out any](ctx context.Context, f *Facade, path string, input In, opts SubscriptionOptions[Out]) (*Subscription[In, Out], error) {
	dep, err := cache.Key{path, input}.Hash()
	if err != nil {
		return nil, err
	}
	s := &Subscription[In, Out]{
		f:       f,
		path:    path,
		opts:    opts,
		ctx:     ctx,
		input:   input,
		depKey:  dep,
		enabled: !opts.Disabled,
	}
	s.mu.Lock()
	s.restartLocked()
	s.detach = context.AfterFunc(ctx, s.Close)
	s.mu.Unlock()
	return s, nil
}

// SetInput changes the input. A structurally equal input is a no-op;
// otherwise the running poll is stopped and a new one started.
func (s *Subscription[In, Out]) SetInput(input In) error {
	dep, err := cache.Key{s.path, input}.Hash()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || dep == s.depKey {
		return nil
	}
	s.input, s.depKey = input, dep
	s.restartLocked()
	return nil
}

// SetEnabled starts or stops polling.
func (s *Subscription[In, Out]) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || enabled == s.enabled {
		return
	}
	s.enabled = enabled
	s.restartLocked()
}

// Close stops the subscription. A run that has not reached its callbacks
// when Close is called never invokes them. A callback the run was already
// entering may still complete after Close returns.
func (s *Subscription[In, Out]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.detach != nil {
		s.detach()
	}
	if s.run != nil {
		s.run.stop()
		s.run = nil
	}
}

func (s *Subscription[In, Out]) restartLocked() {
	if s.run != nil {
		s.run.stop()
		s.run = nil
	}
	if !s.enabled || s.ctx.Err() != nil {
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	run := &subscriptionRun{cancel: cancel}
	s.run = run
	input := s.input

	go func() {
		defer cancel()
		batch, err := fetchAs[[]Out](ctx, s.f, rpc.KindSubscription, s.path, input)
		if run.stopped.Load() || isCancellation(ctx, err) {
			return
		}
		if err != nil {
			if s.opts.OnError != nil {
				s.opts.OnError(err)
			}
			return
		}
		if s.opts.OnBatch != nil {
			s.opts.OnBatch(batch)
		}
	}()
}
