package query

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/rpcquery/cache"
	"github.com/jonwraymond/rpcquery/resilience"
	"github.com/jonwraymond/rpcquery/rpc"
)

const (
	// DefaultMinPollInterval is the minimum gap between automatic refetches
	// of a live query.
	DefaultMinPollInterval = 100 * time.Millisecond

	// DefaultStallBackoff is the extra wait when the server repeats a cursor.
	DefaultStallBackoff = time.Second
)

// liveSeq numbers live query instances.
var liveSeq atomic.Uint64

// OutputWithCursor is one element of a live query batch.
type OutputWithCursor[T any] struct {
	Cursor any `json:"cursor"`
	Data   T   `json:"data"`
}

// LiveQueryOptions configures UseLiveQuery.
type LiveQueryOptions[Out any] struct {
	Disabled bool

	// MinPollInterval paces automatic refetches. Default: DefaultMinPollInterval
	MinPollInterval time.Duration

	// StallBackoff is added before a refetch when the last batch carried the
	// cursor already held. Default: DefaultStallBackoff
	StallBackoff time.Duration

	OnSuccess func(data Out)
	OnError   func(err error)
}

// LiveQuery polls a subscription procedure with a cursor.
//
// Each fetch sends input merged with {"cursor": <last cursor>}. A non-empty
// batch moves the cursor to its last element, publishes that element's data
// and schedules the next fetch. An empty batch changes nothing and schedules
// nothing; polling resumes on Refetch or invalidation.
//
// Instances on the same key share the cache entry but each keeps its own
// cursor and fetches with it.
type LiveQuery[Out any] struct {
	f   *Facade
	obs *cache.Observer

	cursor  cursorCell
	empty   atomic.Bool
	stalled atomic.Bool
	next    chan bool
	limiter *resilience.RateLimiter
	backoff time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// UseLiveQuery starts a live query on path. The key is
// [path, input, TRPC_LIVE_QUERY]. Input must encode as a JSON object or null.
func UseLiveQuery[In, Out any](ctx context.Context, f *Facade, path string, input In, opts LiveQueryOptions[Out]) (*LiveQuery[Out], error) {
	if _, err := withCursor(input, nil); err != nil {
		return nil, fmt.Errorf("query: live %s: %w", path, err)
	}
	if opts.MinPollInterval <= 0 {
		opts.MinPollInterval = DefaultMinPollInterval
	}
	if opts.StallBackoff < 0 {
		opts.StallBackoff = 0
	} else if opts.StallBackoff == 0 {
		opts.StallBackoff = DefaultStallBackoff
	}

	ctx, cancel := context.WithCancel(ctx)
	l := &LiveQuery[Out]{
		f:       f,
		next:    make(chan bool, 1),
		limiter: resilience.NewRateLimiter(resilience.RateLimiterFromInterval(opts.MinPollInterval)),
		backoff: opts.StallBackoff,
		ctx:     ctx,
		cancel:  cancel,
	}

	typed := typedSuccess(f, opts.OnSuccess, opts.OnError)
	onSuccess := func(v any) {
		if l.empty.Load() {
			return
		}
		l.schedule(l.stalled.Load())
		if typed != nil {
			typed(v)
		}
	}

	obs, err := f.store.Observe(ctx, cache.NewKey(path, input, cache.KindLiveQuery), func(ctx context.Context) (any, error) {
		return l.fetch(ctx, path, input)
	}, cache.ObserverOptions{
		Disabled:     opts.Disabled,
		FetchOnMount: true,
		Flight:       fmt.Sprintf("live-%d", liveSeq.Add(1)),
		OnSuccess:    onSuccess,
		OnError:      opts.OnError,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("query: live %s: %w", path, err)
	}
	l.obs = obs

	l.wg.Add(1)
	go l.loop()
	return l, nil
}

func (l *LiveQuery[Out]) fetch(ctx context.Context, path string, input any) (any, error) {
	in, err := withCursor(input, l.cursor.get())
	if err != nil {
		return nil, err
	}
	batch, err := fetchAs[[]OutputWithCursor[Out]](ctx, l.f, rpc.KindSubscription, path, in)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		l.empty.Store(true)
		return nil, cache.ErrNotModified
	}
	l.empty.Store(false)

	last := batch[len(batch)-1]
	prev := l.cursor.swap(last.Cursor)
	l.stalled.Store(cache.Key{last.Cursor}.Equal(cache.Key{prev}))
	return last.Data, nil
}

// schedule queues one refetch. Called once the previous fetch has settled.
func (l *LiveQuery[Out]) schedule(stalled bool) {
	select {
	case l.next <- stalled:
	default:
	}
}

// loop runs the refetches queued by schedule.
func (l *LiveQuery[Out]) loop() {
	defer l.wg.Done()
	for {
		select {
		case <-l.ctx.Done():
			return
		case stalled := <-l.next:
			if err := l.limiter.Wait(l.ctx); err != nil {
				return
			}
			if stalled && l.backoff > 0 {
				t := time.NewTimer(l.backoff)
				select {
				case <-l.ctx.Done():
					t.Stop()
					return
				case <-t.C:
				}
			}
			_, _ = l.obs.Refetch(l.ctx)
		}
	}
}

// Data returns the data of the last element of the latest non-empty batch.
func (l *LiveQuery[Out]) Data() (Out, bool) {
	r := l.Result()
	return r.Data, r.HasData
}

// Result returns the current result.
func (l *LiveQuery[Out]) Result() Result[Out] {
	return resultOf[Out](l.f.transformer, l.obs.Current())
}

// Cursor returns the cursor the next fetch will send.
func (l *LiveQuery[Out]) Cursor() any { return l.cursor.get() }

// Refetch fetches now, which also restarts polling after an empty batch.
func (l *LiveQuery[Out]) Refetch(ctx context.Context) (Result[Out], error) {
	st, err := l.obs.Refetch(ctx)
	return resultOf[Out](l.f.transformer, st), err
}

// Updates is signalled whenever the result may have changed.
func (l *LiveQuery[Out]) Updates() <-chan struct{} { return l.obs.Updates() }

// WaitFor blocks until pred holds or ctx is done.
func (l *LiveQuery[Out]) WaitFor(ctx context.Context, pred func(Result[Out]) bool) (Result[Out], error) {
	st, err := l.obs.WaitFor(ctx, func(st cache.State) bool {
		return pred(resultOf[Out](l.f.transformer, st))
	})
	return resultOf[Out](l.f.transformer, st), err
}

// Key returns the cache key.
func (l *LiveQuery[Out]) Key() cache.Key { return l.obs.Key() }

// Close stops polling and the observer.
func (l *LiveQuery[Out]) Close() {
	l.cancel()
	l.obs.Close()
	l.wg.Wait()
}
