package cache

import (
	"context"
	"sync"
	"time"
)

// ObserverOptions configures an Observer.
type ObserverOptions struct {
	// Disabled suppresses automatic fetching. Refetch still works.
	Disabled bool

	// StaleTime overrides the store policy for this observer.
	StaleTime time.Duration

	// FetchOnMount fetches when the observer starts even if the entry is fresh.
	FetchOnMount bool

	// RefetchInterval, when positive, refetches on a fixed period.
	RefetchInterval time.Duration

	// Flight, when set, gives this observer's fetches their own flight so
	// they never join a fetch started by another observer of the key.
	Flight string

	// OnSuccess and OnError run after fetches started by this observer.
	OnSuccess func(data any)
	OnError   func(err error)
}

// observer is the machinery shared by Observer and InfiniteObserver: it
// watches one entry, forwards change signals, and refetches when the entry
// is invalidated.
type observer struct {
	store *Store
	key   Key
	opts  ObserverOptions
	fetch func(ctx context.Context, force bool) (any, error)

	ctx     context.Context
	cancel  context.CancelFunc
	updates chan struct{}
	unwatch func()
	wg      sync.WaitGroup
	once    sync.Once
}

func (s *Store) newObserver(ctx context.Context, key Key, opts ObserverOptions) (*observer, error) {
	if s == nil {
		return nil, ErrNilStore
	}
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	return &observer{
		store:   s,
		key:     key,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		updates: make(chan struct{}, 1),
	}, nil
}

func (o *observer) start() {
	watch, unwatch := o.store.Watch(o.key)
	o.unwatch = unwatch

	if !o.opts.Disabled {
		st, _ := o.store.Get(o.key)
		staleTime := o.store.policy.EffectiveStaleTime(o.opts.StaleTime)
		if o.opts.FetchOnMount || st.IsStale(o.store.now(), staleTime) {
			o.background(o.opts.FetchOnMount)
		}
	}

	o.wg.Add(1)
	go o.loop(watch)
}

func (o *observer) loop(watch <-chan struct{}) {
	defer o.wg.Done()

	var tick <-chan time.Time
	if o.opts.RefetchInterval > 0 && !o.opts.Disabled {
		t := time.NewTicker(o.opts.RefetchInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-watch:
			o.signal()
			if st, ok := o.store.Get(o.key); ok && st.Invalidated && !st.IsFetching && !o.opts.Disabled {
				o.background(true)
			}
		case <-tick:
			o.background(true)
		}
	}
}

func (o *observer) signal() {
	select {
	case o.updates <- struct{}{}:
	default:
	}
}

func (o *observer) background(force bool) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		_, _ = o.run(o.ctx, force)
	}()
}

// run fetches and fires callbacks unless the observer was closed meanwhile.
func (o *observer) run(ctx context.Context, force bool) (any, error) {
	data, err := o.fetch(ctx, force)
	if o.ctx.Err() != nil || ctx.Err() != nil {
		return data, err
	}
	switch {
	case err == nil && o.opts.OnSuccess != nil:
		o.opts.OnSuccess(data)
	case err != nil && o.opts.OnError != nil:
		o.opts.OnError(err)
	}
	return data, err
}

// Current returns the entry's state. A missing entry reads as StatusIdle.
func (o *observer) Current() State {
	st, _ := o.store.Get(o.key)
	return st
}

// Updates is signalled whenever the entry changes. Signals coalesce.
func (o *observer) Updates() <-chan struct{} { return o.updates }

// Key returns the observed key.
func (o *observer) Key() Key { return o.key }

// WaitFor blocks until pred holds for the entry's state or ctx is done.
func (o *observer) WaitFor(ctx context.Context, pred func(State) bool) (State, error) {
	watch, stop := o.store.Watch(o.key)
	defer stop()
	for {
		st := o.Current()
		if pred(st) {
			return st, nil
		}
		select {
		case <-watch:
		case <-ctx.Done():
			return st, ctx.Err()
		case <-o.ctx.Done():
			return st, o.ctx.Err()
		}
	}
}

// Close stops the observer and waits for its goroutines. In-flight fetches
// are cancelled and their callbacks suppressed.
func (o *observer) Close() {
	o.once.Do(func() {
		o.cancel()
		if o.unwatch != nil {
			o.unwatch()
		}
	})
	o.wg.Wait()
}

// Observer keeps one cache entry populated for as long as it is open.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - On start it fetches if the entry is missing, stale, or FetchOnMount is
//     set; afterwards it refetches whenever the entry is invalidated.
type Observer struct {
	*observer
	fn FetchFunc
}

// Observe starts an Observer for key. Cancelling ctx has the same effect
// as Close.
func (s *Store) Observe(ctx context.Context, key Key, fn FetchFunc, opts ObserverOptions) (*Observer, error) {
	base, err := s.newObserver(ctx, key, opts)
	if err != nil {
		return nil, err
	}
	o := &Observer{observer: base, fn: fn}
	base.fetch = func(ctx context.Context, force bool) (any, error) {
		fopts := []FetchOption{WithStaleTime(opts.StaleTime)}
		if force {
			fopts = append(fopts, WithForce())
		}
		if opts.Flight != "" {
			fopts = append(fopts, WithFlight(opts.Flight))
		}
		return s.Fetch(ctx, key, fn, fopts...)
	}
	base.start()
	return o, nil
}

// Refetch fetches regardless of freshness and returns the resulting state.
func (o *Observer) Refetch(ctx context.Context) (State, error) {
	_, err := o.run(ctx, true)
	return o.Current(), err
}

// InfiniteObserverOptions configures an InfiniteObserver.
type InfiniteObserverOptions struct {
	ObserverOptions

	// InitialPageParam is passed to the first page fetch.
	InitialPageParam any

	// GetNextPageParam derives the next page parameter from the last page
	// and all pages. ok=false means there is no next page.
	GetNextPageParam func(lastPage any, allPages []any) (param any, ok bool)
}

// InfiniteObserver keeps a paginated entry populated.
type InfiniteObserver struct {
	*observer
	fn      PageFunc
	initial any
	next    func(lastPage any, allPages []any) (any, bool)
}

// ObserveInfinite starts an InfiniteObserver for key.
func (s *Store) ObserveInfinite(ctx context.Context, key Key, fn PageFunc, opts InfiniteObserverOptions) (*InfiniteObserver, error) {
	base, err := s.newObserver(ctx, key, opts.ObserverOptions)
	if err != nil {
		return nil, err
	}
	o := &InfiniteObserver{observer: base, fn: fn, initial: opts.InitialPageParam, next: opts.GetNextPageParam}
	base.fetch = func(ctx context.Context, force bool) (any, error) {
		fopts := []FetchOption{WithStaleTime(opts.StaleTime)}
		if force {
			fopts = append(fopts, WithForce())
		}
		return s.FetchInfinite(ctx, key, o.initial, fn, fopts...)
	}
	base.start()
	return o, nil
}

// Data returns the pages fetched so far.
func (o *InfiniteObserver) Data() InfiniteData {
	d, _ := AsInfiniteData(o.Current().Data)
	return d
}

// Refetch refetches every loaded page.
func (o *InfiniteObserver) Refetch(ctx context.Context) (State, error) {
	_, err := o.run(ctx, true)
	return o.Current(), err
}

// nextParam reports the parameter for the page after the loaded ones.
func (o *InfiniteObserver) nextParam() (any, bool) {
	if o.next == nil {
		return nil, false
	}
	d := o.Data()
	if len(d.Pages) == 0 {
		return nil, false
	}
	return o.next(d.LastPage(), d.Pages)
}

// HasNextPage reports whether GetNextPageParam yields another page.
func (o *InfiniteObserver) HasNextPage() bool {
	_, ok := o.nextParam()
	return ok
}

// FetchNextPage loads the next page. Without a next page it is a no-op.
func (o *InfiniteObserver) FetchNextPage(ctx context.Context) (State, error) {
	param, ok := o.nextParam()
	if !ok {
		return o.Current(), nil
	}
	_, err := o.store.FetchPage(ctx, o.key, param, o.fn)
	return o.Current(), err
}
