package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/rpcquery/observe"
	"github.com/jonwraymond/rpcquery/resilience"
)

// FetchFunc produces the data for one cache entry.
type FetchFunc func(ctx context.Context) (any, error)

type entry struct {
	key       Key
	state     State
	cacheTime time.Duration
	lastUsed  time.Time
}

// Store is an in-memory, key-addressed cache of fetch results.
//
// Contract:
//   - Concurrency: all methods are safe for concurrent use.
//   - Concurrent fetches of one key share a single call of the FetchFunc.
//   - Context: fetches honor cancellation; a cancelled fetch leaves the
//     entry as it was before the fetch started.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	watchers map[string]map[uint64]chan struct{}
	nextID   uint64

	policy   Policy
	executor *resilience.Executor
	group    singleflight.Group

	logger  observe.Logger
	metrics observe.Metrics
	now     func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger for fetch failures and GC.
func WithLogger(l observe.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithMetrics sets the sink for cache lookup metrics.
func WithMetrics(m observe.Metrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// WithClock overrides the time source used for freshness and GC.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty Store.
func NewStore(policy Policy, opts ...StoreOption) *Store {
	s := &Store{
		entries:  make(map[string]*entry),
		watchers: make(map[string]map[uint64]chan struct{}),
		policy:   policy,
		logger:   observe.NopLogger(),
		metrics:  observe.NopMetrics(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.executor = newFetchExecutor(policy)
	return s
}

func newFetchExecutor(p Policy) *resilience.Executor {
	retry := p.Retry
	retryIf := retry.RetryIf
	if retryIf == nil {
		retryIf = func(err error) bool { return !resilience.IsContextError(err) }
	}
	retry.RetryIf = func(err error) bool {
		return !errors.Is(err, ErrNotModified) && retryIf(err)
	}

	opts := []resilience.ExecutorOption{resilience.WithRetry(resilience.NewRetry(retry))}
	if p.MaxConcurrentFetches > 0 {
		opts = append(opts, resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: p.MaxConcurrentFetches,
		})))
	}
	if p.FetchTimeout > 0 {
		opts = append(opts, resilience.WithTimeout(p.FetchTimeout))
	}
	return resilience.NewExecutor(opts...)
}

// Policy returns the store's policy.
func (s *Store) Policy() Policy { return s.policy }

type fetchOptions struct {
	staleTime time.Duration
	cacheTime time.Duration
	force     bool
	flight    string
}

// FetchOption adjusts a single Fetch.
type FetchOption func(*fetchOptions)

// WithStaleTime overrides the policy StaleTime for this fetch.
func WithStaleTime(d time.Duration) FetchOption {
	return func(o *fetchOptions) { o.staleTime = d }
}

// WithCacheTime overrides the policy CacheTime for the entry, clamped to
// MaxCacheTime.
func WithCacheTime(d time.Duration) FetchOption {
	return func(o *fetchOptions) { o.cacheTime = d }
}

// WithForce fetches even when the entry is fresh.
func WithForce() FetchOption {
	return func(o *fetchOptions) { o.force = true }
}

// WithFlight keeps this fetch out of flights started under another id.
// Concurrent fetches of the same key share one call only when their ids
// match. Callers whose fn depends on private state use it.
func WithFlight(id string) FetchOption {
	return func(o *fetchOptions) { o.flight = id }
}

func buildFetchOptions(opts []FetchOption) fetchOptions {
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Fetch returns the entry's data, calling fn when the entry is missing,
// stale, invalidated, or when WithForce is given.
func (s *Store) Fetch(ctx context.Context, key Key, fn FetchFunc, opts ...FetchOption) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	hash, _ := key.Hash()
	o := buildFetchOptions(opts)

	if !o.force {
		if data, ok := s.fresh(hash, o.staleTime); ok {
			s.metrics.RecordCacheLookup(ctx, key.Path(), true)
			return data, nil
		}
	}
	s.metrics.RecordCacheLookup(ctx, key.Path(), false)
	flight := hash
	if o.flight != "" {
		flight = hash + "\x00" + o.flight
	}
	return s.fetchShared(ctx, key, hash, flight, o, fn)
}

// Prefetch fetches key unless it is fresh. Fetch failures are recorded on
// the entry, not returned; only an invalid key is an error.
func (s *Store) Prefetch(ctx context.Context, key Key, fn FetchFunc, opts ...FetchOption) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	_, _ = s.Fetch(ctx, key, fn, opts...)
	return nil
}

func (s *Store) fresh(hash string, staleTime time.Duration) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[hash]
	if !ok {
		return nil, false
	}
	now := s.now()
	e.lastUsed = now
	if e.state.IsStale(now, s.policy.EffectiveStaleTime(staleTime)) {
		return nil, false
	}
	return e.state.Data, true
}

// fetchShared runs fn once per flight key. Callers whose own context is
// still live retry when the flight they joined was cancelled by its leader.
func (s *Store) fetchShared(ctx context.Context, key Key, hash, flight string, o fetchOptions, fn FetchFunc) (any, error) {
	for {
		ch := s.group.DoChan(flight, func() (any, error) {
			return s.run(ctx, key, hash, o, fn)
		})
		select {
		case res := <-ch:
			if res.Err != nil && resilience.IsContextError(res.Err) && ctx.Err() == nil {
				continue
			}
			return res.Val, res.Err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Store) run(ctx context.Context, key Key, hash string, o fetchOptions, fn FetchFunc) (any, error) {
	prev := s.begin(key, hash, o)

	var data any
	err := s.executor.Execute(ctx, func(ctx context.Context) error {
		var err error
		data, err = fn(ctx)
		return err
	})
	return s.settle(ctx, key, hash, prev, data, err)
}

func (s *Store) begin(key Key, hash string, o fetchOptions) Status {
	s.mu.Lock()
	e, ok := s.entries[hash]
	if !ok {
		e = &entry{key: key}
		s.entries[hash] = e
	}
	if o.cacheTime > 0 || e.cacheTime == 0 {
		e.cacheTime = s.policy.EffectiveCacheTime(o.cacheTime)
	}
	e.lastUsed = s.now()
	prev := e.state.Status
	e.state.IsFetching = true
	e.state.FetchCount++
	if !e.state.HasData() {
		e.state.Status = StatusLoading
	}
	s.mu.Unlock()

	s.notify(hash)
	return prev
}

func (s *Store) settle(ctx context.Context, key Key, hash string, prev Status, data any, err error) (any, error) {
	s.mu.Lock()
	e, ok := s.entries[hash]
	if !ok {
		// Removed while in flight.
		s.mu.Unlock()
		if errors.Is(err, ErrNotModified) {
			return nil, nil
		}
		return data, err
	}
	now := s.now()
	e.lastUsed = now
	e.state.IsFetching = false

	switch {
	case err == nil:
		e.state.Data = data
		e.state.Err = nil
		e.state.Status = StatusSuccess
		e.state.DataUpdatedAt = now
		e.state.Invalidated = false
	case errors.Is(err, ErrNotModified):
		e.state.Status = prev
		e.state.Invalidated = false
		data, err = e.state.Data, nil
	case resilience.IsContextError(err) && ctx.Err() != nil:
		e.state.Status = prev
	default:
		e.state.Err = err
		e.state.Status = StatusError
		e.state.ErrorUpdatedAt = now
		e.state.Invalidated = false
	}
	s.mu.Unlock()

	if err != nil && !resilience.IsContextError(err) {
		s.logger.WithProcedure(observe.ProcedureMeta{Path: key.Path()}).Warn(ctx, "cache fetch failed",
			observe.Field{Key: "error", Value: err.Error()})
	}
	s.notify(hash)
	return data, err
}

// Get returns a snapshot of the entry for key.
func (s *Store) Get(key Key) (State, bool) {
	hash, err := key.Hash()
	if err != nil {
		return State{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[hash]
	if !ok {
		return State{}, false
	}
	return e.state, true
}

// SetData writes data into the entry for key as a successful fetch result,
// creating the entry if needed. It is the hook for optimistic updates.
func (s *Store) SetData(key Key, data any) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	hash, _ := key.Hash()

	s.mu.Lock()
	e, ok := s.entries[hash]
	if !ok {
		e = &entry{key: key, cacheTime: s.policy.EffectiveCacheTime(0)}
		s.entries[hash] = e
	}
	now := s.now()
	e.lastUsed = now
	e.state.Data = data
	e.state.Err = nil
	e.state.Status = StatusSuccess
	e.state.DataUpdatedAt = now
	e.state.Invalidated = false
	s.mu.Unlock()

	s.notify(hash)
	return nil
}

// Invalidate marks every entry whose key starts with prefix as stale.
// Observers of those entries refetch. It returns the number of entries hit.
func (s *Store) Invalidate(prefix Key) int {
	var hit []string
	s.mu.Lock()
	for hash, e := range s.entries {
		if e.key.HasPrefix(prefix) {
			e.state.Invalidated = true
			hit = append(hit, hash)
		}
	}
	s.mu.Unlock()

	for _, h := range hit {
		s.notify(h)
	}
	return len(hit)
}

// Remove deletes every entry whose key starts with prefix. Watchers stay
// registered and observe the entry as missing.
func (s *Store) Remove(prefix Key) int {
	var hit []string
	s.mu.Lock()
	for hash, e := range s.entries {
		if e.key.HasPrefix(prefix) {
			delete(s.entries, hash)
			hit = append(hit, hash)
		}
	}
	s.mu.Unlock()

	for _, h := range hit {
		s.notify(h)
	}
	return len(hit)
}

// Watch returns a channel signalled whenever the entry for key changes, and
// a function that stops watching. Signals coalesce: a slow reader sees one
// pending signal, never a backlog.
func (s *Store) Watch(key Key) (<-chan struct{}, func()) {
	hash, err := key.Hash()
	ch := make(chan struct{}, 1)
	if err != nil {
		return ch, func() {}
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	if s.watchers[hash] == nil {
		s.watchers[hash] = make(map[uint64]chan struct{})
	}
	s.watchers[hash][id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.watchers[hash], id)
			if len(s.watchers[hash]) == 0 {
				delete(s.watchers, hash)
				if e, ok := s.entries[hash]; ok {
					e.lastUsed = s.now()
				}
			}
		})
	}
}

func (s *Store) notify(hash string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.watchers[hash] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// GC removes entries that have no watchers, are not fetching, and were last
// used at least their cache time before now. It returns the number removed.
func (s *Store) GC(now time.Time) int {
	s.mu.Lock()
	removed := 0
	for hash, e := range s.entries {
		if len(s.watchers[hash]) > 0 || e.state.IsFetching {
			continue
		}
		if now.Sub(e.lastUsed) >= e.cacheTime {
			delete(s.entries, hash)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Debug(context.Background(), "cache gc", observe.Field{Key: "removed", Value: removed})
	}
	return removed
}

// StartGC runs GC every interval until ctx is done.
func (s *Store) StartGC(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.GC(s.now())
			}
		}
	}()
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
