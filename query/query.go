package query

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/rpcquery/cache"
	"github.com/jonwraymond/rpcquery/rpc"
)

// QueryOptions configures UseQuery.
type QueryOptions[Out any] struct {
	// Disabled suppresses automatic fetching; Refetch still works.
	Disabled bool

	// StaleTime overrides the store policy.
	StaleTime time.Duration

	// RefetchInterval, when positive, polls on a fixed period.
	RefetchInterval time.Duration

	OnSuccess func(data Out)
	OnError   func(err error)
}

// Result is what a query observer exposes to its consumer.
type Result[Out any] struct {
	Data          Out
	HasData       bool
	Err           error
	Status        cache.Status
	DataUpdatedAt time.Time
	IsFetching    bool
	FetchCount    int
}

func resultOf[Out any](t rpc.Transformer, st cache.State) Result[Out] {
	r := Result[Out]{
		HasData:       st.HasData(),
		Err:           st.Err,
		Status:        st.Status,
		DataUpdatedAt: st.DataUpdatedAt,
		IsFetching:    st.IsFetching,
		FetchCount:    st.FetchCount,
	}
	if r.HasData {
		data, err := decodeAs[Out](t, st.Data)
		if err != nil {
			r.HasData = false
			r.Err = err
			r.Status = cache.StatusError
			return r
		}
		r.Data = data
	}
	return r
}

// Query is an open query observer.
type Query[Out any] struct {
	f   *Facade
	obs *cache.Observer
}

// UseQuery opens an observer for the query procedure path with input. The
// entry key is [path, input, TRPC_QUERY]. The observer fetches when the
// entry is missing or stale and stays subscribed until Close or until ctx
// is cancelled.
func UseQuery[In, Out any](ctx context.Context, f *Facade, path string, input In, opts QueryOptions[Out]) (*Query[Out], error) {
	key := cache.NewKey(path, input, cache.KindQuery)
	obs, err := f.store.Observe(ctx, key, func(ctx context.Context) (any, error) {
		return fetchAs[Out](ctx, f, rpc.KindQuery, path, input)
	}, cache.ObserverOptions{
		Disabled:        opts.Disabled,
		StaleTime:       opts.StaleTime,
		RefetchInterval: opts.RefetchInterval,
		OnSuccess:       typedSuccess(f, opts.OnSuccess, opts.OnError),
		OnError:         opts.OnError,
	})
	if err != nil {
		return nil, fmt.Errorf("query: use %s: %w", path, err)
	}
	return &Query[Out]{f: f, obs: obs}, nil
}

func typedSuccess[Out any](f *Facade, onSuccess func(Out), onError func(error)) func(any) {
	if onSuccess == nil {
		return nil
	}
	return func(v any) {
		data, err := decodeAs[Out](f.transformer, v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onSuccess(data)
	}
}

// Result returns the current result.
func (q *Query[Out]) Result() Result[Out] {
	return resultOf[Out](q.f.transformer, q.obs.Current())
}

// Refetch fetches regardless of freshness.
func (q *Query[Out]) Refetch(ctx context.Context) (Result[Out], error) {
	st, err := q.obs.Refetch(ctx)
	return resultOf[Out](q.f.transformer, st), err
}

// Updates is signalled whenever the result may have changed.
func (q *Query[Out]) Updates() <-chan struct{} { return q.obs.Updates() }

// WaitFor blocks until pred holds or ctx is done.
func (q *Query[Out]) WaitFor(ctx context.Context, pred func(Result[Out]) bool) (Result[Out], error) {
	st, err := q.obs.WaitFor(ctx, func(st cache.State) bool {
		return pred(resultOf[Out](q.f.transformer, st))
	})
	return resultOf[Out](q.f.transformer, st), err
}

// Key returns the cache key.
func (q *Query[Out]) Key() cache.Key { return q.obs.Key() }

// Close stops the observer.
func (q *Query[Out]) Close() { q.obs.Close() }

// Fetch reads the query through the cache: fresh data is returned as is,
// otherwise the procedure is called and the entry updated.
func Fetch[In, Out any](ctx context.Context, f *Facade, path string, input In) (Out, error) {
	v, err := f.store.Fetch(ctx, cache.NewKey(path, input, cache.KindQuery), func(ctx context.Context) (any, error) {
		return fetchAs[Out](ctx, f, rpc.KindQuery, path, input)
	})
	if err != nil {
		var zero Out
		return zero, err
	}
	return decodeAs[Out](f.transformer, v)
}

// PrefetchQuery populates the query entry through the network client under
// the same key UseQuery reads. Fetch failures land in the entry; only an
// invalid key is returned.
func PrefetchQuery[In, Out any](ctx context.Context, f *Facade, path string, input In) error {
	return f.store.Prefetch(ctx, cache.NewKey(path, input, cache.KindQuery), func(ctx context.Context) (any, error) {
		return fetchAs[Out](ctx, f, rpc.KindQuery, path, input)
	})
}
