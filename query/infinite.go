package query

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/rpcquery/cache"
	"github.com/jonwraymond/rpcquery/rpc"
)

// InfiniteQueryOptions configures UseInfiniteQuery.
type InfiniteQueryOptions[Out any] struct {
	Disabled  bool
	StaleTime time.Duration

	// InitialCursor is sent as the cursor of the first page.
	InitialCursor any

	// GetNextPageParam returns the cursor of the page after lastPage;
	// ok=false ends pagination.
	GetNextPageParam func(lastPage Out, allPages []Out) (cursor any, ok bool)

	OnError func(err error)
}

// InfiniteResult is the paginated view of an infinite query.
type InfiniteResult[Out any] struct {
	Pages       []Out
	PageParams  []any
	Err         error
	Status      cache.Status
	IsFetching  bool
	HasNextPage bool
}

// InfiniteQuery is an open paginated query observer.
type InfiniteQuery[Out any] struct {
	f   *Facade
	obs *cache.InfiniteObserver
}

// cursorPages adapts a typed page fetch to a cache.PageFunc: the page
// parameter is merged into input as "cursor".
func cursorPages[Out any](input any, fetch func(ctx context.Context, in any) (Out, error)) cache.PageFunc {
	return func(ctx context.Context, param any) (any, error) {
		in, err := withCursor(input, param)
		if err != nil {
			return nil, err
		}
		return fetch(ctx, in)
	}
}

// UseInfiniteQuery opens a paginated observer on the query procedure path.
// The key is [path, input, TRPC_INFINITE_QUERY]; input must encode as a
// JSON object or null.
func UseInfiniteQuery[In, Out any](ctx context.Context, f *Facade, path string, input In, opts InfiniteQueryOptions[Out]) (*InfiniteQuery[Out], error) {
	if _, err := withCursor(input, nil); err != nil {
		return nil, fmt.Errorf("query: infinite %s: %w", path, err)
	}

	var next func(any, []any) (any, bool)
	if opts.GetNextPageParam != nil {
		next = func(last any, all []any) (any, bool) {
			typedLast, err := decodeAs[Out](f.transformer, last)
			if err != nil {
				return nil, false
			}
			typedAll, err := decodePages[Out](f.transformer, all)
			if err != nil {
				return nil, false
			}
			return opts.GetNextPageParam(typedLast, typedAll)
		}
	}

	fn := cursorPages(input, func(ctx context.Context, in any) (Out, error) {
		return fetchAs[Out](ctx, f, rpc.KindQuery, path, in)
	})
	obs, err := f.store.ObserveInfinite(ctx, cache.NewKey(path, input, cache.KindInfiniteQuery), fn, cache.InfiniteObserverOptions{
		ObserverOptions: cache.ObserverOptions{
			Disabled:  opts.Disabled,
			StaleTime: opts.StaleTime,
			OnError:   opts.OnError,
		},
		InitialPageParam: opts.InitialCursor,
		GetNextPageParam: next,
	})
	if err != nil {
		return nil, fmt.Errorf("query: infinite %s: %w", path, err)
	}
	return &InfiniteQuery[Out]{f: f, obs: obs}, nil
}

func decodePages[Out any](t rpc.Transformer, pages []any) ([]Out, error) {
	out := make([]Out, 0, len(pages))
	for _, p := range pages {
		v, err := decodeAs[Out](t, p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Result returns the pages loaded so far.
func (q *InfiniteQuery[Out]) Result() InfiniteResult[Out] {
	st := q.obs.Current()
	r := InfiniteResult[Out]{
		Err:         st.Err,
		Status:      st.Status,
		IsFetching:  st.IsFetching,
		HasNextPage: q.obs.HasNextPage(),
	}
	d := q.obs.Data()
	pages, err := decodePages[Out](q.f.transformer, d.Pages)
	if err != nil {
		r.Err = err
		r.Status = cache.StatusError
		return r
	}
	r.Pages = pages
	r.PageParams = d.PageParams
	return r
}

// HasNextPage reports whether another page is available.
func (q *InfiniteQuery[Out]) HasNextPage() bool { return q.obs.HasNextPage() }

// FetchNextPage appends the next page. Without one it does nothing.
func (q *InfiniteQuery[Out]) FetchNextPage(ctx context.Context) (InfiniteResult[Out], error) {
	_, err := q.obs.FetchNextPage(ctx)
	return q.Result(), err
}

// Refetch reloads every loaded page.
func (q *InfiniteQuery[Out]) Refetch(ctx context.Context) (InfiniteResult[Out], error) {
	_, err := q.obs.Refetch(ctx)
	return q.Result(), err
}

// WaitFor blocks until pred holds or ctx is done.
func (q *InfiniteQuery[Out]) WaitFor(ctx context.Context, pred func(InfiniteResult[Out]) bool) (InfiniteResult[Out], error) {
	_, err := q.obs.WaitFor(ctx, func(cache.State) bool { return pred(q.Result()) })
	return q.Result(), err
}

// Updates is signalled whenever the pages may have changed.
func (q *InfiniteQuery[Out]) Updates() <-chan struct{} { return q.obs.Updates() }

// Key returns the cache key.
func (q *InfiniteQuery[Out]) Key() cache.Key { return q.obs.Key() }

// Close stops the observer.
func (q *InfiniteQuery[Out]) Close() { q.obs.Close() }
