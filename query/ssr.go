package query

import (
	"context"
	"fmt"

	"github.com/jonwraymond/rpcquery/cache"
	"github.com/jonwraymond/rpcquery/rpc"
)

// SSR prefetches into a Facade's store by invoking procedures in-process,
// bypassing the transport. Entries land under the same keys the observers
// read, so a dehydrated SSR store hydrates straight into client observers.
type SSR struct {
	f      *Facade
	caller rpc.Caller
}

// NewSSR binds a caller created from factory for rctx, typically the
// request being rendered.
func NewSSR(f *Facade, factory rpc.CallerFactory, rctx any) (*SSR, error) {
	if f == nil {
		return nil, ErrNilFacade
	}
	if factory == nil {
		return nil, rpc.ErrNilClient
	}
	return &SSR{f: f, caller: factory.CreateCaller(rctx)}, nil
}

// Caller returns the direct caller for procedures not covered by the
// prefetch helpers.
func (s *SSR) Caller() rpc.Caller { return s.caller }

// Facade returns the facade whose store is populated.
func (s *SSR) Facade() *Facade { return s.f }

func directAs[Out any](ctx context.Context, s *SSR, kind rpc.Kind, path string, input any) (Out, error) {
	raw, err := s.f.callDirect(ctx, s.caller, kind, path, input)
	if err != nil {
		var zero Out
		return zero, err
	}
	return rpc.Decode[Out](s.f.transformer, raw)
}

// SSRPrefetchQuery stores the result of the query path under
// [path, input, TRPC_QUERY]. Procedure failures are recorded on the entry.
func SSRPrefetchQuery[In, Out any](ctx context.Context, s *SSR, path string, input In) error {
	return s.f.store.Prefetch(ctx, cache.NewKey(path, input, cache.KindQuery), func(ctx context.Context) (any, error) {
		return directAs[Out](ctx, s, rpc.KindQuery, path, input)
	})
}

// SSRPrefetchInfiniteQuery stores the first page of the query path under
// [path, input, TRPC_INFINITE_QUERY], fetched with initialCursor.
func SSRPrefetchInfiniteQuery[In, Out any](ctx context.Context, s *SSR, path string, input In, initialCursor any) error {
	if _, err := withCursor(input, nil); err != nil {
		return fmt.Errorf("query: ssr infinite %s: %w", path, err)
	}
	fn := cursorPages(input, func(ctx context.Context, in any) (Out, error) {
		return directAs[Out](ctx, s, rpc.KindQuery, path, in)
	})
	return s.f.store.PrefetchInfinite(ctx, cache.NewKey(path, input, cache.KindInfiniteQuery), initialCursor, fn)
}
