package query

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonwraymond/rpcquery/cache"
	"github.com/jonwraymond/rpcquery/observe"
	"github.com/jonwraymond/rpcquery/resilience"
	"github.com/jonwraymond/rpcquery/rpc"
)

var (
	// ErrInputNotObject is returned when a cursor must be merged into an
	// input that does not encode as a JSON object.
	ErrInputNotObject = errors.New("query: input must be an object to carry a cursor")

	// ErrNilFacade is returned when a helper is given a nil Facade.
	ErrNilFacade = errors.New("query: facade is nil")

	// ErrDecode wraps failures to convert cached data into the caller's type.
	ErrDecode = errors.New("query: cannot decode cached data")
)

// Facade binds an rpc.Client to a cache.Store.
//
// Contract:
//   - Concurrency: safe for concurrent use; the Facade itself holds no
//     per-query state beyond the hydration memo.
//   - Errors: client errors reach callers and cache entries unchanged.
type Facade struct {
	client      rpc.Client
	store       *cache.Store
	transformer rpc.Transformer
	snapshots   rpc.Transformer
	mw          *observe.Middleware
	logger      observe.Logger

	memoMu    sync.Mutex
	memoSum   [32]byte
	memoState *cache.DehydratedState
}

// Option configures a Facade.
type Option func(*Facade)

// WithMiddleware instruments every procedure call.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(f *Facade) { f.mw = mw }
}

// WithSnapshotTransformer sets the transformer used by Dehydrate and
// Hydrate. Defaults to the client's transformer.
func WithSnapshotTransformer(t rpc.Transformer) Option {
	return func(f *Facade) { f.snapshots = t }
}

// WithLogger sets the facade logger.
func WithLogger(l observe.Logger) Option {
	return func(f *Facade) { f.logger = l }
}

// New creates a Facade.
func New(client rpc.Client, store *cache.Store, opts ...Option) (*Facade, error) {
	if client == nil {
		return nil, rpc.ErrNilClient
	}
	if store == nil {
		return nil, cache.ErrNilStore
	}
	f := &Facade{client: client, store: store, transformer: client.Transformer()}
	for _, opt := range opts {
		opt(f)
	}
	if f.transformer == nil {
		return nil, rpc.ErrNilTransformer
	}
	if f.snapshots == nil {
		f.snapshots = f.transformer
	}
	if f.logger == nil {
		f.logger = observe.NopLogger()
	}
	if f.mw == nil {
		f.mw = observe.NewMiddleware(nil, nil, f.logger)
	}
	return f, nil
}

// Client returns the underlying client.
func (f *Facade) Client() rpc.Client { return f.client }

// Store returns the underlying cache store.
func (f *Facade) Store() *cache.Store { return f.store }

// Transformer returns the client's transformer.
func (f *Facade) Transformer() rpc.Transformer { return f.transformer }

// DefaultPolicy is cache.DefaultPolicy with retries limited to failures a
// repeat can fix: transport errors, timeouts and server overload.
func DefaultPolicy() cache.Policy {
	p := cache.DefaultPolicy()
	p.Retry.RetryIf = rpc.IsRetryable
	return p
}

// call serializes input and runs one procedure call through the client.
func (f *Facade) call(ctx context.Context, kind rpc.Kind, path string, input any) ([]byte, error) {
	return f.invoke(ctx, kind, path, input, func(ctx context.Context, raw []byte) ([]byte, error) {
		var c *rpc.Call
		switch kind {
		case rpc.KindMutation:
			c = f.client.Mutation(ctx, path, raw)
		case rpc.KindSubscription:
			c = f.client.SubscriptionOnce(ctx, path, raw)
		default:
			c = f.client.Query(ctx, path, raw)
		}
		return c.Wait(ctx)
	})
}

// callDirect runs one procedure call on a Caller, bypassing the transport.
func (f *Facade) callDirect(ctx context.Context, caller rpc.Caller, kind rpc.Kind, path string, input any) ([]byte, error) {
	return f.invoke(ctx, kind, path, input, func(ctx context.Context, raw []byte) ([]byte, error) {
		switch kind {
		case rpc.KindMutation:
			return caller.Mutation(ctx, path, raw)
		case rpc.KindSubscription:
			return caller.SubscriptionOnce(ctx, path, raw)
		default:
			return caller.Query(ctx, path, raw)
		}
	})
}

func (f *Facade) invoke(ctx context.Context, kind rpc.Kind, path string, input any, do func(context.Context, []byte) ([]byte, error)) ([]byte, error) {
	raw, err := f.transformer.Serialize(input)
	if err != nil {
		return nil, err
	}
	exec := f.mw.Wrap(func(ctx context.Context, _ observe.ProcedureMeta, in []byte) ([]byte, error) {
		return do(ctx, in)
	})
	return exec(ctx, observe.ProcedureMeta{Path: path, Kind: string(kind)}, raw)
}

// fetchAs calls a procedure and decodes its output into Out.
func fetchAs[Out any](ctx context.Context, f *Facade, kind rpc.Kind, path string, input any) (Out, error) {
	raw, err := f.call(ctx, kind, path, input)
	if err != nil {
		var zero Out
		return zero, err
	}
	return rpc.Decode[Out](f.transformer, raw)
}

// decodeAs converts cached data into T. Data written by this package is
// already a T; hydrated data is generic and goes through the transformer.
func decodeAs[T any](t rpc.Transformer, v any) (T, error) {
	if typed, ok := v.(T); ok {
		return typed, nil
	}
	var out T
	if v == nil {
		return out, nil
	}
	raw, err := t.Serialize(v)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := t.Deserialize(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return out, nil
}

// isCancellation reports whether err only reflects ctx being cancelled.
func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil && resilience.IsContextError(err)
}

// InvalidateQueries marks entries whose key starts with prefix as stale;
// open observers refetch them. A bare path invalidates every kind and input
// of that procedure.
func (f *Facade) InvalidateQueries(prefix ...any) int {
	return f.store.Invalidate(cache.Key(prefix))
}

// SetQueryData writes data for a plain query entry, typically from a
// mutation's OnMutate or OnSuccess callback.
func SetQueryData[In, Out any](f *Facade, path string, input In, data Out) error {
	return f.store.SetData(cache.NewKey(path, input, cache.KindQuery), data)
}

// GetQueryData reads a plain query entry.
func GetQueryData[In, Out any](f *Facade, path string, input In) (Out, bool, error) {
	st, ok := f.store.Get(cache.NewKey(path, input, cache.KindQuery))
	if !ok || !st.HasData() {
		var zero Out
		return zero, false, nil
	}
	out, err := decodeAs[Out](f.transformer, st.Data)
	return out, err == nil, err
}
