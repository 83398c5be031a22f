package rpc

import (
	"context"
	"net/http"
)

// Kind is the procedure type.
type Kind string

const (
	KindQuery        Kind = "query"
	KindMutation     Kind = "mutation"
	KindSubscription Kind = "subscription"
)

// Client calls remote procedures. Inputs and outputs are transformer bytes;
// the query facade owns (de)serialization of typed values.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Context: the returned Call must observe ctx and its own Cancel.
//   - Errors: failed calls resolve with a *ClientError.
//   - SubscriptionOnce resolves with one serialized batch (a JSON array for
//     JSON transformers) and then completes.
type Client interface {
	Query(ctx context.Context, path string, input []byte) *Call
	Mutation(ctx context.Context, path string, input []byte) *Call
	SubscriptionOnce(ctx context.Context, path string, input []byte) *Call
	Transformer() Transformer
}

// Caller invokes procedures directly, without a network transport.
type Caller interface {
	Query(ctx context.Context, path string, input []byte) ([]byte, error)
	Mutation(ctx context.Context, path string, input []byte) ([]byte, error)
	SubscriptionOnce(ctx context.Context, path string, input []byte) ([]byte, error)
}

// CallerFactory produces a Caller bound to a router context, such as the
// request being rendered on the server.
type CallerFactory interface {
	CreateCaller(rctx any) Caller
}

// HeaderSource supplies per-request headers, typically credentials.
type HeaderSource interface {
	Headers(ctx context.Context) (http.Header, error)
}
