package rpc

import "context"

// LocalClient adapts a Caller to the asynchronous Client interface. It is
// used in tests and by single-process deployments that mount the router
// next to the cache.
type LocalClient struct {
	caller      Caller
	transformer Transformer
}

// NewLocalClient returns a Client that runs every call on caller.
func NewLocalClient(caller Caller, t Transformer) *LocalClient {
	if t == nil {
		t = JSONTransformer{}
	}
	return &LocalClient{caller: caller, transformer: t}
}

// NewRouterClient is shorthand for a LocalClient over r.CreateCaller(rctx).
func NewRouterClient(r *Router, rctx any) *LocalClient {
	return NewLocalClient(r.CreateCaller(rctx), r.Transformer())
}

func (c *LocalClient) Query(ctx context.Context, path string, input []byte) *Call {
	return Go(ctx, func(ctx context.Context) ([]byte, error) { return c.caller.Query(ctx, path, input) })
}

func (c *LocalClient) Mutation(ctx context.Context, path string, input []byte) *Call {
	return Go(ctx, func(ctx context.Context) ([]byte, error) { return c.caller.Mutation(ctx, path, input) })
}

func (c *LocalClient) SubscriptionOnce(ctx context.Context, path string, input []byte) *Call {
	return Go(ctx, func(ctx context.Context) ([]byte, error) { return c.caller.SubscriptionOnce(ctx, path, input) })
}

func (c *LocalClient) Transformer() Transformer { return c.transformer }
