package rpc

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Handler executes one procedure on serialized input.
type Handler func(ctx context.Context, input []byte) ([]byte, error)

type procedure struct {
	kind    Kind
	handler Handler
}

// Router is a minimal in-process procedure table. It backs server-side
// callers and the LocalClient.
//
// Contract:
// - Concurrency: registration and calls are safe for concurrent use.
// - Errors: handler errors that are not *ClientError are reported as INTERNAL_SERVER_ERROR.
type Router struct {
	mu          sync.RWMutex
	procedures  map[string]procedure
	transformer Transformer
}

// NewRouter creates a Router. A nil transformer defaults to JSONTransformer.
func NewRouter(t Transformer) *Router {
	if t == nil {
		t = JSONTransformer{}
	}
	return &Router{procedures: make(map[string]procedure), transformer: t}
}

// Transformer returns the router's transformer.
func (r *Router) Transformer() Transformer { return r.transformer }

// Handle registers a raw handler.
func (r *Router) Handle(kind Kind, path string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.procedures[path]; ok {
		return fmt.Errorf("%w: %s", ErrProcedureExists, path)
	}
	r.procedures[path] = procedure{kind: kind, handler: h}
	return nil
}

// Procedures returns registered paths in sorted order.
func (r *Router) Procedures() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, 0, len(r.procedures))
	for p := range r.procedures {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

func typed[In, Out any](r *Router, path string, fn func(context.Context, In) (Out, error)) Handler {
	return func(ctx context.Context, raw []byte) ([]byte, error) {
		var in In
		if err := r.transformer.Deserialize(raw, &in); err != nil {
			return nil, &ClientError{Path: path, Code: CodeBadRequest, HTTPStatus: CodeBadRequest.HTTPStatus(), Message: "invalid input", Cause: err}
		}
		out, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}
		return r.transformer.Serialize(out)
	}
}

// HandleQuery registers a typed query.
func HandleQuery[In, Out any](r *Router, path string, fn func(context.Context, In) (Out, error)) error {
	return r.Handle(KindQuery, path, typed(r, path, fn))
}

// HandleMutation registers a typed mutation.
func HandleMutation[In, Out any](r *Router, path string, fn func(context.Context, In) (Out, error)) error {
	return r.Handle(KindMutation, path, typed(r, path, fn))
}

// HandleSubscription registers a typed subscription. Each call returns the
// batch of events available for the given input.
func HandleSubscription[In, Out any](r *Router, path string, fn func(context.Context, In) ([]Out, error)) error {
	return r.Handle(KindSubscription, path, typed(r, path, func(ctx context.Context, in In) ([]Out, error) {
		batch, err := fn(ctx, in)
		if batch == nil && err == nil {
			batch = []Out{}
		}
		return batch, err
	}))
}

type routerContextKey struct{}

// RouterContext returns the context value a Caller was created with.
func RouterContext(ctx context.Context) any {
	return ctx.Value(routerContextKey{})
}

// CreateCaller returns a Caller that injects rctx into every call.
func (r *Router) CreateCaller(rctx any) Caller {
	return &routerCaller{router: r, rctx: rctx}
}

func (r *Router) call(ctx context.Context, kind Kind, path string, input []byte) ([]byte, error) {
	r.mu.RLock()
	p, ok := r.procedures[path]
	r.mu.RUnlock()
	if !ok {
		return nil, NewClientError(path, CodeNotFound, fmt.Sprintf("no %s procedure on path %q", kind, path))
	}
	if p.kind != kind {
		return nil, NewClientError(path, CodeMethodNotSupported, fmt.Sprintf("%q is a %s, not a %s", path, p.kind, kind))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := p.handler(ctx, input)
	if err == nil {
		return out, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	if ce, ok := AsClientError(err); ok {
		filled := *ce
		if filled.Path == "" {
			filled.Path = path
		}
		if filled.Code == "" {
			filled.Code = CodeInternal
		}
		if filled.HTTPStatus == 0 {
			filled.HTTPStatus = filled.Code.HTTPStatus()
		}
		return nil, &filled
	}
	return nil, &ClientError{Path: path, Code: CodeInternal, HTTPStatus: CodeInternal.HTTPStatus(), Message: err.Error(), Cause: err}
}

type routerCaller struct {
	router *Router
	rctx   any
}

func (c *routerCaller) ctx(ctx context.Context) context.Context {
	return context.WithValue(ctx, routerContextKey{}, c.rctx)
}

func (c *routerCaller) Query(ctx context.Context, path string, input []byte) ([]byte, error) {
	return c.router.call(c.ctx(ctx), KindQuery, path, input)
}

func (c *routerCaller) Mutation(ctx context.Context, path string, input []byte) ([]byte, error) {
	return c.router.call(c.ctx(ctx), KindMutation, path, input)
}

func (c *routerCaller) SubscriptionOnce(ctx context.Context, path string, input []byte) ([]byte, error) {
	return c.router.call(c.ctx(ctx), KindSubscription, path, input)
}
