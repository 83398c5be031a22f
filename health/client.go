package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/rpcquery/cache"
	"github.com/jonwraymond/rpcquery/resilience"
	"github.com/jonwraymond/rpcquery/rpc"
)

// ProcedureChecker calls a query procedure. A successful call is healthy.
// A call the server rejected with an error code is degraded: the endpoint
// answered. A transport failure or server-side error is unhealthy.
type ProcedureChecker struct {
	client rpc.Client
	path   string
	input  []byte
}

// NewProcedureChecker creates a checker that calls path with a null input.
func NewProcedureChecker(client rpc.Client, path string) *ProcedureChecker {
	return &ProcedureChecker{client: client, path: path, input: []byte("null")}
}

// Name returns "procedure".
func (c *ProcedureChecker) Name() string { return "procedure" }

// Check performs one call.
func (c *ProcedureChecker) Check(ctx context.Context) Result {
	call := c.client.Query(ctx, c.path, c.input)
	defer call.Cancel()

	_, err := call.Wait(ctx)
	details := map[string]any{"path": c.path}
	switch {
	case err == nil:
		return Healthy("procedure answered").WithDetails(details)
	case rpc.IsRetryable(err) || resilience.IsContextError(err):
		return Unhealthy("procedure unreachable", err).WithDetails(details)
	default:
		if ce, ok := rpc.AsClientError(err); ok {
			details["code"] = string(ce.Code)
		}
		return Degraded("procedure rejected the probe", err).WithDetails(details)
	}
}

// BreakerChecker reports the transport circuit breaker state. A nil
// breaker is healthy.
type BreakerChecker struct {
	breaker *resilience.CircuitBreaker
}

// NewBreakerChecker creates a breaker checker.
func NewBreakerChecker(cb *resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{breaker: cb}
}

// Name returns "breaker".
func (c *BreakerChecker) Name() string { return "breaker" }

// Check reads the breaker state.
func (c *BreakerChecker) Check(context.Context) Result {
	if c.breaker == nil {
		return Healthy("no breaker configured")
	}
	m := c.breaker.Metrics()
	details := map[string]any{"state": m.State.String(), "failures": m.Failures}
	switch m.State {
	case resilience.CircuitOpen:
		return Unhealthy("circuit open", ErrCircuitOpen).WithDetails(details)
	case resilience.CircuitHalfOpen:
		return Degraded("circuit half-open", nil).WithDetails(details)
	default:
		return Healthy("circuit closed").WithDetails(details)
	}
}

// CacheChecker reports the number of cache entries. More than MaxEntries
// is degraded; zero disables the limit.
type CacheChecker struct {
	store      *cache.Store
	maxEntries int
}

// NewCacheChecker creates a cache checker.
func NewCacheChecker(store *cache.Store, maxEntries int) *CacheChecker {
	return &CacheChecker{store: store, maxEntries: maxEntries}
}

// Name returns "cache".
func (c *CacheChecker) Name() string { return "cache" }

// Check counts entries.
func (c *CacheChecker) Check(context.Context) Result {
	n := c.store.Len()
	details := map[string]any{"entries": n}
	if c.maxEntries > 0 && n > c.maxEntries {
		return Degraded(fmt.Sprintf("%d entries exceed the limit of %d", n, c.maxEntries), nil).WithDetails(details)
	}
	return Healthy(fmt.Sprintf("%d entries", n)).WithDetails(details)
}
