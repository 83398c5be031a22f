// Package resilience provides the failure-handling policies used around
// remote procedure calls and cache fetches.
//
// The cache store runs every fetch through an Executor built from its
// policy (retry, per-attempt timeout, bulkhead). The HTTP client guards its
// transport with a CircuitBreaker, and live queries pace their automatic
// refetches with a RateLimiter.
//
// # Usage
//
//	exec := resilience.NewExecutor(
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
//	        MaxAttempts:  3,
//	        InitialDelay: 100 * time.Millisecond,
//	    })),
//	    resilience.WithTimeout(5*time.Second),
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
//	        MaxConcurrent: 8,
//	    })),
//	)
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return fetch(ctx)
//	})
package resilience
