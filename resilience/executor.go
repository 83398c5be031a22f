package resilience

import (
	"context"
	"time"
)

// Policy is any pattern that can wrap an operation.
type Policy interface {
	Execute(ctx context.Context, op func(context.Context) error) error
}

// Executor composes policies around an operation.
//
// Order, outermost first: rate limiter, bulkhead, circuit breaker, retry,
// timeout. The timeout therefore bounds each attempt, not the whole retry
// sequence, and a bulkhead slot is held across retries.
type Executor struct {
	rateLimiter    *RateLimiter
	bulkhead       *Bulkhead
	circuitBreaker *CircuitBreaker
	retry          *Retry
	timeout        *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates an executor. With no options it just calls op.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithRateLimiter adds a rate limiter.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) { e.rateLimiter = rl }
}

// WithBulkhead adds a concurrency cap.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) { e.bulkhead = b }
}

// WithCircuitBreaker adds a circuit breaker.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.circuitBreaker = cb }
}

// WithRetry adds retries.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithTimeout adds a per-attempt deadline.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = NewTimeout(TimeoutConfig{Timeout: d}) }
}

// Execute runs op through the configured policies.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	run := op
	for _, p := range e.chain() {
		inner, policy := run, p
		run = func(ctx context.Context) error {
			return policy.Execute(ctx, inner)
		}
	}
	return run(ctx)
}

// chain lists the configured policies innermost first.
func (e *Executor) chain() []Policy {
	policies := make([]Policy, 0, 5)
	if e.timeout != nil {
		policies = append(policies, e.timeout)
	}
	if e.retry != nil {
		policies = append(policies, e.retry)
	}
	if e.circuitBreaker != nil {
		policies = append(policies, e.circuitBreaker)
	}
	if e.bulkhead != nil {
		policies = append(policies, e.bulkhead)
	}
	if e.rateLimiter != nil {
		policies = append(policies, e.rateLimiter)
	}
	return policies
}
