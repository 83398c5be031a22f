package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig configures the token bucket.
type RateLimiterConfig struct {
	// Rate is the refill rate in tokens per second. Default: 100
	Rate float64

	// Burst is the bucket capacity. Default: 10
	Burst int

	// WaitOnLimit makes Execute block for a token instead of failing.
	WaitOnLimit bool
}

// RateLimiterFromInterval returns a config admitting one operation per
// interval with no burst. Live queries use it to pace automatic refetches.
func RateLimiterFromInterval(interval time.Duration) RateLimiterConfig {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return RateLimiterConfig{
		Rate:        float64(time.Second) / float64(interval),
		Burst:       1,
		WaitOnLimit: true,
	}
}

// RateLimiter is a token bucket limiter.
type RateLimiter struct {
	config RateLimiterConfig

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a limiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 100
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	return &RateLimiter{
		config:     config,
		tokens:     float64(config.Burst),
		lastRefill: time.Now(),
	}
}

// Allow takes one token if available.
func (rl *RateLimiter) Allow() bool {
	ok, _ := rl.reserve(1)
	return ok
}

// Wait blocks until a token is taken or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		ok, wait := rl.reserve(1)
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve takes n tokens when available, otherwise reports how long until
// they would be.
func (rl *RateLimiter) reserve(n float64) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.tokens += now.Sub(rl.lastRefill).Seconds() * rl.config.Rate
	rl.lastRefill = now
	if rl.tokens > float64(rl.config.Burst) {
		rl.tokens = float64(rl.config.Burst)
	}

	if rl.tokens >= n {
		rl.tokens -= n
		return true, 0
	}
	missing := n - rl.tokens
	wait := time.Duration(missing / rl.config.Rate * float64(time.Second))
	if wait <= 0 {
		wait = time.Millisecond
	}
	return false, wait
}

// Execute runs op once a token is granted.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if rl.config.WaitOnLimit {
		if err := rl.Wait(ctx); err != nil {
			return err
		}
	} else if !rl.Allow() {
		return ErrRateLimitExceeded
	}
	return op(ctx)
}

// Tokens returns the tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	elapsed := time.Since(rl.lastRefill).Seconds() * rl.config.Rate
	tokens := rl.tokens + elapsed
	if tokens > float64(rl.config.Burst) {
		tokens = float64(rl.config.Burst)
	}
	return tokens
}

// Reset refills the bucket.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = float64(rl.config.Burst)
	rl.lastRefill = time.Now()
}
