package cache

import (
	"time"

	"github.com/jonwraymond/rpcquery/resilience"
)

// Policy configures freshness, retention and fetch behavior of a Store.
type Policy struct {
	// StaleTime is how long fetched data counts as fresh. Fresh entries are
	// served without a fetch. Zero means data is stale immediately.
	StaleTime time.Duration

	// CacheTime is how long an unobserved entry is kept before GC.
	CacheTime time.Duration

	// MaxCacheTime caps per-fetch CacheTime overrides. Zero means no cap.
	MaxCacheTime time.Duration

	// Retry configures fetch retries. The zero value retries 3 times.
	Retry resilience.RetryConfig

	// FetchTimeout bounds each fetch attempt. Zero means no timeout.
	FetchTimeout time.Duration

	// MaxConcurrentFetches bounds in-flight fetches. Zero means unbounded.
	MaxConcurrentFetches int
}

// DefaultPolicy returns the default store policy.
// StaleTime: 1 minute, CacheTime: 5 minutes, MaxCacheTime: 1 hour.
func DefaultPolicy() Policy {
	return Policy{
		StaleTime:    time.Minute,
		CacheTime:    5 * time.Minute,
		MaxCacheTime: time.Hour,
		Retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Jitter:       true,
		},
	}
}

// NoCachePolicy returns a policy under which data is always stale and
// unobserved entries are collected at the next GC.
func NoCachePolicy() Policy {
	return Policy{Retry: resilience.RetryConfig{MaxAttempts: 1}}
}

// EffectiveStaleTime returns override when positive, else StaleTime.
func (p Policy) EffectiveStaleTime(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return p.StaleTime
}

// EffectiveCacheTime returns the cache time to use, applying the default
// and clamping to MaxCacheTime.
func (p Policy) EffectiveCacheTime(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.CacheTime
	}
	if p.MaxCacheTime > 0 && ttl > p.MaxCacheTime {
		ttl = p.MaxCacheTime
	}
	return ttl
}
