package config

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/rpcquery/auth"
	"github.com/jonwraymond/rpcquery/cache"
	"github.com/jonwraymond/rpcquery/observe"
	"github.com/jonwraymond/rpcquery/resilience"
	"github.com/jonwraymond/rpcquery/rpc"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "RPCQ_"

// Config is the client configuration.
//
// Sources are applied in order: Default, the YAML file, then environment
// variables. A later source overrides only the fields it sets.
type Config struct {
	Endpoint       string        `yaml:"endpoint" env:"ENDPOINT"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`

	// SnapshotCompression is "none" or "zstd".
	SnapshotCompression string `yaml:"snapshot_compression" env:"SNAPSHOT_COMPRESSION"`

	Cache   CacheConfig   `yaml:"cache" envPrefix:"CACHE_"`
	Live    LiveConfig    `yaml:"live" envPrefix:"LIVE_"`
	Breaker BreakerConfig `yaml:"breaker" envPrefix:"BREAKER_"`
	Auth    AuthConfig    `yaml:"auth" envPrefix:"AUTH_"`
	Observe ObserveConfig `yaml:"observe" envPrefix:"OBSERVE_"`
}

// CacheConfig maps onto cache.Policy.
type CacheConfig struct {
	StaleTime            time.Duration `yaml:"stale_time" env:"STALE_TIME"`
	CacheTime            time.Duration `yaml:"cache_time" env:"CACHE_TIME"`
	RetryAttempts        int           `yaml:"retry_attempts" env:"RETRY_ATTEMPTS"`
	FetchTimeout         time.Duration `yaml:"fetch_timeout" env:"FETCH_TIMEOUT"`
	MaxConcurrentFetches int           `yaml:"max_concurrent_fetches" env:"MAX_CONCURRENT_FETCHES"`
	GCInterval           time.Duration `yaml:"gc_interval" env:"GC_INTERVAL"`
}

// LiveConfig paces live query polling.
type LiveConfig struct {
	MinPollInterval time.Duration `yaml:"min_poll_interval" env:"MIN_POLL_INTERVAL"`
	StallBackoff    time.Duration `yaml:"stall_backoff" env:"STALL_BACKOFF"`
}

// BreakerConfig guards the HTTP transport.
type BreakerConfig struct {
	Enabled      bool          `yaml:"enabled" env:"ENABLED"`
	MaxFailures  int           `yaml:"max_failures" env:"MAX_FAILURES"`
	ResetTimeout time.Duration `yaml:"reset_timeout" env:"RESET_TIMEOUT"`
}

// AuthConfig selects a credential provider from auth.DefaultRegistry.
// Option values may be secret references.
type AuthConfig struct {
	Provider string            `yaml:"provider" env:"PROVIDER"`
	Options  map[string]string `yaml:"options" env:"OPTIONS" envKeyValSeparator:"="`
}

// ObserveConfig maps onto observe.Config.
type ObserveConfig struct {
	ServiceName     string  `yaml:"service_name" env:"SERVICE_NAME"`
	TracingExporter string  `yaml:"tracing_exporter" env:"TRACING_EXPORTER"`
	SamplePct       float64 `yaml:"sample_pct" env:"SAMPLE_PCT"`
	MetricsExporter string  `yaml:"metrics_exporter" env:"METRICS_EXPORTER"`
	LogLevel        string  `yaml:"log_level" env:"LOG_LEVEL"`
}

// Default returns the built-in configuration.
func Default() Config {
	p := cache.DefaultPolicy()
	return Config{
		RequestTimeout:      30 * time.Second,
		SnapshotCompression: "none",
		Cache: CacheConfig{
			StaleTime:     p.StaleTime,
			CacheTime:     p.CacheTime,
			RetryAttempts: p.Retry.MaxAttempts,
			GCInterval:    time.Minute,
		},
		Live: LiveConfig{
			MinPollInterval: 100 * time.Millisecond,
			StallBackoff:    time.Second,
		},
		Breaker: BreakerConfig{
			MaxFailures:  5,
			ResetTimeout: 30 * time.Second,
		},
		Auth: AuthConfig{Provider: "none"},
		Observe: ObserveConfig{
			ServiceName:     "rpcq",
			TracingExporter: "none",
			SamplePct:       1.0,
			MetricsExporter: "none",
			LogLevel:        "info",
		},
	}
}

// Load reads path (optional) and the environment on top of Default, then
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidFile, path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges and enumerations.
func (c Config) Validate() error {
	if c.RequestTimeout < 0 || c.Cache.StaleTime < 0 || c.Cache.CacheTime < 0 ||
		c.Cache.FetchTimeout < 0 || c.Cache.GCInterval < 0 ||
		c.Live.MinPollInterval < 0 || c.Live.StallBackoff < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	if c.Cache.RetryAttempts < 0 || c.Cache.MaxConcurrentFetches < 0 {
		return fmt.Errorf("%w: counts must not be negative", ErrInvalidConfig)
	}
	if !slices.Contains([]string{"none", "zstd"}, c.SnapshotCompression) {
		return fmt.Errorf("%w: snapshot_compression %q", ErrInvalidConfig, c.SnapshotCompression)
	}
	oc := c.ObserveConfig()
	if err := oc.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Resolve returns a copy of c with secret references in the endpoint and
// auth options replaced by their values.
func (c Config) Resolve(ctx context.Context, r *Resolver) (Config, error) {
	endpoint, err := r.ResolveValue(ctx, c.Endpoint)
	if err != nil {
		return Config{}, fmt.Errorf("config: endpoint: %w", err)
	}
	opts, err := r.ResolveMap(ctx, c.Auth.Options)
	if err != nil {
		return Config{}, fmt.Errorf("config: auth options: %w", err)
	}
	c.Endpoint = endpoint
	c.Auth.Options = opts
	return c, nil
}

// StorePolicy returns the cache policy. Only failures a repeat can fix are
// retried.
func (c Config) StorePolicy() cache.Policy {
	p := cache.DefaultPolicy()
	p.StaleTime = c.Cache.StaleTime
	p.CacheTime = c.Cache.CacheTime
	if c.Cache.RetryAttempts > 0 {
		p.Retry.MaxAttempts = c.Cache.RetryAttempts
	}
	p.Retry.RetryIf = rpc.IsRetryable
	p.FetchTimeout = c.Cache.FetchTimeout
	p.MaxConcurrentFetches = c.Cache.MaxConcurrentFetches
	return p
}

// ObserveConfig returns the telemetry configuration.
func (c Config) ObserveConfig() observe.Config {
	return observe.Config{
		ServiceName: c.Observe.ServiceName,
		Tracing: observe.TracingConfig{
			Enabled:   c.Observe.TracingExporter != "none",
			Exporter:  c.Observe.TracingExporter,
			SamplePct: c.Observe.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Observe.MetricsExporter != "none",
			Exporter: c.Observe.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.Observe.LogLevel,
		},
	}
}

// HeaderProvider builds the configured credential provider, or nil when
// auth is disabled.
func (c Config) HeaderProvider() (auth.Provider, error) {
	p, err := auth.DefaultRegistry.Create(c.Auth.Provider, c.Auth.Options)
	if err != nil {
		return nil, fmt.Errorf("config: auth: %w", err)
	}
	return p, nil
}

// SnapshotTransformer returns the transformer used for dehydrated snapshots.
func (c Config) SnapshotTransformer() (rpc.Transformer, error) {
	if c.SnapshotCompression == "zstd" {
		z, err := rpc.NewZstdTransformer(rpc.JSONTransformer{})
		if err != nil {
			return nil, err
		}
		return z, nil
	}
	return rpc.JSONTransformer{}, nil
}

// HTTPClient builds the network client for Endpoint.
func (c Config) HTTPClient() (*rpc.HTTPClient, error) {
	if c.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	headers, err := c.HeaderProvider()
	if err != nil {
		return nil, err
	}

	hc := rpc.HTTPClientConfig{
		BaseURL:    c.Endpoint,
		HTTPClient: &http.Client{Timeout: c.RequestTimeout},
	}
	if headers != nil {
		hc.Headers = headers
	}
	if c.Breaker.Enabled {
		hc.Breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			MaxFailures:  c.Breaker.MaxFailures,
			ResetTimeout: c.Breaker.ResetTimeout,
			IsFailure:    rpc.IsRetryable,
		})
	}
	return rpc.NewHTTPClient(hc)
}
