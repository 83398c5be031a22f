package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonwraymond/rpcquery/rpc"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cache.StaleTime != time.Minute || cfg.Live.MinPollInterval != 100*time.Millisecond {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Auth.Provider != "none" || cfg.SnapshotCompression != "none" {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, "rpcq.yaml", `
endpoint: http://file.example/trpc
cache:
  stale_time: 10s
  retry_attempts: 2
live:
  stall_backoff: 3s
auth:
  provider: api_key
  options:
    key: from-file
`)
	t.Setenv("RPCQ_CACHE_STALE_TIME", "20s")
	t.Setenv("RPCQ_ENDPOINT", "http://env.example/trpc")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"env beats file", cfg.Endpoint, "http://env.example/trpc"},
		{"env beats file duration", cfg.Cache.StaleTime, 20 * time.Second},
		{"file beats default", cfg.Cache.RetryAttempts, 2},
		{"file nested", cfg.Live.StallBackoff, 3 * time.Second},
		{"default kept", cfg.Cache.CacheTime, 5 * time.Minute},
		{"file map", cfg.Auth.Options["key"], "from-file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoad_EnvMap(t *testing.T) {
	t.Setenv("RPCQ_AUTH_PROVIDER", "jwt")
	t.Setenv("RPCQ_AUTH_OPTIONS", "secret=secretref:env:JWT_SECRET,issuer=rpcq")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Auth.Provider != "jwt" || cfg.Auth.Options["secret"] != "secretref:env:JWT_SECRET" || cfg.Auth.Options["issuer"] != "rpcq" {
		t.Errorf("Auth = %+v", cfg.Auth)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		wantErr error
	}{
		{"bad yaml", "cache: [", nil, ErrInvalidFile},
		{"bad compression", "snapshot_compression: gzip", nil, ErrInvalidConfig},
		{"negative duration", "live:\n  min_poll_interval: -1s", nil, ErrInvalidConfig},
		{"bad log level", "observe:\n  log_level: chatty", nil, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeFile(t, "c.yaml", tt.content))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing file) succeeded")
	}
}

func TestConfig_StorePolicy(t *testing.T) {
	cfg := Default()
	cfg.Cache.RetryAttempts = 4
	cfg.Cache.MaxConcurrentFetches = 8

	p := cfg.StorePolicy()
	if p.Retry.MaxAttempts != 4 || p.MaxConcurrentFetches != 8 || p.StaleTime != time.Minute {
		t.Errorf("StorePolicy() = %+v", p)
	}
	if p.Retry.RetryIf == nil {
		t.Fatal("RetryIf not set")
	}
	if p.Retry.RetryIf(rpc.NewClientError("x", rpc.CodeBadRequest, "bad")) {
		t.Error("BAD_REQUEST is retried")
	}
	if !p.Retry.RetryIf(rpc.NewClientError("x", rpc.CodeTimeout, "slow")) {
		t.Error("TIMEOUT is not retried")
	}
}

func TestConfig_HTTPClient(t *testing.T) {
	cfg := Default()
	if _, err := cfg.HTTPClient(); !errors.Is(err, ErrMissingEndpoint) {
		t.Errorf("HTTPClient() error = %v, want ErrMissingEndpoint", err)
	}

	cfg.Endpoint = "http://localhost:1/trpc"
	cfg.Breaker.Enabled = true
	cfg.Auth = AuthConfig{Provider: "bearer", Options: map[string]string{"token": "t"}}
	if _, err := cfg.HTTPClient(); err != nil {
		t.Errorf("HTTPClient() error = %v", err)
	}

	cfg.Auth.Provider = "kerberos"
	if _, err := cfg.HTTPClient(); err == nil {
		t.Error("HTTPClient() accepted an unknown auth provider")
	}
}

func TestConfig_SnapshotTransformer(t *testing.T) {
	cfg := Default()
	cfg.SnapshotCompression = "zstd"
	tr, err := cfg.SnapshotTransformer()
	if err != nil {
		t.Fatal(err)
	}
	raw, err := tr.Serialize(map[string]int{"a": 1})
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]int
	if err := tr.Deserialize(raw, &out); err != nil || out["a"] != 1 {
		t.Errorf("round trip = %v, %v", out, err)
	}
}

func TestConfig_Resolve(t *testing.T) {
	t.Setenv("RPCQ_TEST_HOST", "api.example")
	t.Setenv("RPCQ_TEST_KEY", "sk_live")

	cfg := Default()
	cfg.Endpoint = "https://${RPCQ_TEST_HOST}/trpc"
	cfg.Auth.Options = map[string]string{"key": "secretref:env:RPCQ_TEST_KEY"}

	resolved, err := cfg.Resolve(context.Background(), DefaultResolver())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved.Endpoint != "https://api.example/trpc" || resolved.Auth.Options["key"] != "sk_live" {
		t.Errorf("Resolve() = %+v", resolved)
	}
	if cfg.Auth.Options["key"] != "secretref:env:RPCQ_TEST_KEY" {
		t.Error("Resolve() mutated the receiver's options")
	}
}
