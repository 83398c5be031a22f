package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jonwraymond/rpcquery/cache"
	"github.com/jonwraymond/rpcquery/config"
	"github.com/jonwraymond/rpcquery/observe"
	"github.com/jonwraymond/rpcquery/query"
	"github.com/jonwraymond/rpcquery/rpc"
)

// session is the client stack one command runs against.
type session struct {
	cfg       config.Config
	obs       observe.Observer
	store     *cache.Store
	facade    *query.Facade
	snapshots rpc.Transformer
}

// openSession loads configuration and builds the facade. A nil tweak is
// allowed; otherwise it may adjust the configuration before anything is
// built.
func openSession(ctx context.Context, opts *RootOptions, tweak func(*config.Config)) (*session, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = opts.Endpoint
	}
	if opts.Verbose {
		cfg.Observe.LogLevel = "debug"
	}
	if tweak != nil {
		tweak(&cfg)
	}
	if cfg, err = cfg.Resolve(ctx, config.DefaultResolver()); err != nil {
		return nil, WrapExitError(ExitCommandError, "resolve config", err)
	}

	client, err := cfg.HTTPClient()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "build client", err)
	}
	snapshots, err := cfg.SnapshotTransformer()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "build snapshot transformer", err)
	}

	obs, err := observe.NewObserver(ctx, cfg.ObserveConfig())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "start telemetry", err)
	}
	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, WrapExitError(ExitCommandError, "start telemetry", err)
	}

	store := cache.NewStore(cfg.StorePolicy(),
		cache.WithLogger(obs.Logger()),
		cache.WithMetrics(mw.Metrics()),
	)
	facade, err := query.New(client, store,
		query.WithMiddleware(mw),
		query.WithLogger(obs.Logger()),
		query.WithSnapshotTransformer(snapshots),
	)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, WrapExitError(ExitCommandError, "build facade", err)
	}

	return &session{cfg: cfg, obs: obs, store: store, facade: facade, snapshots: snapshots}, nil
}

// Close flushes telemetry and releases the snapshot encoder.
func (s *session) Close(ctx context.Context) error {
	var errs []error
	if c, ok := s.snapshots.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, s.obs.Shutdown(ctx))
	return errors.Join(errs...)
}

// parseInput decodes a JSON input flag. An empty string is a nil input.
func parseInput(raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --input JSON", err)
	}
	return v, nil
}

// callError turns a failed procedure call into an exit error carrying the
// procedure's error code.
func callError(path string, err error) error {
	if ce, ok := rpc.AsClientError(err); ok {
		return WrapExitError(ExitFailure, fmt.Sprintf("%s failed [%s]", path, ce.Code), err)
	}
	return WrapExitError(ExitFailure, path+" failed", err)
}
