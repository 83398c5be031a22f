package cli

import (
	"context"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/rpcquery/config"
	"github.com/jonwraymond/rpcquery/query"
)

// LiveOptions holds flags for the live command.
type LiveOptions struct {
	*RootOptions
	Input    string
	Count    int
	Duration time.Duration
}

// NewLiveCommand creates the live command.
func NewLiveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "live <path>",
		Short: "Follow a cursor-driven subscription",
		Long: `Poll a subscription procedure that returns {cursor, data} batches and
print the latest data after every non-empty batch. An empty batch pauses
polling. The command exits after --count updates, after --duration, or on
interrupt.

Example:
  rpcq live chat.messages --input '{"room":"general"}' --count 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.Input, "input", "", "procedure input as a JSON object")
	cmd.Flags().IntVar(&opts.Count, "count", 0, "stop after this many updates (0 = unlimited)")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "stop after this long (0 = until interrupted)")
	return cmd
}

func runLive(cmd *cobra.Command, opts *LiveOptions, path string) error {
	input, err := parseInput(opts.Input)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if opts.Duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	s, err := openSession(ctx, opts.RootOptions, nil)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())
	if s.cfg.Cache.GCInterval > 0 {
		s.store.StartGC(ctx, s.cfg.Cache.GCInterval)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	var (
		mu      sync.Mutex
		updates int
		lastErr error
	)
	lq, err := query.UseLiveQuery(ctx, s.facade, path, input, query.LiveQueryOptions[any]{
		MinPollInterval: s.cfg.Live.MinPollInterval,
		StallBackoff:    stallBackoff(s.cfg),
		OnSuccess: func(data any) {
			mu.Lock()
			defer mu.Unlock()
			if ctx.Err() != nil {
				return
			}
			_ = out.Success(data)
			updates++
			if opts.Count > 0 && updates >= opts.Count {
				cancel()
			}
		},
		OnError: func(err error) {
			mu.Lock()
			lastErr = err
			mu.Unlock()
			cancel()
		},
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "start live query", err)
	}
	defer lq.Close()

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	if lastErr != nil {
		_ = out.Error(lastErr)
		return callError(path, lastErr)
	}
	return nil
}

// stallBackoff maps a configured zero to "no backoff"; the live query
// treats zero as its default.
func stallBackoff(cfg config.Config) time.Duration {
	if cfg.Live.StallBackoff == 0 {
		return -1
	}
	return cfg.Live.StallBackoff
}
