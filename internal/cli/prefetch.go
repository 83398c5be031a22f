package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/rpcquery/cache"
	"github.com/jonwraymond/rpcquery/config"
	"github.com/jonwraymond/rpcquery/query"
)

// PrefetchOptions holds flags for the prefetch command.
type PrefetchOptions struct {
	*RootOptions
	Queries []string
	Out     string
	Zstd    bool
}

// PrefetchSummary is printed when the snapshot goes to a file.
type PrefetchSummary struct {
	Entries int    `json:"entries"`
	Bytes   int    `json:"bytes"`
	Out     string `json:"out"`
}

// NewPrefetchCommand creates the prefetch command.
func NewPrefetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PrefetchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prefetch [path...]",
		Short: "Prefetch queries and write a dehydrated snapshot",
		Long: `Prefetch queries into an empty cache and write the dehydrated cache.
Positional paths are called without input; --query path=JSON supplies one.
Failed queries are kept out of the snapshot.

Example:
  rpcq prefetch post.list --query 'post.byId={"id":1}' --zstd --out state.bin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrefetch(cmd, opts, args)
		},
	}
	cmd.Flags().StringArrayVar(&opts.Queries, "query", nil, "query to prefetch as path=JSON (repeatable)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "snapshot file (default stdout)")
	cmd.Flags().BoolVar(&opts.Zstd, "zstd", false, "zstd-compress the snapshot")
	return cmd
}

type prefetchTarget struct {
	path  string
	input any
}

func parseTargets(paths, queries []string) ([]prefetchTarget, error) {
	targets := make([]prefetchTarget, 0, len(paths)+len(queries))
	for _, p := range paths {
		targets = append(targets, prefetchTarget{path: p})
	}
	for _, q := range queries {
		path, raw, _ := strings.Cut(q, "=")
		if path == "" {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid --query %q", q), nil)
		}
		input, err := parseInput(raw)
		if err != nil {
			return nil, err
		}
		targets = append(targets, prefetchTarget{path: path, input: input})
	}
	if len(targets) == 0 {
		return nil, WrapExitError(ExitCommandError, "nothing to prefetch", nil)
	}
	return targets, nil
}

func runPrefetch(cmd *cobra.Command, opts *PrefetchOptions, args []string) error {
	targets, err := parseTargets(args, opts.Queries)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := openSession(ctx, opts.RootOptions, func(c *config.Config) {
		if opts.Zstd {
			c.SnapshotCompression = "zstd"
		}
	})
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	for _, t := range targets {
		if err := query.PrefetchQuery[any, any](ctx, s.facade, t.path, t.input); err != nil {
			return WrapExitError(ExitFailure, "prefetch "+t.path, err)
		}
	}

	snapshot, err := s.facade.Dehydrate(cache.DehydrateOptions{})
	if err != nil {
		return WrapExitError(ExitCommandError, "dehydrate", err)
	}

	if opts.Out == "" {
		_, err := cmd.OutOrStdout().Write(snapshot)
		return err
	}
	if err := os.WriteFile(opts.Out, snapshot, 0o600); err != nil {
		return WrapExitError(ExitCommandError, "write snapshot", err)
	}
	st, err := s.facade.UseDehydratedState(snapshot)
	if err != nil {
		return WrapExitError(ExitCommandError, "decode snapshot", err)
	}
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(PrefetchSummary{Entries: len(st.Queries), Bytes: len(snapshot), Out: opts.Out})
}
