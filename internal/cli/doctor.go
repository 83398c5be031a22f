package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/rpcquery/health"
	"github.com/jonwraymond/rpcquery/rpc"
)

// DoctorOptions holds flags for the doctor command.
type DoctorOptions struct {
	*RootOptions
	Probe   string
	Timeout time.Duration
}

// DoctorReport is the doctor command's output.
type DoctorReport struct {
	Status health.Status            `json:"status"`
	Checks map[string]health.Result `json:"checks"`
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DoctorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the configured endpoint is usable",
		Long: `Build the client stack from configuration and run health checks: a
probe query (--probe), the transport circuit breaker and the cache.
Exits non-zero when any check is unhealthy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Probe, "probe", "", "query procedure to call as a probe")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "deadline for all checks")
	return cmd
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, opts.RootOptions, nil)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	agg := health.NewAggregator(opts.Timeout)
	if opts.Probe != "" {
		agg.Register("endpoint", health.NewProcedureChecker(s.facade.Client(), opts.Probe))
	}
	if hc, ok := s.facade.Client().(*rpc.HTTPClient); ok {
		agg.Register("breaker", health.NewBreakerChecker(hc.Breaker()))
	}
	agg.Register("cache", health.NewCacheChecker(s.store, 0))

	results := agg.CheckAll(ctx)
	overall := health.OverallStatus(results)

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		if err := out.Success(DoctorReport{Status: overall, Checks: results}); err != nil {
			return err
		}
	} else {
		for _, name := range agg.CheckerNames() {
			r := results[name]
			fmt.Fprintf(cmd.OutOrStdout(), "%-9s %-9s %s\n", name, r.Status, r.Message)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "overall   %s\n", overall)
	}

	if overall == health.StatusUnhealthy {
		var failed []string
		for name, r := range results {
			if r.Status == health.StatusUnhealthy {
				failed = append(failed, name)
			}
		}
		slices.Sort(failed)
		return WrapExitError(ExitFailure, fmt.Sprintf("unhealthy: %v", failed), nil)
	}
	return nil
}
