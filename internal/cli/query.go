package cli

import (
	"github.com/spf13/cobra"

	"github.com/jonwraymond/rpcquery/query"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Input string
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <path>",
		Short: "Call a query procedure",
		Long: `Call a query procedure through the cache and print its output.

Example:
  rpcq query post.byId --input '{"id":1}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.Input, "input", "", "procedure input as JSON")
	return cmd
}

func runQuery(cmd *cobra.Command, opts *QueryOptions, path string) error {
	input, err := parseInput(opts.Input)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := openSession(ctx, opts.RootOptions, nil)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	data, err := query.Fetch[any, any](ctx, s.facade, path, input)
	if err != nil {
		_ = out.Error(err)
		return callError(path, err)
	}
	return out.Success(data)
}
