package cli

import (
	"github.com/spf13/cobra"

	"github.com/jonwraymond/rpcquery/query"
)

// MutateOptions holds flags for the mutate command.
type MutateOptions struct {
	*RootOptions
	Input string
}

// NewMutateCommand creates the mutate command.
func NewMutateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MutateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mutate <path>",
		Short: "Call a mutation procedure",
		Long: `Call a mutation procedure once. Mutations are never retried.

Example:
  rpcq mutate post.add --input '{"title":"hello"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutate(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.Input, "input", "", "procedure input as JSON")
	return cmd
}

func runMutate(cmd *cobra.Command, opts *MutateOptions, path string) error {
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
	m := query.UseMutation(s.facade, path, query.MutationOptions[any, any]{})
	data, err := m.Mutate(ctx, input)
	if err != nil {
		_ = out.Error(err)
		return callError(path, err)
	}
	return out.Success(data)
}
