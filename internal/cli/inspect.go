package cli

import (
	"bytes"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/rpcquery/cache"
	"github.com/jonwraymond/rpcquery/config"
)

// zstdMagic starts every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// SnapshotEntry describes one query of a snapshot.
type SnapshotEntry struct {
	Key       cache.Key `json:"key"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
	Infinite  bool      `json:"infinite,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <snapshot>",
		Short: "List the queries in a dehydrated snapshot",
		Long: `Decode a snapshot written by prefetch and list its queries.
Compressed snapshots are detected automatically.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, rootOpts, args[0])
		},
	}
}

func runInspect(cmd *cobra.Command, opts *RootOptions, file string) error {
	snapshot, err := os.ReadFile(file)
	if err != nil {
		return WrapExitError(ExitCommandError, "read snapshot", err)
	}
	ctx := cmd.Context()
	s, err := openSession(ctx, opts, func(c *config.Config) {
		if c.Endpoint == "" {
			// inspect never calls out; the client only needs to exist.
			c.Endpoint = "http://localhost"
		}
		c.SnapshotCompression = "none"
		if bytes.HasPrefix(snapshot, zstdMagic) {
			c.SnapshotCompression = "zstd"
		}
	})
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	st, err := s.facade.UseDehydratedState(snapshot)
	if err != nil {
		return WrapExitError(ExitCommandError, "decode snapshot", err)
	}
	entries := []SnapshotEntry{}
	if st != nil {
		for _, q := range st.Queries {
			entries = append(entries, SnapshotEntry{
				Key:       q.Key,
				Status:    q.State.Status.String(),
				UpdatedAt: time.UnixMilli(q.State.DataUpdatedAt).UTC(),
				Infinite:  q.State.Infinite,
			})
		}
	}
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(entries)
}
