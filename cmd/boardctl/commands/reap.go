package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

// NewReapCommand creates the command deleting expired sessions.
func NewReapCommand(opts *RootOptions) *cobra.Command {
	var loop bool

	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Delete expired sessions once, or periodically with --loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Sync()

			r := a.Reaper()

			if loop {
				err := r.Run(cmd.Context())
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}

			result, err := r.Sweep(cmd.Context())
			if err != nil {
				return err
			}

			printf(cmd, "scanned %d, deleted %d, failed %d\n", result.Scanned, result.Deleted, result.Failed)

			return nil
		},
	}

	cmd.Flags().BoolVar(&loop, "loop", false, "keep sweeping every REAPER_INTERVAL until interrupted")

	return cmd
}
