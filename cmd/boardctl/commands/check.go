package commands

import (
	"github.com/spf13/cobra"
)

// NewCheckCommand creates the command validating the table schema.
func NewCheckCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the table's keys, indexes, stream and TTL settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Sync()

			if err := a.Store.Init(cmd.Context(), false); err != nil {
				return err
			}

			printf(cmd, "table %s: OK\n", a.Store.TableName())

			return nil
		},
	}
}
