package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

// NewDropCommand creates the command emptying the table. It is meant for
// local and test tables.
func NewDropCommand(opts *RootOptions) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Delete every item in the table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return errors.New("refusing to drop all data without --yes")
			}

			a, err := opts.load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Sync()

			if err := a.Store.DropAllData(cmd.Context()); err != nil {
				return err
			}

			printf(cmd, "table %s: emptied\n", a.Store.TableName())

			return nil
		},
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm deleting every item")

	return cmd
}
