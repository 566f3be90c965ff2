// Package commands implements the boardctl subcommands.
package commands

import (
	"context"
	"fmt"

	"github.com/nicholasgriffintn/aws-hosted-excalidraw/config"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/internal/app"
	"github.com/spf13/cobra"
)

// RootOptions holds the flags shared by every subcommand.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Table      string
}

// load builds the App from the config file, the environment and the flag
// overrides, in that order.
func (o *RootOptions) load(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}

	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}

	if o.Table != "" {
		cfg.TableName = o.Table
	}

	return app.New(ctx, cfg)
}

// NewRootCommand creates the boardctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "boardctl",
		Short:         "Operate the live whiteboard backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML configuration file (environment variables override it)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Table, "table", "", "DynamoDB table name (overrides TABLE_NAME)")

	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewReapCommand(opts))
	cmd.AddCommand(NewDropCommand(opts))
	cmd.AddCommand(NewDispatchWorkerCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewWatchCommand())

	return cmd
}

func printf(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
