package commands

import (
	"context"
	"errors"

	"github.com/nicholasgriffintn/aws-hosted-excalidraw/dispatch"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/sqs"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewDispatchWorkerCommand creates the command dispatching stream records
// read from the change queue.
func NewDispatchWorkerCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch-worker",
		Short: "Push element updates for stream records read from the change queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Sync()

			dispatcher, err := a.Dispatcher()
			if err != nil {
				return err
			}

			consumer, err := a.Consumer(cmd.Context())
			if err != nil {
				return err
			}

			worker := dispatch.NewWorker(dispatcher, a.Logger)
			items := make(chan *sqs.Item)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return consumer.Receive(ctx, items) })
			g.Go(func() error { return worker.Run(ctx, items) })

			a.Logger.WithField("queue_name", consumer.Name()).Info("Dispatch worker started")

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			return nil
		},
	}
}
