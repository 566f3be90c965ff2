package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/nicholasgriffintn/aws-hosted-excalidraw/httpapi"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the command serving the REST API.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the boards, elements and teams REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Sync()

			if addr == "" {
				addr = a.Config.HTTPAddr
			}

			srv := httpapi.NewServer(addr, httpapi.NewRouter(a.Store, a.Logger))
			errCh := make(chan error, 1)

			go func() {
				a.Logger.WithField("addr", addr).Info("REST API listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				return err
			}

			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")

	return cmd
}
