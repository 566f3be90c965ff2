// Command boardctl operates the whiteboard backend outside Lambda: it checks
// the table schema, reaps sessions, runs the queue-fed dispatch worker,
// serves the REST API and watches a board's websocket pushes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nicholasgriffintn/aws-hosted-excalidraw/cmd/boardctl/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "boardctl: %v\n", err)
		stop()
		os.Exit(1)
	}
}
