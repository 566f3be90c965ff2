// Command session-reaper is the scheduled Lambda handler that deletes
// expired sessions.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/internal/app"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/reaper"
)

func main() {
	a, err := app.FromEnv(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "session-reaper: %v\n", err)
		os.Exit(1)
	}

	r := a.Reaper()

	lambda.Start(func(ctx context.Context) (reaper.Result, error) {
		defer a.Sync()
		return r.Sweep(ctx)
	})
}
