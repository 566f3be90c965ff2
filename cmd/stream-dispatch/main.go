// Command stream-dispatch is the Lambda handler attached to the table's
// stream. It pushes an element update to every session of the changed board.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/internal/app"
)

func main() {
	a, err := app.FromEnv(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "stream-dispatch: %v\n", err)
		os.Exit(1)
	}

	dispatcher, err := a.Dispatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "stream-dispatch: %v\n", err)
		os.Exit(1)
	}

	lambda.Start(dispatcher.HandleLambdaEvent)
}
