// Command ws-connect registers a websocket connection against a board.
// It is the Lambda handler of the websocket API's $connect route.
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
		fmt.Fprintf(os.Stderr, "ws-connect: %v\n", err)
		os.Exit(1)
	}

	handler, err := a.Websocket()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ws-connect: %v\n", err)
		os.Exit(1)
	}

	lambda.Start(handler.Connect)
}
