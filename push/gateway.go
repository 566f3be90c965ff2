// Package push delivers payloads to websocket connections through the API
// Gateway management API.
package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
)

// ErrGone is returned by [Gateway.Send] when the connection no longer exists.
// It is the only failure that justifies removing the connection's session.
var ErrGone = errors.New("connection gone")

// Gateway sends one payload to one connection.
type Gateway interface {
	Send(ctx context.Context, connectionID string, data []byte) error
}

// API is the subset of the API Gateway management client used by [Client].
type API interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

var _ API = (*apigatewaymanagementapi.Client)(nil)

// Client is a [Gateway] backed by PostToConnection on a websocket API stage.
type Client struct {
	api      API
	endpoint string
	awsCfg   *aws.Config
	opts     *Options
}

var _ Gateway = (*Client)(nil)

// New creates a Client for the management endpoint of a websocket API stage,
// e.g. https://abc123.execute-api.eu-west-1.amazonaws.com/prod.
// Call [Client.Connect] before sending.
func New(awsCfg *aws.Config, endpoint string, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		awsCfg:   awsCfg,
		endpoint: endpoint,
		opts:     options,
	}
}

// Connect validates the options and creates the management API client.
func (c *Client) Connect() error {
	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("invalid push options: %w", err)
	}

	if c.opts.api != nil {
		c.api = c.opts.api
		return nil
	}

	if c.endpoint == "" {
		return errors.New("websocket API endpoint cannot be empty")
	}

	if c.awsCfg == nil {
		return errors.New("AWS config cannot be nil")
	}

	c.api = apigatewaymanagementapi.NewFromConfig(*c.awsCfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(c.endpoint)
		o.Retryer = retry.AddWithMaxBackoffDelay(o.Retryer, c.opts.apiMaxRetryBackoffDelay)
		o.Retryer = retry.AddWithMaxAttempts(o.Retryer, c.opts.apiMaxRetryAttempts)
	})

	return nil
}

// Endpoint returns the management endpoint supplied to [New].
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Send posts data to the connection. A connection that has gone away is
// reported as an error wrapping [ErrGone].
func (c *Client) Send(ctx context.Context, connectionID string, data []byte) error {
	if c.api == nil {
		return errors.New("push client not connected")
	}

	if connectionID == "" {
		return errors.New("connection ID cannot be empty")
	}

	input := &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         data,
	}

	if _, err := c.api.PostToConnection(ctx, input); err != nil {
		var gone *apigwtypes.GoneException
		if errors.As(err, &gone) {
			return fmt.Errorf("connection %s: %w", connectionID, ErrGone)
		}
		return fmt.Errorf("failed to post to connection %s: %w", connectionID, err)
	}

	return nil
}
