// Package app wires configuration, logging and AWS clients into the
// components each binary runs.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/config"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/dispatch"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/dynamodb"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/fanout"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/logging"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/push"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/reaper"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/relay"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/sqs"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/wsapi"
)

// ConfigPathEnv names the environment variable holding an optional YAML
// configuration file path.
const ConfigPathEnv = "BOARDS_CONFIG"

// App holds the process-wide dependencies. Build it once per process.
type App struct {
	Config *config.Config
	Logger *logging.Logger
	AWS    aws.Config
	Store  *dynamodb.Client
}

// FromEnv loads the configuration from the file named by BOARDS_CONFIG, if
// any, and the environment, then builds the App.
func FromEnv(ctx context.Context) (*App, error) {
	cfg, err := config.Load(os.Getenv(ConfigPathEnv))
	if err != nil {
		return nil, err
	}

	return New(ctx, cfg)
}

// New validates cfg and builds the logger, AWS config and store.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	store := dynamodb.New(&awsCfg, cfg.TableName,
		dynamodb.WithSessionTimeToLive(cfg.SessionTTL),
		dynamodb.WithEndpoint(cfg.DynamoDBEndpoint),
	)

	if err := store.Connect(); err != nil {
		return nil, err
	}

	return &App{
		Config: cfg,
		Logger: logger,
		AWS:    awsCfg,
		Store:  store,
	}, nil
}

// Fanout builds the push fan-out. It requires the websocket API endpoint.
func (a *App) Fanout() (*fanout.Fanout, error) {
	if err := a.Config.RequirePush(); err != nil {
		return nil, err
	}

	gateway := push.New(&a.AWS, a.Config.WebsocketAPIEndpoint)
	if err := gateway.Connect(); err != nil {
		return nil, err
	}

	return fanout.New(gateway, a.Store, a.Logger, fanout.WithConcurrency(a.Config.PushConcurrency)), nil
}

func (a *App) Dispatcher() (*dispatch.Dispatcher, error) {
	f, err := a.Fanout()
	if err != nil {
		return nil, err
	}

	return dispatch.New(a.Store, f, a.Logger), nil
}

func (a *App) Relay() (*relay.Relay, error) {
	f, err := a.Fanout()
	if err != nil {
		return nil, err
	}

	return relay.New(a.Store, f, a.Logger), nil
}

// Websocket builds the websocket route handler. Without a websocket API
// endpoint it can register and remove sessions but not relay messages.
func (a *App) Websocket() (*wsapi.Handler, error) {
	if a.Config.WebsocketAPIEndpoint == "" {
		return wsapi.New(a.Store, nil, a.Logger), nil
	}

	r, err := a.Relay()
	if err != nil {
		return nil, err
	}

	return wsapi.New(a.Store, r, a.Logger), nil
}

func (a *App) Reaper() *reaper.Reaper {
	return reaper.New(a.Store, a.Logger, reaper.WithInterval(a.Config.ReaperInterval))
}

// Consumer builds and initializes the change queue consumer. Its lease
// keeper runs until ctx ends.
func (a *App) Consumer(ctx context.Context) (*sqs.Consumer, error) {
	if err := a.Config.RequireQueue(); err != nil {
		return nil, err
	}

	return sqs.NewConsumer(&a.AWS, a.Config.ChangeQueueName, a.Logger).Init(ctx)
}

// Sync flushes buffered log entries.
func (a *App) Sync() {
	_ = a.Logger.Sync()
}
