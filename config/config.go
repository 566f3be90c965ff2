// Package config loads process configuration for the whiteboard binaries: an
// optional YAML file, overridden by environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration shared by the Lambda handlers and
// boardctl.
type Config struct {
	TableName            string        `yaml:"table_name"`
	Region               string        `yaml:"region"`
	DynamoDBEndpoint     string        `yaml:"dynamodb_endpoint,omitempty"`
	WebsocketAPIEndpoint string        `yaml:"websocket_api_endpoint"`
	ChangeQueueName      string        `yaml:"change_queue_name,omitempty"`
	SessionTTL           time.Duration `yaml:"session_ttl"`
	ReaperInterval       time.Duration `yaml:"reaper_interval"`
	PushConcurrency      int           `yaml:"push_concurrency"`
	HTTPAddr             string        `yaml:"http_addr"`
	Log                  LogConfig     `yaml:"log"`
}

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when neither a file nor the
// environment sets a value.
func Default() *Config {
	return &Config{
		SessionTTL:      time.Hour,
		ReaperInterval:  6 * time.Hour,
		PushConcurrency: 16,
		HTTPAddr:        ":8080",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from the defaults, the YAML file at path
// (skipped when path is empty) and finally the environment.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	texts := map[string]*string{
		"TABLE_NAME":             &c.TableName,
		"AWS_REGION":             &c.Region,
		"DYNAMODB_ENDPOINT":      &c.DynamoDBEndpoint,
		"WEBSOCKET_API_ENDPOINT": &c.WebsocketAPIEndpoint,
		"CHANGE_QUEUE_NAME":      &c.ChangeQueueName,
		"HTTP_ADDR":              &c.HTTPAddr,
		"LOG_LEVEL":              &c.Log.Level,
		"LOG_FORMAT":             &c.Log.Format,
	}

	for name, target := range texts {
		if v, ok := lookup(name); ok && v != "" {
			*target = v
		}
	}

	durations := map[string]*time.Duration{
		"SESSION_TTL":     &c.SessionTTL,
		"REAPER_INTERVAL": &c.ReaperInterval,
	}

	for name, target := range durations {
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}

		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}

		*target = d
	}

	return nil
}

// Validate checks the settings every binary needs. Endpoint and queue
// requirements depend on the binary and are checked with [Config.RequirePush]
// and [Config.RequireQueue].
func (c *Config) Validate() error {
	if c.TableName == "" {
		return errors.New("table name is required (TABLE_NAME)")
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive, got %s", c.SessionTTL)
	}

	if c.ReaperInterval <= 0 {
		return fmt.Errorf("reaper interval must be positive, got %s", c.ReaperInterval)
	}

	if c.PushConcurrency < 1 || c.PushConcurrency > 256 {
		return fmt.Errorf("push concurrency must be between 1 and 256, got %d", c.PushConcurrency)
	}

	return nil
}

// RequirePush checks that the websocket management endpoint is set.
func (c *Config) RequirePush() error {
	if c.WebsocketAPIEndpoint == "" {
		return errors.New("websocket API endpoint is required (WEBSOCKET_API_ENDPOINT)")
	}

	return nil
}

// RequireQueue checks that the change queue name is set.
func (c *Config) RequireQueue() error {
	if c.ChangeQueueName == "" {
		return errors.New("change queue name is required (CHANGE_QUEUE_NAME)")
	}

	return nil
}
