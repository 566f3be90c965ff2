package push

import (
	"errors"
	"time"
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the resolved configuration for a [Client].
type Options struct {
	apiMaxRetryAttempts     int
	apiMaxRetryBackoffDelay time.Duration
	api                     API // Optional: injected management API for testing
}

func newOptions() *Options {
	return &Options{
		apiMaxRetryAttempts:     3,
		apiMaxRetryBackoffDelay: 2 * time.Second,
	}
}

func (o *Options) validate() error {
	if o.apiMaxRetryAttempts < 0 || o.apiMaxRetryAttempts > 10 {
		return errors.New("max push API retry attempts must be between 0 and 10")
	}

	if o.apiMaxRetryBackoffDelay < 100*time.Millisecond || o.apiMaxRetryBackoffDelay > 30*time.Second {
		return errors.New("max push API retry backoff delay must be between 100 milliseconds and 30 seconds")
	}

	return nil
}

// WithAPIMaxRetryAttempts sets the maximum number of attempts for a failed
// PostToConnection call. Gone connections are never retried. Default: 3.
func WithAPIMaxRetryAttempts(n int) Option {
	return func(o *Options) {
		o.apiMaxRetryAttempts = n
	}
}

// WithAPIMaxRetryBackoffDelay caps the delay between retry attempts.
// Default: 2 seconds.
func WithAPIMaxRetryBackoffDelay(d time.Duration) Option {
	return func(o *Options) {
		o.apiMaxRetryBackoffDelay = d
	}
}

// WithAPI injects the management API implementation, bypassing the client
// normally created from the AWS config.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.api = api
	}
}
