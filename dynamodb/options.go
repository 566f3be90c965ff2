package dynamodb

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the configuration for a [Client]. Use [Option] functions
// (such as [WithSessionTimeToLive] or [WithBatchMaxRetries]) to customise
// the defaults.
type Options struct {
	sessionTimeToLive   time.Duration
	batchMaxRetries     int
	batchInitialBackoff time.Duration
	dynamoDBAPI         API
	endpoint            string
	clock               func() time.Time
	newID               func() string
}

func newOptions() *Options {
	return &Options{
		sessionTimeToLive:   time.Hour,
		batchMaxRetries:     8,
		batchInitialBackoff: 50 * time.Millisecond,
		clock:               time.Now,
		newID:               uuid.NewString,
	}
}

func (o *Options) validate() error {
	if o.sessionTimeToLive <= 0 {
		return errors.New("session time to live must be greater than zero")
	}

	if o.batchMaxRetries < 0 || o.batchMaxRetries > 20 {
		return errors.New("batch max retries must be between 0 and 20")
	}

	if o.batchInitialBackoff <= 0 || o.batchInitialBackoff > maxBackoff {
		return errors.New("batch initial backoff must be greater than zero and at most 2 seconds")
	}

	if o.clock == nil {
		return errors.New("clock cannot be nil")
	}

	if o.newID == nil {
		return errors.New("ID generator cannot be nil")
	}

	return nil
}

// WithSessionTimeToLive sets the lease written into the ttl attribute of new
// session records. The default is one hour. The duration must be greater
// than zero.
func WithSessionTimeToLive(d time.Duration) Option {
	return func(o *Options) {
		o.sessionTimeToLive = d
	}
}

// WithBatchMaxRetries sets how many times unprocessed items of a
// BatchWriteItem call are resubmitted before the write fails with
// [types.ErrTransient]. Must be between 0 and 20. Default: 8.
func WithBatchMaxRetries(n int) Option {
	return func(o *Options) {
		o.batchMaxRetries = n
	}
}

// WithBatchInitialBackoff sets the first wait before resubmitting
// unprocessed items. The wait doubles on every retry up to 2 seconds.
// Default: 50ms.
func WithBatchInitialBackoff(d time.Duration) Option {
	return func(o *Options) {
		o.batchInitialBackoff = d
	}
}

// WithAPI sets a custom [API] implementation. This is useful when a custom
// DynamoDB configuration is required, or for injecting mocks in tests.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.dynamoDBAPI = api
	}
}

// WithClock sets a custom clock function used for timestamps and session
// expiry. Defaults to [time.Now]. This is useful for controlling time in tests.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.clock = clock
	}
}

// WithIDGenerator sets the function generating new board IDs. Defaults to
// random UUIDs.
func WithIDGenerator(newID func() string) Option {
	return func(o *Options) {
		o.newID = newID
	}
}

// WithEndpoint points the client at a custom DynamoDB endpoint, such as
// DynamoDB Local. Ignored when an API is injected with [WithAPI].
func WithEndpoint(endpoint string) Option {
	return func(o *Options) {
		o.endpoint = endpoint
	}
}
