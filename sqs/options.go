package sqs

import (
	"errors"
	"time"
)

// Option is a functional option for configuring a [Consumer].
type Option func(*Options)

// Options holds the resolved configuration for a [Consumer]. Defaults are
// set by [NewConsumer]; use the With* functions to override them.
type Options struct {
	visibilityTimeoutSeconds int32
	receiveMaxMessages       int32
	receiveWaitTimeSeconds   int32
	apiMaxRetryAttempts      int
	apiMaxRetryBackoffDelay  time.Duration
	maxExtension             time.Duration
	maxOutstandingMessages   int
	maxOutstandingBytes      int
	receiveErrorBackoff      time.Duration
	api                      API // Optional: injected SQS API for testing
}

func newOptions() *Options {
	return &Options{
		visibilityTimeoutSeconds: 30,
		receiveMaxMessages:       10,
		receiveWaitTimeSeconds:   20,
		apiMaxRetryAttempts:      5,
		apiMaxRetryBackoffDelay:  10 * time.Second,
		maxExtension:             10 * time.Minute,
		maxOutstandingMessages:   100,
		maxOutstandingBytes:      1 << 20,
		receiveErrorBackoff:      5 * time.Second,
	}
}

func (o *Options) validate() error {
	if o.visibilityTimeoutSeconds < 10 || o.visibilityTimeoutSeconds > 3600 {
		return errors.New("visibility timeout must be between 10 seconds and 1 hour")
	}

	if o.receiveMaxMessages < 1 || o.receiveMaxMessages > 10 {
		return errors.New("max messages per receive must be between 1 and 10")
	}

	if o.receiveWaitTimeSeconds < 1 || o.receiveWaitTimeSeconds > 20 {
		return errors.New("receive wait time must be between 1 and 20 seconds")
	}

	if o.apiMaxRetryAttempts < 0 || o.apiMaxRetryAttempts > 10 {
		return errors.New("max SQS API retry attempts must be between 0 and 10")
	}

	if o.apiMaxRetryBackoffDelay < time.Second || o.apiMaxRetryBackoffDelay > 30*time.Second {
		return errors.New("max SQS API retry backoff delay must be between 1 and 30 seconds")
	}

	if o.maxExtension < time.Minute || o.maxExtension > 12*time.Hour {
		return errors.New("max visibility extension must be between 1 minute and 12 hours")
	}

	if o.maxOutstandingMessages < 1 {
		return errors.New("max outstanding messages must be at least 1")
	}

	if o.maxOutstandingBytes < 10*1024 {
		return errors.New("max outstanding bytes must be at least 10 KB")
	}

	if o.receiveErrorBackoff <= 0 {
		return errors.New("receive error backoff must be positive")
	}

	return nil
}

// WithVisibilityTimeout sets the visibility timeout of received messages,
// in seconds. In-flight messages are extended in the background before the
// timeout elapses. Must be between 10 and 3600. Default: 30.
func WithVisibilityTimeout(seconds int32) Option {
	return func(o *Options) {
		o.visibilityTimeoutSeconds = seconds
	}
}

// WithReceiveMaxMessages sets the batch size of a single ReceiveMessage call.
// Must be between 1 and 10. Default: 10.
func WithReceiveMaxMessages(n int32) Option {
	return func(o *Options) {
		o.receiveMaxMessages = n
	}
}

// WithReceiveWaitTime sets the long-poll duration of ReceiveMessage, in
// seconds. Must be between 1 and 20. Default: 20.
func WithReceiveWaitTime(seconds int32) Option {
	return func(o *Options) {
		o.receiveWaitTimeSeconds = seconds
	}
}

// WithAPIMaxRetryAttempts sets the SDK retry attempts of failed SQS calls.
// Must be between 0 and 10. Default: 5.
func WithAPIMaxRetryAttempts(n int) Option {
	return func(o *Options) {
		o.apiMaxRetryAttempts = n
	}
}

// WithAPIMaxRetryBackoffDelay caps the SDK backoff between retries.
// Must be between 1 and 30 seconds. Default: 10 seconds.
func WithAPIMaxRetryBackoffDelay(d time.Duration) Option {
	return func(o *Options) {
		o.apiMaxRetryBackoffDelay = d
	}
}

// WithMaxExtension sets how long after receipt a message may keep being
// extended. Past that it becomes visible again once its timeout expires.
// Must be between 1 minute and 12 hours. Default: 10 minutes.
func WithMaxExtension(d time.Duration) Option {
	return func(o *Options) {
		o.maxExtension = d
	}
}

// WithMaxOutstandingMessages sets how many unacknowledged messages may be in
// flight before [Consumer.Receive] pauses. Default: 100.
func WithMaxOutstandingMessages(n int) Option {
	return func(o *Options) {
		o.maxOutstandingMessages = n
	}
}

// WithMaxOutstandingBytes sets the total body size of unacknowledged
// messages at which [Consumer.Receive] pauses. Default: 1 MiB.
func WithMaxOutstandingBytes(n int) Option {
	return func(o *Options) {
		o.maxOutstandingBytes = n
	}
}

// WithReceiveErrorBackoff sets the pause after a failed receive.
// Default: 5 seconds.
func WithReceiveErrorBackoff(d time.Duration) Option {
	return func(o *Options) {
		o.receiveErrorBackoff = d
	}
}

// WithAPI injects the SQS API implementation.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.api = api
	}
}
