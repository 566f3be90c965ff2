package sqs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/types"
)

// API is the subset of the SQS client used by [Consumer].
type API interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

var _ API = (*sqs.Client)(nil)

// Item is one received message. Exactly one of Ack or Nack should be called
// once processing ends.
type Item struct {
	MessageID  string
	GroupID    string
	ReceivedAt time.Time
	Body       []byte
	Ack        func()
	Nack       func()
}

// Consumer reads a FIFO change queue and hands each message to a sink
// channel, renewing the visibility of in-flight messages in the background.
//
// Create a Consumer with [NewConsumer] and call [Consumer.Init] once before
// [Consumer.Receive].
type Consumer struct {
	api         API
	queueName   string
	queueURL    string
	awsCfg      *aws.Config
	opts        *Options
	keeper      *leaseKeeper
	leaseCh     chan *lease
	logger      types.Logger
	now         func() time.Time
	initialized bool
}

func NewConsumer(awsCfg *aws.Config, queueName string, logger types.Logger, opts ...Option) *Consumer {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Consumer{
		awsCfg:    awsCfg,
		queueName: queueName,
		opts:      options,
		leaseCh:   make(chan *lease, 1000),
		logger:    logger.WithField("component", "sqs").WithField("queue_name", queueName),
		now:       time.Now,
	}
}

// Init validates the options, resolves the queue URL and starts the lease
// keeper, which runs until ctx is cancelled. Calling Init again is a no-op.
// Init is not safe for concurrent use.
func (c *Consumer) Init(ctx context.Context) (*Consumer, error) {
	if c.initialized {
		return c, nil
	}

	if !strings.HasSuffix(c.queueName, ".fifo") {
		return nil, errors.New("the change queue must be a FIFO queue (the name must end with .fifo)")
	}

	if err := c.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid SQS options: %w", err)
	}

	if c.opts.api != nil {
		c.api = c.opts.api
	} else {
		if c.awsCfg == nil {
			return nil, errors.New("AWS config cannot be nil")
		}

		c.api = sqs.NewFromConfig(*c.awsCfg, func(o *sqs.Options) {
			o.Retryer = retry.AddWithMaxBackoffDelay(o.Retryer, c.opts.apiMaxRetryBackoffDelay)
			o.Retryer = retry.AddWithMaxAttempts(o.Retryer, c.opts.apiMaxRetryAttempts)
		})
	}

	resp, err := c.api.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(c.queueName)})
	if err != nil {
		return nil, fmt.Errorf("failed to get SQS queue URL for %s: %w", c.queueName, err)
	}

	c.queueURL = aws.ToString(resp.QueueUrl)
	c.keeper = newLeaseKeeper(c.opts, c.logger)

	go c.keeper.run(ctx, c.leaseCh)

	c.initialized = true

	return c, nil
}

// Name returns the queue name supplied to [NewConsumer].
func (c *Consumer) Name() string {
	return c.queueName
}

// Receive reads the queue until ctx is cancelled, sending every message to
// sinkCh, and closes sinkCh before returning ctx.Err(). Reading pauses while
// the outstanding message or byte limit is reached. A failed receive is
// logged and retried after a backoff.
func (c *Consumer) Receive(ctx context.Context, sinkCh chan<- *Item) error {
	defer close(sinkCh)

	if !c.initialized {
		return errors.New("SQS consumer not initialized")
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := c.receive(ctx, sinkCh)
		if err == nil {
			continue
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Errorf("Error reading SQS queue: %v", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.receiveErrorBackoff):
		}
	}
}

func (c *Consumer) receive(ctx context.Context, sinkCh chan<- *Item) error {
	for !c.keeper.hasCapacity() {
		c.logger.Debug("SQS consumer at capacity, waiting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}

	input := &sqs.ReceiveMessageInput{
		QueueUrl:            &c.queueURL,
		MaxNumberOfMessages: c.opts.receiveMaxMessages,
		VisibilityTimeout:   c.opts.visibilityTimeoutSeconds,
		WaitTimeSeconds:     c.opts.receiveWaitTimeSeconds,
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
			sqstypes.MessageSystemAttributeNameMessageGroupId,
		},
	}

	output, err := c.api.ReceiveMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to receive SQS messages: %w", err)
	}

	for _, m := range output.Messages {
		messageID := aws.ToString(m.MessageId)
		receipt := aws.ToString(m.ReceiptHandle)
		body := aws.ToString(m.Body)

		l := newLease(messageID, len(body), time.Duration(c.opts.visibilityTimeoutSeconds)*time.Second, c.now)
		l.release = func() { //nolint:contextcheck // the delete must run even when the receive context is done
			c.deleteMessage(messageID, receipt)
		}
		l.renew = func(ctx context.Context) error {
			return c.changeVisibility(ctx, receipt)
		}

		if err := trySend(ctx, l, c.leaseCh); err != nil {
			return err
		}

		item := &Item{
			MessageID:  messageID,
			GroupID:    m.Attributes[string(sqstypes.MessageSystemAttributeNameMessageGroupId)],
			ReceivedAt: l.receivedAt,
			Body:       []byte(body),
			Ack:        l.Ack,
			Nack:       l.Nack,
		}

		if err := trySend(ctx, item, sinkCh); err != nil {
			return err
		}

		c.logger.WithField("message_id", messageID).Debug("SQS message received")
	}

	return nil
}

func (c *Consumer) deleteMessage(messageID, receipt string) {
	logger := c.logger.WithField("message_id", messageID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	input := &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: &receipt,
	}

	if _, err := c.api.DeleteMessage(ctx, input); err != nil {
		logger.Errorf("Failed to delete SQS message: %v", err)
		return
	}

	logger.Debug("SQS message deleted")
}

func (c *Consumer) changeVisibility(ctx context.Context, receipt string) error {
	input := &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          &c.queueURL,
		ReceiptHandle:     &receipt,
		VisibilityTimeout: c.opts.visibilityTimeoutSeconds,
	}

	if _, err := c.api.ChangeMessageVisibility(ctx, input); err != nil {
		return fmt.Errorf("failed to extend SQS message visibility: %w", err)
	}

	return nil
}

func trySend[T any](ctx context.Context, v T, ch chan<- T) error {
	select {
	case ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
