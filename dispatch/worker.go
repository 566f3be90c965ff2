package dispatch

import (
	"context"

	"github.com/nicholasgriffintn/aws-hosted-excalidraw/sqs"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/types"
)

// Worker dispatches stream records received from the change queue. Messages
// are acked once dispatched and nacked when they cannot be decoded or their
// sessions cannot be resolved, leaving redelivery to the queue.
type Worker struct {
	dispatcher *Dispatcher
	logger     types.Logger
}

func NewWorker(dispatcher *Dispatcher, logger types.Logger) *Worker {
	return &Worker{
		dispatcher: dispatcher,
		logger:     logger.WithField("component", "dispatch_worker"),
	}
}

// Run handles items until the channel is closed or ctx ends.
func (w *Worker) Run(ctx context.Context, items <-chan *sqs.Item) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-items:
			if !ok {
				return nil
			}
			w.Handle(ctx, item)
		}
	}
}

// Handle dispatches one queue item and acks or nacks it.
func (w *Worker) Handle(ctx context.Context, item *sqs.Item) {
	logger := w.logger.WithField("message_id", item.MessageID)

	record, err := DecodeRecord(item.Body)
	if err != nil {
		logger.Errorf("Failed to decode change message: %v", err)
		item.Nack()
		return
	}

	outcome := w.dispatcher.processRecord(ctx, &record)
	if outcome.Status == OutcomeFailed {
		item.Nack()
		return
	}

	item.Ack()
}
