package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/types"
)

// writeBatches submits requests in chunks of [maxBatchSize]. Chunks are
// written in order and the first failing chunk aborts the rest.
func (c *Client) writeBatches(ctx context.Context, requests []dynamodbtypes.WriteRequest) error {
	for start := 0; start < len(requests); start += maxBatchSize {
		end := min(start+maxBatchSize, len(requests))

		if err := c.writeBatch(ctx, requests[start:end]); err != nil {
			return err
		}
	}

	return nil
}

// writeBatch writes a single chunk, resubmitting unprocessed items with
// exponential backoff. Once the configured retries are spent the remaining
// items are reported as a transient failure.
func (c *Client) writeBatch(ctx context.Context, requests []dynamodbtypes.WriteRequest) error {
	input := &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]dynamodbtypes.WriteRequest{
			c.tableName: requests,
		},
	}

	backoff := c.opts.batchInitialBackoff

	for attempt := 0; ; attempt++ {
		output, err := c.client.BatchWriteItem(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to batch write to DynamoDB table %s: %w", c.tableName, err)
		}

		unprocessed := output.UnprocessedItems[c.tableName]
		if len(unprocessed) == 0 {
			return nil
		}

		if attempt == c.opts.batchMaxRetries {
			return fmt.Errorf("%w: %d unprocessed items after %d retries", types.ErrTransient, len(unprocessed), c.opts.batchMaxRetries)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
		input.RequestItems = map[string][]dynamodbtypes.WriteRequest{
			c.tableName: unprocessed,
		}
	}
}

// deleteRequests turns items carrying at least pk and sk into delete requests.
func deleteRequests(items []map[string]dynamodbtypes.AttributeValue) []dynamodbtypes.WriteRequest {
	requests := make([]dynamodbtypes.WriteRequest, 0, len(items))

	for _, item := range items {
		requests = append(requests, dynamodbtypes.WriteRequest{
			DeleteRequest: &dynamodbtypes.DeleteRequest{
				Key: map[string]dynamodbtypes.AttributeValue{
					PartitionKey: item[PartitionKey],
					SortKey:      item[SortKey],
				},
			},
		})
	}

	return requests
}

func putRequests(items []map[string]dynamodbtypes.AttributeValue) []dynamodbtypes.WriteRequest {
	requests := make([]dynamodbtypes.WriteRequest, 0, len(items))

	for _, item := range items {
		requests = append(requests, dynamodbtypes.WriteRequest{
			PutRequest: &dynamodbtypes.PutRequest{Item: item},
		})
	}

	return requests
}
