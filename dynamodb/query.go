package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// queryAll runs input to completion, following LastEvaluatedKey, and returns
// every matching item in index order.
func (c *Client) queryAll(ctx context.Context, input *dynamodb.QueryInput) ([]map[string]dynamodbtypes.AttributeValue, error) {
	var items []map[string]dynamodbtypes.AttributeValue

	err := c.queryPages(ctx, input, func(page []map[string]dynamodbtypes.AttributeValue) error {
		items = append(items, page...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return items, nil
}

// queryPages calls fn once per page of input, stopping at the first error.
func (c *Client) queryPages(ctx context.Context, input *dynamodb.QueryInput, fn func(page []map[string]dynamodbtypes.AttributeValue) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		output, err := c.client.Query(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to query DynamoDB table %s: %w", c.tableName, err)
		}

		if len(output.Items) > 0 {
			if err := fn(output.Items); err != nil {
				return err
			}
		}

		if len(output.LastEvaluatedKey) == 0 {
			return nil
		}

		input.ExclusiveStartKey = output.LastEvaluatedKey
	}
}
