package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/keys"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/types"
)

// ReadElements returns the board's elements in the order of the last
// replacement. The board must exist in the team and be ACTIVE.
//
// Elements are read from GSI1, which is eventually consistent: a read that
// follows a [Client.ReplaceElements] closely may return part of the old or
// new set.
func (c *Client) ReadElements(ctx context.Context, teamID, boardID string) ([]types.Element, error) {
	if _, err := c.activeBoard(ctx, teamID, boardID); err != nil {
		return nil, err
	}

	input := &dynamodb.QueryInput{
		TableName:              &c.tableName,
		IndexName:              aws.String(GSI1),
		KeyConditionExpression: aws.String("gsi1pk = :pk"),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":pk": stringValue(keys.GSI1PK(boardID)),
		},
		ScanIndexForward: aws.Bool(true),
	}

	items, err := c.queryAll(ctx, input)
	if err != nil {
		return nil, err
	}

	elements := make([]types.Element, 0, len(items))

	for _, item := range items {
		element, err := elementFromItem(item)
		if err != nil {
			return nil, err
		}
		elements = append(elements, element)
	}

	return elements, nil
}

// ReplaceElements makes the board's element set exactly equal to elements,
// stored in the given order, and returns how many were saved.
//
// The new set is validated in full before anything is written. Existing
// element records are then deleted, the new ones written, and finally the
// board's updatedAt is bumped. The replacement is not atomic: a concurrent
// reader may observe an empty or partial board, and concurrent replacements
// of the same board resolve as last writer wins.
func (c *Client) ReplaceElements(ctx context.Context, teamID, boardID string, elements []types.Element) (int, error) {
	if err := validateBoardRef(teamID, boardID); err != nil {
		return 0, err
	}

	ids, err := types.ElementIDs(elements)
	if err != nil {
		return 0, err
	}

	if _, err := c.activeBoard(ctx, teamID, boardID); err != nil {
		return 0, err
	}

	updatedAt := keys.FormatTime(c.opts.clock())
	items := make([]map[string]dynamodbtypes.AttributeValue, 0, len(elements))

	for i, element := range elements {
		item, err := newElementRecord(teamID, boardID, ids[i], i, element, updatedAt)
		if err != nil {
			return 0, err
		}
		items = append(items, item)
	}

	existing, err := c.elementKeys(ctx, boardID)
	if err != nil {
		return 0, err
	}

	if err := c.writeBatches(ctx, deleteRequests(existing)); err != nil {
		return 0, fmt.Errorf("failed to delete existing elements of board %s: %w", boardID, err)
	}

	if err := c.writeBatches(ctx, putRequests(items)); err != nil {
		return 0, fmt.Errorf("failed to write elements of board %s: %w", boardID, err)
	}

	if err := c.touchBoard(ctx, teamID, boardID, updatedAt); err != nil {
		return 0, err
	}

	return len(elements), nil
}

// elementKeys returns the keys of every element record of the board,
// leaving sessions in the same partition alone.
func (c *Client) elementKeys(ctx context.Context, boardID string) ([]map[string]dynamodbtypes.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:              &c.tableName,
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :sk)"),
		ProjectionExpression:   aws.String("pk, sk"),
		ConsistentRead:         aws.Bool(true),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":pk": stringValue(keys.BoardPK(boardID)),
			":sk": stringValue(keys.ElementPrefix),
		},
	}

	return c.queryAll(ctx, input)
}

func (c *Client) touchBoard(ctx context.Context, teamID, boardID, updatedAt string) error {
	input := &dynamodb.UpdateItemInput{
		TableName:           &c.tableName,
		Key:                 keyOf(keys.TeamPK(teamID), keys.BoardSK(boardID)),
		UpdateExpression:    aws.String("SET updatedAt = :updatedAt"),
		ConditionExpression: aws.String("attribute_exists(pk) AND attribute_exists(sk)"),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":updatedAt": stringValue(updatedAt),
		},
	}

	if _, err := c.client.UpdateItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("board %s: %w", boardID, types.ErrNotFound)
		}
		return fmt.Errorf("failed to update board in DynamoDB table %s: %w", c.tableName, err)
	}

	return nil
}
