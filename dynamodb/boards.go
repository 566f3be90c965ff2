package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/keys"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/types"
)

// purgePageSize is the page size used when emptying a board partition, so
// each page maps onto exactly one batch write.
const purgePageSize = maxBatchSize

// CreateBoardInput describes a board to create. A nil Name gives the board
// [types.DefaultBoardName].
type CreateBoardInput struct {
	TeamID      string
	Name        *string
	OwnerUserID string
}

// CreateBoard creates an ACTIVE board with a fresh ID in the given team.
func (c *Client) CreateBoard(ctx context.Context, in CreateBoardInput) (*types.Board, error) {
	if err := keys.ValidateID("team", in.TeamID); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}

	name := types.DefaultBoardName

	if in.Name != nil {
		normalized, err := types.NormalizeBoardName(*in.Name)
		if err != nil {
			return nil, err
		}
		name = normalized
	}

	now := keys.FormatTime(c.opts.clock())
	boardID := c.opts.newID()

	record := boardRecord{
		PK:          keys.TeamPK(in.TeamID),
		SK:          keys.BoardSK(boardID),
		TeamID:      in.TeamID,
		BoardID:     boardID,
		Name:        name,
		Status:      string(types.BoardStatusActive),
		CreatedAt:   now,
		UpdatedAt:   now,
		OwnerUserID: in.OwnerUserID,
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal board: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           &c.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk) AND attribute_not_exists(sk)"),
	}

	if _, err := c.client.PutItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return nil, fmt.Errorf("board %s already exists: %w", boardID, types.ErrConflict)
		}
		return nil, fmt.Errorf("failed to write board to DynamoDB table %s: %w", c.tableName, err)
	}

	return record.board(), nil
}

// GetBoard returns the board record, whatever its status. It returns
// [types.ErrNotFound] when the team has no such board.
func (c *Client) GetBoard(ctx context.Context, teamID, boardID string) (*types.Board, error) {
	if err := validateBoardRef(teamID, boardID); err != nil {
		return nil, err
	}

	input := &dynamodb.GetItemInput{
		TableName:      &c.tableName,
		Key:            keyOf(keys.TeamPK(teamID), keys.BoardSK(boardID)),
		ConsistentRead: aws.Bool(true),
	}

	output, err := c.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get board from DynamoDB table %s: %w", c.tableName, err)
	}

	if len(output.Item) == 0 {
		return nil, fmt.Errorf("board %s: %w", boardID, types.ErrNotFound)
	}

	var record boardRecord
	if err := attributevalue.UnmarshalMap(output.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal board %s: %w", boardID, err)
	}

	return record.board(), nil
}

// activeBoard returns the board only if it exists and is ACTIVE. A trashed
// board yields [types.ErrInvalidState].
func (c *Client) activeBoard(ctx context.Context, teamID, boardID string) (*types.Board, error) {
	board, err := c.GetBoard(ctx, teamID, boardID)
	if err != nil {
		return nil, err
	}

	if !board.IsActive() {
		return nil, fmt.Errorf("board %s is in the trash: %w", boardID, types.ErrInvalidState)
	}

	return board, nil
}

// ListBoards returns the team's ACTIVE boards in sort key order.
func (c *Client) ListBoards(ctx context.Context, teamID string) ([]types.Board, error) {
	if err := keys.ValidateID("team", teamID); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}

	input := &dynamodb.QueryInput{
		TableName:              &c.tableName,
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :sk)"),
		FilterExpression:       aws.String("#status = :active"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":pk":     stringValue(keys.TeamPK(teamID)),
			":sk":     stringValue(keys.BoardPrefix),
			":active": stringValue(string(types.BoardStatusActive)),
		},
	}

	items, err := c.queryAll(ctx, input)
	if err != nil {
		return nil, err
	}

	records, err := unmarshalItems[boardRecord](items)
	if err != nil {
		return nil, err
	}

	boards := make([]types.Board, 0, len(records))
	for i := range records {
		boards = append(boards, *records[i].board())
	}

	return boards, nil
}

// RenameBoard sets a new name on an existing board and bumps updatedAt.
func (c *Client) RenameBoard(ctx context.Context, teamID, boardID, name string) (*types.Board, error) {
	if err := validateBoardRef(teamID, boardID); err != nil {
		return nil, err
	}

	normalized, err := types.NormalizeBoardName(name)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.UpdateItemInput{
		TableName:           &c.tableName,
		Key:                 keyOf(keys.TeamPK(teamID), keys.BoardSK(boardID)),
		UpdateExpression:    aws.String("SET #name = :name, updatedAt = :updatedAt"),
		ConditionExpression: aws.String("attribute_exists(pk) AND attribute_exists(sk)"),
		ExpressionAttributeNames: map[string]string{
			"#name": "name",
		},
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":name":      stringValue(normalized),
			":updatedAt": stringValue(keys.FormatTime(c.opts.clock())),
		},
		ReturnValues: dynamodbtypes.ReturnValueAllNew,
	}

	output, err := c.client.UpdateItem(ctx, input)
	if err != nil {
		if isConditionFailed(err) {
			return nil, fmt.Errorf("board %s: %w", boardID, types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to rename board in DynamoDB table %s: %w", c.tableName, err)
	}

	var record boardRecord
	if err := attributevalue.UnmarshalMap(output.Attributes, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal board %s: %w", boardID, err)
	}

	return record.board(), nil
}

// MoveToTrash soft-deletes an ACTIVE board. The status change and the trash
// shadow record are written in one transaction so the trash listing never
// disagrees with the board record.
func (c *Client) MoveToTrash(ctx context.Context, teamID, boardID string) (*types.Board, error) {
	board, err := c.activeBoard(ctx, teamID, boardID)
	if err != nil {
		return nil, err
	}

	now := c.opts.clock()
	deletedAt := keys.FormatTime(now)

	shadow := trashRecord{
		PK:        keys.TeamPK(teamID),
		SK:        keys.BoardTrashSK(boardID),
		TeamID:    teamID,
		BoardID:   boardID,
		Name:      board.Name,
		Status:    string(types.BoardStatusDeleted),
		CreatedAt: keys.FormatTime(board.CreatedAt),
		UpdatedAt: deletedAt,
		DeletedAt: deletedAt,
		GSI3PK:    keys.GSI3PK(teamID),
		GSI3SK:    keys.GSI3SK(now, boardID),
	}

	shadowItem, err := attributevalue.MarshalMap(shadow)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trash record: %w", err)
	}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []dynamodbtypes.TransactWriteItem{
			{
				Update: &dynamodbtypes.Update{
					TableName:           &c.tableName,
					Key:                 keyOf(keys.TeamPK(teamID), keys.BoardSK(boardID)),
					UpdateExpression:    aws.String("SET #status = :deleted, updatedAt = :updatedAt"),
					ConditionExpression: aws.String("attribute_exists(pk) AND #status = :active"),
					ExpressionAttributeNames: map[string]string{
						"#status": "status",
					},
					ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
						":deleted":   stringValue(string(types.BoardStatusDeleted)),
						":active":    stringValue(string(types.BoardStatusActive)),
						":updatedAt": stringValue(deletedAt),
					},
				},
			},
			{
				Put: &dynamodbtypes.Put{
					TableName: &c.tableName,
					Item:      shadowItem,
				},
			},
		},
	}

	if _, err := c.client.TransactWriteItems(ctx, input); err != nil {
		if isConditionFailed(err) {
			return nil, fmt.Errorf("board %s changed while moving to trash: %w", boardID, types.ErrConflict)
		}
		return nil, fmt.Errorf("failed to move board to trash in DynamoDB table %s: %w", c.tableName, err)
	}

	board.Status = types.BoardStatusDeleted
	board.UpdatedAt = parseTime(deletedAt)

	return board, nil
}

// ListTrash returns the team's trashed boards, most recently deleted first.
func (c *Client) ListTrash(ctx context.Context, teamID string) ([]types.TrashedBoard, error) {
	if err := keys.ValidateID("team", teamID); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}

	input := &dynamodb.QueryInput{
		TableName:              &c.tableName,
		IndexName:              aws.String(GSI3),
		KeyConditionExpression: aws.String("gsi3pk = :pk"),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":pk": stringValue(keys.GSI3PK(teamID)),
		},
		ScanIndexForward: aws.Bool(false),
	}

	items, err := c.queryAll(ctx, input)
	if err != nil {
		return nil, err
	}

	records, err := unmarshalItems[trashRecord](items)
	if err != nil {
		return nil, err
	}

	trashed := make([]types.TrashedBoard, 0, len(records))
	for i := range records {
		trashed = append(trashed, records[i].trashedBoard())
	}

	return trashed, nil
}

// RestoreBoard moves a trashed board back to ACTIVE and removes its trash
// shadow in one transaction. Restoring a board that is not in the trash
// fails with [types.ErrInvalidState].
func (c *Client) RestoreBoard(ctx context.Context, teamID, boardID string) (*types.Board, error) {
	board, err := c.GetBoard(ctx, teamID, boardID)
	if err != nil {
		return nil, err
	}

	if board.IsActive() {
		return nil, fmt.Errorf("board %s is not in the trash: %w", boardID, types.ErrInvalidState)
	}

	updatedAt := keys.FormatTime(c.opts.clock())

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []dynamodbtypes.TransactWriteItem{
			{
				Update: &dynamodbtypes.Update{
					TableName:           &c.tableName,
					Key:                 keyOf(keys.TeamPK(teamID), keys.BoardSK(boardID)),
					UpdateExpression:    aws.String("SET #status = :active, updatedAt = :updatedAt"),
					ConditionExpression: aws.String("attribute_exists(pk) AND #status = :deleted"),
					ExpressionAttributeNames: map[string]string{
						"#status": "status",
					},
					ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
						":deleted":   stringValue(string(types.BoardStatusDeleted)),
						":active":    stringValue(string(types.BoardStatusActive)),
						":updatedAt": stringValue(updatedAt),
					},
				},
			},
			{
				Delete: &dynamodbtypes.Delete{
					TableName: &c.tableName,
					Key:       keyOf(keys.TeamPK(teamID), keys.BoardTrashSK(boardID)),
				},
			},
		},
	}

	if _, err := c.client.TransactWriteItems(ctx, input); err != nil {
		if isConditionFailed(err) {
			return nil, fmt.Errorf("board %s changed while restoring: %w", boardID, types.ErrConflict)
		}
		return nil, fmt.Errorf("failed to restore board in DynamoDB table %s: %w", c.tableName, err)
	}

	board.Status = types.BoardStatusActive
	board.UpdatedAt = parseTime(updatedAt)

	return board, nil
}

// DeleteBoardPermanently removes the board, its trash shadow and every item
// of its partition. The board record is deleted last, so an interrupted
// call can be repeated until it completes.
func (c *Client) DeleteBoardPermanently(ctx context.Context, teamID, boardID string) error {
	if _, err := c.GetBoard(ctx, teamID, boardID); err != nil {
		return err
	}

	trashInput := &dynamodb.DeleteItemInput{
		TableName: &c.tableName,
		Key:       keyOf(keys.TeamPK(teamID), keys.BoardTrashSK(boardID)),
	}

	if _, err := c.client.DeleteItem(ctx, trashInput); err != nil {
		return fmt.Errorf("failed to delete trash record from DynamoDB table %s: %w", c.tableName, err)
	}

	if err := c.PurgeBoard(ctx, boardID); err != nil {
		return err
	}

	boardInput := &dynamodb.DeleteItemInput{
		TableName:           &c.tableName,
		Key:                 keyOf(keys.TeamPK(teamID), keys.BoardSK(boardID)),
		ConditionExpression: aws.String("attribute_exists(pk) AND attribute_exists(sk)"),
	}

	if _, err := c.client.DeleteItem(ctx, boardInput); err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("board %s: %w", boardID, types.ErrNotFound)
		}
		return fmt.Errorf("failed to delete board from DynamoDB table %s: %w", c.tableName, err)
	}

	return nil
}

// PurgeBoard deletes every item of the board partition, elements and
// sessions alike, one page of keys at a time. It is safe to repeat.
func (c *Client) PurgeBoard(ctx context.Context, boardID string) error {
	if err := keys.ValidateID("board", boardID); err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}

	input := &dynamodb.QueryInput{
		TableName:              &c.tableName,
		KeyConditionExpression: aws.String("pk = :pk"),
		ProjectionExpression:   aws.String("pk, sk"),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":pk": stringValue(keys.BoardPK(boardID)),
		},
		Limit: aws.Int32(purgePageSize),
	}

	return c.queryPages(ctx, input, func(page []map[string]dynamodbtypes.AttributeValue) error {
		return c.writeBatches(ctx, deleteRequests(page))
	})
}

func validateBoardRef(teamID, boardID string) error {
	if err := keys.ValidateID("team", teamID); err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}

	if err := keys.ValidateID("board", boardID); err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}

	return nil
}
