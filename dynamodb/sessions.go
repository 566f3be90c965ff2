package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/keys"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/types"
)

// SessionInput identifies the connection being bound to a board.
type SessionInput struct {
	TeamID       string
	BoardID      string
	ConnectionID string
	UserID       string
}

// SessionKey locates one session record.
type SessionKey struct {
	BoardID      string
	ConnectionID string
}

// RegisterSession binds a connection to an ACTIVE board of the team with a
// lease of the configured session time to live. Registering the same
// connection again overwrites the record and renews the lease.
func (c *Client) RegisterSession(ctx context.Context, in SessionInput) (*types.Session, error) {
	if in.ConnectionID == "" {
		return nil, fmt.Errorf("%w: connection ID cannot be empty", types.ErrInvalidInput)
	}

	if in.BoardID == "" {
		return nil, fmt.Errorf("%w: board ID is required", types.ErrInvalidInput)
	}

	board, err := c.GetBoard(ctx, in.TeamID, in.BoardID)
	if err != nil {
		return nil, err
	}

	if !board.IsActive() {
		return nil, fmt.Errorf("board %s is in the trash: %w", in.BoardID, types.ErrNotFound)
	}

	now := c.opts.clock()
	expiresAt := now.Add(c.opts.sessionTimeToLive)

	record := sessionRecord{
		PK:           keys.BoardPK(in.BoardID),
		SK:           keys.SessionSK(in.ConnectionID),
		TeamID:       in.TeamID,
		BoardID:      in.BoardID,
		ConnectionID: in.ConnectionID,
		UserID:       in.UserID,
		ConnectedAt:  keys.FormatTime(now),
		TTL:          expiresAt.Unix(),
		GSI2PK:       keys.GSI2PKConnection(in.ConnectionID),
		GSI2SK:       keys.GSI2SKBoard(in.BoardID),
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: &c.tableName,
		Item:      item,
	}

	if _, err := c.client.PutItem(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to write session to DynamoDB table %s: %w", c.tableName, err)
	}

	session := record.session()

	return &session, nil
}

// ListSessions returns every session record of the board, expired or not.
// Filtering by expiry is left to the caller.
func (c *Client) ListSessions(ctx context.Context, boardID string) ([]types.Session, error) {
	if err := keys.ValidateID("board", boardID); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}

	input := &dynamodb.QueryInput{
		TableName:              &c.tableName,
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :sk)"),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":pk": stringValue(keys.BoardPK(boardID)),
			":sk": stringValue(keys.SessionPrefix),
		},
	}

	items, err := c.queryAll(ctx, input)
	if err != nil {
		return nil, err
	}

	records, err := unmarshalItems[sessionRecord](items)
	if err != nil {
		return nil, err
	}

	sessions := make([]types.Session, 0, len(records))
	for i := range records {
		sessions = append(sessions, records[i].session())
	}

	return sessions, nil
}

// LookupByConnection returns the session of a connection through GSI2.
// It returns [types.ErrNotFound] when the connection has no session.
func (c *Client) LookupByConnection(ctx context.Context, connectionID string) (*types.Session, error) {
	if connectionID == "" {
		return nil, fmt.Errorf("%w: connection ID cannot be empty", types.ErrInvalidInput)
	}

	input := &dynamodb.QueryInput{
		TableName:              &c.tableName,
		IndexName:              aws.String(GSI2),
		KeyConditionExpression: aws.String("gsi2pk = :pk"),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":pk": stringValue(keys.GSI2PKConnection(connectionID)),
		},
		Limit: aws.Int32(1),
	}

	output, err := c.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query DynamoDB table %s: %w", c.tableName, err)
	}

	if len(output.Items) == 0 {
		return nil, fmt.Errorf("connection %s has no session: %w", connectionID, types.ErrNotFound)
	}

	var record sessionRecord
	if err := attributevalue.UnmarshalMap(output.Items[0], &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	session := record.session()

	return &session, nil
}

// RemoveSession deletes one session record. Removing a session that does
// not exist is not an error.
func (c *Client) RemoveSession(ctx context.Context, connectionID, boardID string) error {
	if connectionID == "" || boardID == "" {
		return fmt.Errorf("%w: connection ID and board ID are required", types.ErrInvalidInput)
	}

	input := &dynamodb.DeleteItemInput{
		TableName: &c.tableName,
		Key:       keyOf(keys.BoardPK(boardID), keys.SessionSK(connectionID)),
	}

	if _, err := c.client.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("failed to delete session from DynamoDB table %s: %w", c.tableName, err)
	}

	return nil
}

// RemoveConnection deletes every session of a connection and returns how
// many were removed. Every record is attempted; failures are joined.
func (c *Client) RemoveConnection(ctx context.Context, connectionID string) (int, error) {
	if connectionID == "" {
		return 0, fmt.Errorf("%w: connection ID cannot be empty", types.ErrInvalidInput)
	}

	input := &dynamodb.QueryInput{
		TableName:              &c.tableName,
		IndexName:              aws.String(GSI2),
		KeyConditionExpression: aws.String("gsi2pk = :pk"),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":pk": stringValue(keys.GSI2PKConnection(connectionID)),
		},
	}

	items, err := c.queryAll(ctx, input)
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error

	for _, item := range items {
		boardID := getStringValue(item["boardId"])
		if boardID == "" {
			continue
		}

		if err := c.RemoveSession(ctx, connectionID, boardID); err != nil {
			errs = append(errs, err)
			continue
		}

		removed++
	}

	return removed, errors.Join(errs...)
}

// ExpiredSessions scans the table for session records whose ttl is before
// now. Records without a ttl are never returned.
func (c *Client) ExpiredSessions(ctx context.Context, now time.Time) ([]SessionKey, error) {
	input := &dynamodb.ScanInput{
		TableName:            &c.tableName,
		FilterExpression:     aws.String("attribute_exists(#ttl) AND #ttl < :now AND begins_with(sk, :session)"),
		ProjectionExpression: aws.String("pk, sk"),
		ExpressionAttributeNames: map[string]string{
			"#ttl": TTLAttr,
		},
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":now":     &dynamodbtypes.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
			":session": stringValue(keys.SessionPrefix),
		},
	}

	var expired []SessionKey

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		output, err := c.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to scan DynamoDB table %s: %w", c.tableName, err)
		}

		for _, item := range output.Items {
			boardID, err := keys.BoardIDFromPK(getStringValue(item[PartitionKey]))
			if err != nil {
				continue
			}

			connectionID, err := keys.ConnectionIDFromSK(getStringValue(item[SortKey]))
			if err != nil {
				continue
			}

			expired = append(expired, SessionKey{BoardID: boardID, ConnectionID: connectionID})
		}

		if len(output.LastEvaluatedKey) == 0 {
			return expired, nil
		}

		input.ExclusiveStartKey = output.LastEvaluatedKey
	}
}
