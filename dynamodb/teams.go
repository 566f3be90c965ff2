package dynamodb

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/keys"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/types"
)

// CreateTeam writes the metadata record of a new team. It fails with
// [types.ErrConflict] when the team already exists.
func (c *Client) CreateTeam(ctx context.Context, teamID, name string) (*types.Team, error) {
	if err := keys.ValidateID("team", teamID); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}

	normalized, err := types.NormalizeTeamName(name)
	if err != nil {
		return nil, err
	}

	now := keys.FormatTime(c.opts.clock())

	record := teamRecord{
		PK:        keys.TeamPK(teamID),
		SK:        keys.TeamMetadataSK,
		TeamID:    teamID,
		Name:      normalized,
		CreatedAt: now,
		UpdatedAt: now,
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal team: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           &c.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	}

	if _, err := c.client.PutItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return nil, fmt.Errorf("team %s already exists: %w", teamID, types.ErrConflict)
		}
		return nil, fmt.Errorf("failed to write team to DynamoDB table %s: %w", c.tableName, err)
	}

	return record.team(), nil
}

// GetTeam returns the team's metadata or [types.ErrNotFound].
func (c *Client) GetTeam(ctx context.Context, teamID string) (*types.Team, error) {
	if err := keys.ValidateID("team", teamID); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}

	input := &dynamodb.GetItemInput{
		TableName: &c.tableName,
		Key:       keyOf(keys.TeamPK(teamID), keys.TeamMetadataSK),
	}

	output, err := c.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get team from DynamoDB table %s: %w", c.tableName, err)
	}

	if len(output.Item) == 0 {
		return nil, fmt.Errorf("team %s: %w", teamID, types.ErrNotFound)
	}

	var record teamRecord
	if err := attributevalue.UnmarshalMap(output.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal team %s: %w", teamID, err)
	}

	return record.team(), nil
}

// AddMember adds a user to an existing team. Adding a user who is already a
// member fails with [types.ErrConflict].
func (c *Client) AddMember(ctx context.Context, teamID, userID string, role types.Role) (*types.Member, error) {
	if err := validateMemberRef(teamID, userID); err != nil {
		return nil, err
	}

	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", types.ErrInvalidInput, role)
	}

	if _, err := c.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}

	record := memberRecord{
		PK:       keys.TeamPK(teamID),
		SK:       keys.TeamUserSK(userID),
		TeamID:   teamID,
		UserID:   userID,
		Role:     string(role),
		JoinedAt: keys.FormatTime(c.opts.clock()),
		GSI2PK:   keys.GSI2PKUser(userID),
		GSI2SK:   keys.GSI2SKTeam(teamID),
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal member: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           &c.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk) AND attribute_not_exists(sk)"),
	}

	if _, err := c.client.PutItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return nil, fmt.Errorf("user %s is already a member of team %s: %w", userID, teamID, types.ErrConflict)
		}
		return nil, fmt.Errorf("failed to write member to DynamoDB table %s: %w", c.tableName, err)
	}

	member := record.member()

	return &member, nil
}

// RemoveMember removes a user from a team or fails with [types.ErrNotFound].
func (c *Client) RemoveMember(ctx context.Context, teamID, userID string) error {
	if err := validateMemberRef(teamID, userID); err != nil {
		return err
	}

	input := &dynamodb.DeleteItemInput{
		TableName:           &c.tableName,
		Key:                 keyOf(keys.TeamPK(teamID), keys.TeamUserSK(userID)),
		ConditionExpression: aws.String("attribute_exists(pk) AND attribute_exists(sk)"),
	}

	if _, err := c.client.DeleteItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("user %s is not a member of team %s: %w", userID, teamID, types.ErrNotFound)
		}
		return fmt.Errorf("failed to delete member from DynamoDB table %s: %w", c.tableName, err)
	}

	return nil
}

// ListMembers returns the team's members, most recently joined first.
func (c *Client) ListMembers(ctx context.Context, teamID string) ([]types.Member, error) {
	if err := keys.ValidateID("team", teamID); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}

	input := &dynamodb.QueryInput{
		TableName:              &c.tableName,
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :sk)"),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":pk": stringValue(keys.TeamPK(teamID)),
			":sk": stringValue(keys.UserPrefix),
		},
	}

	members, err := c.queryMembers(ctx, input)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(members, func(i, j int) bool {
		return members[i].JoinedAt.After(members[j].JoinedAt)
	})

	return members, nil
}

// ListTeamsForUser returns the user's memberships through GSI2.
func (c *Client) ListTeamsForUser(ctx context.Context, userID string) ([]types.Member, error) {
	if err := keys.ValidateID("user", userID); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}

	input := &dynamodb.QueryInput{
		TableName:              &c.tableName,
		IndexName:              aws.String(GSI2),
		KeyConditionExpression: aws.String("gsi2pk = :pk"),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":pk": stringValue(keys.GSI2PKUser(userID)),
		},
	}

	return c.queryMembers(ctx, input)
}

func (c *Client) queryMembers(ctx context.Context, input *dynamodb.QueryInput) ([]types.Member, error) {
	items, err := c.queryAll(ctx, input)
	if err != nil {
		return nil, err
	}

	records, err := unmarshalItems[memberRecord](items)
	if err != nil {
		return nil, err
	}

	members := make([]types.Member, 0, len(records))
	for i := range records {
		members = append(members, records[i].member())
	}

	return members, nil
}

func validateMemberRef(teamID, userID string) error {
	if err := keys.ValidateID("team", teamID); err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}

	if err := keys.ValidateID("user", userID); err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}

	return nil
}
