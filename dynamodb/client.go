package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// GSI1 orders a board's elements by their position in the last
	// replacement. Partition key: gsi1pk, sort key: gsi1sk.
	GSI1 = "GSI1"

	// GSI2 maps a connection to its session and a user to their teams.
	// Partition key: gsi2pk, sort key: gsi2sk.
	GSI2 = "GSI2"

	// GSI3 lists a team's trashed boards by deletion time.
	// Partition key: gsi3pk, sort key: gsi3sk.
	GSI3 = "GSI3"

	// PartitionKey is the DynamoDB partition key attribute name.
	PartitionKey = "pk"

	// SortKey is the DynamoDB sort key attribute name.
	SortKey = "sk"

	GSI1PartitionKey = "gsi1pk"
	GSI1SortKey      = "gsi1sk"
	GSI2PartitionKey = "gsi2pk"
	GSI2SortKey      = "gsi2sk"
	GSI3PartitionKey = "gsi3pk"
	GSI3SortKey      = "gsi3sk"

	// TTLAttr is the attribute name used for DynamoDB TTL-based expiration of
	// sessions. The table must have TTL enabled on this attribute.
	TTLAttr = "ttl"

	// maxBatchSize is the BatchWriteItem request limit.
	maxBatchSize = 25

	// maxBackoff is the maximum backoff duration for retry loops.
	maxBackoff = 2 * time.Second
)

// Client is the DynamoDB-backed store of teams, boards, elements and
// sessions. All entities live in one table keyed by the formats of the
// keys package.
//
// Use [New] to create a Client, [Client.Connect] to initialize the underlying
// DynamoDB connection, and [Client.Init] to validate the table schema.
type Client struct {
	client    API
	tableName string
	awsCfg    *aws.Config
	opts      *Options
}

// New creates a new Client configured with the given AWS config, table name,
// and optional options. Call [Client.Connect] on the returned client before use.
func New(awsCfg *aws.Config, tableName string, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		awsCfg:    awsCfg,
		tableName: tableName,
		opts:      options,
	}
}

// Connect initializes the DynamoDB client from the AWS config provided to [New].
// It must be called before any other Client methods, and must complete before
// the Client is used concurrently.
func (c *Client) Connect() error {
	if c.tableName == "" {
		return errors.New("table name cannot be empty")
	}

	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("invalid DynamoDB options: %w", err)
	}

	if c.opts.dynamoDBAPI != nil {
		c.client = c.opts.dynamoDBAPI
	} else {
		if c.awsCfg == nil {
			return errors.New("AWS config cannot be nil")
		}
		c.client = dynamodb.NewFromConfig(*c.awsCfg, func(o *dynamodb.Options) {
			if c.opts.endpoint != "" {
				o.BaseEndpoint = aws.String(c.opts.endpoint)
			}
		})
	}

	return nil
}

// TableName returns the name of the table the client operates on.
func (c *Client) TableName() string {
	return c.tableName
}

// Init validates the DynamoDB table schema. It checks that the table exists
// and is active, has the composite key (pk, sk), has TTL enabled on the ttl
// attribute, has a stream emitting new and old images, and that the three
// secondary indexes ([GSI1], [GSI2], [GSI3]) are present with projection ALL.
//
// Pass skipSchemaValidation true to skip all checks and return immediately,
// which is useful when schema validation is managed separately.
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if skipSchemaValidation {
		return nil
	}

	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(c.tableName),
	}

	response, err := c.client.DescribeTable(ctx, input)
	if err != nil {
		var notFoundError *dynamodbtypes.ResourceNotFoundException
		if errors.As(err, &notFoundError) {
			return fmt.Errorf("table %s does not exist", c.tableName)
		}
		return fmt.Errorf("failed to describe table %s: %w", c.tableName, err)
	}

	if response.Table == nil {
		return fmt.Errorf("table %s has no description", c.tableName)
	}

	if len(response.Table.KeySchema) < 1 {
		return fmt.Errorf("table %s has no key schema", c.tableName)
	}

	if aws.ToString(response.Table.KeySchema[0].AttributeName) != PartitionKey {
		return fmt.Errorf("table %s has partition key %s, expected %s", c.tableName, aws.ToString(response.Table.KeySchema[0].AttributeName), PartitionKey)
	}

	if len(response.Table.KeySchema) < 2 {
		return fmt.Errorf("table %s has a simple primary key, expected composite", c.tableName)
	}

	if aws.ToString(response.Table.KeySchema[1].AttributeName) != SortKey {
		return fmt.Errorf("table %s has sort key %s, expected %s", c.tableName, aws.ToString(response.Table.KeySchema[1].AttributeName), SortKey)
	}

	if response.Table.TableStatus != dynamodbtypes.TableStatusActive {
		return fmt.Errorf("table %s is not active (status: %s)", c.tableName, response.Table.TableStatus)
	}

	stream := response.Table.StreamSpecification
	if stream == nil || !aws.ToBool(stream.StreamEnabled) {
		return fmt.Errorf("table %s has no stream enabled", c.tableName)
	}

	if stream.StreamViewType != dynamodbtypes.StreamViewTypeNewAndOldImages {
		return fmt.Errorf("table %s has stream view type %s, expected %s", c.tableName, stream.StreamViewType, dynamodbtypes.StreamViewTypeNewAndOldImages)
	}

	ttlInput := &dynamodb.DescribeTimeToLiveInput{
		TableName: aws.String(c.tableName),
	}

	ttlResponse, err := c.client.DescribeTimeToLive(ctx, ttlInput)
	if err != nil {
		return fmt.Errorf("failed to describe TTL of table %s: %w", c.tableName, err)
	}

	if ttlResponse.TimeToLiveDescription == nil {
		return fmt.Errorf("table %s has no TTL description", c.tableName)
	}

	if ttlResponse.TimeToLiveDescription.TimeToLiveStatus != dynamodbtypes.TimeToLiveStatusEnabled {
		return fmt.Errorf("table %s has TTL status %s (expected %s)", c.tableName, ttlResponse.TimeToLiveDescription.TimeToLiveStatus, dynamodbtypes.TimeToLiveStatusEnabled)
	}

	if aws.ToString(ttlResponse.TimeToLiveDescription.AttributeName) != TTLAttr {
		return fmt.Errorf("TTL attribute name for table %s is %s, expected %s", c.tableName, aws.ToString(ttlResponse.TimeToLiveDescription.AttributeName), TTLAttr)
	}

	if err := verifySecondaryIndex(response.Table, GSI1, GSI1PartitionKey, GSI1SortKey); err != nil {
		return err
	}

	if err := verifySecondaryIndex(response.Table, GSI2, GSI2PartitionKey, GSI2SortKey); err != nil {
		return err
	}

	return verifySecondaryIndex(response.Table, GSI3, GSI3PartitionKey, GSI3SortKey)
}

// DropAllData deletes every item from the DynamoDB table. It scans the table
// in pages and removes each page with the same bounded batch writer used by
// element replacement.
//
// This method is intended for use in tests only. Do not call it in production.
func (c *Client) DropAllData(ctx context.Context) error {
	input := &dynamodb.ScanInput{
		TableName:            aws.String(c.tableName),
		ProjectionExpression: aws.String("pk, sk"),
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		output, err := c.client.Scan(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to scan DynamoDB table %s: %w", c.tableName, err)
		}

		if err := c.writeBatches(ctx, deleteRequests(output.Items)); err != nil {
			return err
		}

		if len(output.LastEvaluatedKey) == 0 {
			break
		}

		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	return nil
}

func verifySecondaryIndex(table *dynamodbtypes.TableDescription, indexName, partitionKey, sortKey string) error {
	for _, index := range table.GlobalSecondaryIndexes {
		if aws.ToString(index.IndexName) != indexName {
			continue
		}

		if len(index.KeySchema) < 1 || aws.ToString(index.KeySchema[0].AttributeName) != partitionKey {
			return fmt.Errorf("global secondary index %s has no partition key %s", indexName, partitionKey)
		}

		if len(index.KeySchema) != 2 {
			return fmt.Errorf("global secondary index %s has a simple primary key, expected a composite primary key", indexName)
		}

		if aws.ToString(index.KeySchema[1].AttributeName) != sortKey {
			return fmt.Errorf("global secondary index %s has sort key %s, expected %s", indexName, aws.ToString(index.KeySchema[1].AttributeName), sortKey)
		}

		if index.IndexStatus != dynamodbtypes.IndexStatusActive {
			return fmt.Errorf("global secondary index %s is not active (status: %s)", indexName, index.IndexStatus)
		}

		if index.Projection == nil || index.Projection.ProjectionType != dynamodbtypes.ProjectionTypeAll {
			return fmt.Errorf("global secondary index %s must project %s attributes", indexName, dynamodbtypes.ProjectionTypeAll)
		}

		return nil
	}

	return fmt.Errorf("global secondary index %s not found", indexName)
}

// getStringValue extracts the string value from a DynamoDB AttributeValue.
// It returns an empty string if the AttributeValue is not of type AttributeValueMemberS.
func getStringValue(attr dynamodbtypes.AttributeValue) string {
	if attrValue, ok := attr.(*dynamodbtypes.AttributeValueMemberS); ok {
		return attrValue.Value
	}

	return ""
}
