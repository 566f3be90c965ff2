package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAPI is a mock implementation of API for testing.
type mockAPI struct {
	getItemFunc            func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	putItemFunc            func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	updateItemFunc         func(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	deleteItemFunc         func(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	queryFunc              func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	scanFunc               func(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	batchWriteItemFunc     func(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	transactWriteItemFunc  func(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	describeTableFunc      func(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	describeTimeToLiveFunc func(ctx context.Context, params *dynamodb.DescribeTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error)
}

func (m *mockAPI) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getItemFunc != nil {
		return m.getItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockAPI) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if m.putItemFunc != nil {
		return m.putItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockAPI) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if m.updateItemFunc != nil {
		return m.updateItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *mockAPI) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if m.deleteItemFunc != nil {
		return m.deleteItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (m *mockAPI) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, params, optFns...)
	}
	return &dynamodb.QueryOutput{}, nil
}

func (m *mockAPI) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if m.scanFunc != nil {
		return m.scanFunc(ctx, params, optFns...)
	}
	return &dynamodb.ScanOutput{}, nil
}

func (m *mockAPI) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if m.batchWriteItemFunc != nil {
		return m.batchWriteItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (m *mockAPI) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	if m.transactWriteItemFunc != nil {
		return m.transactWriteItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (m *mockAPI) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if m.describeTableFunc != nil {
		return m.describeTableFunc(ctx, params, optFns...)
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func (m *mockAPI) DescribeTimeToLive(ctx context.Context, params *dynamodb.DescribeTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error) {
	if m.describeTimeToLiveFunc != nil {
		return m.describeTimeToLiveFunc(ctx, params, optFns...)
	}
	return &dynamodb.DescribeTimeToLiveOutput{}, nil
}

func newTestClient(t *testing.T, mock *mockAPI, opts ...Option) *Client {
	t.Helper()

	opts = append([]Option{WithAPI(mock), WithBatchInitialBackoff(time.Millisecond)}, opts...)
	c := New(&aws.Config{}, "test-table", opts...)
	require.NoError(t, c.Connect())

	return c
}

func validTable() *dynamodbtypes.TableDescription {
	index := func(name, pk, sk string) dynamodbtypes.GlobalSecondaryIndexDescription {
		return dynamodbtypes.GlobalSecondaryIndexDescription{
			IndexName: aws.String(name),
			KeySchema: []dynamodbtypes.KeySchemaElement{
				{AttributeName: aws.String(pk), KeyType: dynamodbtypes.KeyTypeHash},
				{AttributeName: aws.String(sk), KeyType: dynamodbtypes.KeyTypeRange},
			},
			IndexStatus: dynamodbtypes.IndexStatusActive,
			Projection:  &dynamodbtypes.Projection{ProjectionType: dynamodbtypes.ProjectionTypeAll},
		}
	}

	return &dynamodbtypes.TableDescription{
		TableStatus: dynamodbtypes.TableStatusActive,
		KeySchema: []dynamodbtypes.KeySchemaElement{
			{AttributeName: aws.String(PartitionKey), KeyType: dynamodbtypes.KeyTypeHash},
			{AttributeName: aws.String(SortKey), KeyType: dynamodbtypes.KeyTypeRange},
		},
		StreamSpecification: &dynamodbtypes.StreamSpecification{
			StreamEnabled:  aws.Bool(true),
			StreamViewType: dynamodbtypes.StreamViewTypeNewAndOldImages,
		},
		GlobalSecondaryIndexes: []dynamodbtypes.GlobalSecondaryIndexDescription{
			index(GSI1, GSI1PartitionKey, GSI1SortKey),
			index(GSI2, GSI2PartitionKey, GSI2SortKey),
			index(GSI3, GSI3PartitionKey, GSI3SortKey),
		},
	}
}

func validTTL(_ context.Context, _ *dynamodb.DescribeTimeToLiveInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error) {
	return &dynamodb.DescribeTimeToLiveOutput{
		TimeToLiveDescription: &dynamodbtypes.TimeToLiveDescription{
			AttributeName:    aws.String(TTLAttr),
			TimeToLiveStatus: dynamodbtypes.TimeToLiveStatusEnabled,
		},
	}, nil
}

func TestConnect_InvalidOptions(t *testing.T) {
	t.Parallel()

	c := New(&aws.Config{}, "test-table", WithSessionTimeToLive(0))
	err := c.Connect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid DynamoDB options")

	c = New(&aws.Config{}, "test-table", WithBatchMaxRetries(21))
	require.Error(t, c.Connect())

	c = New(&aws.Config{}, "", WithAPI(&mockAPI{}))
	require.Error(t, c.Connect())
}

func TestConnect_UsesInjectedAPI(t *testing.T) {
	t.Parallel()

	mock := &mockAPI{}
	c := newTestClient(t, mock)
	assert.Same(t, mock, c.client)
	assert.Equal(t, "test-table", c.TableName())
}

func TestConnect_RealClientWithEndpoint(t *testing.T) {
	t.Parallel()

	c := New(&aws.Config{Region: "eu-west-1"}, "test-table", WithEndpoint("http://localhost:8000"))
	require.NoError(t, c.Connect())
	assert.NotNil(t, c.client)

	require.Error(t, New(nil, "test-table").Connect())
}

func TestInit_SkipSchemaValidation(t *testing.T) {
	t.Parallel()

	called := false
	mock := &mockAPI{
		describeTableFunc: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			called = true
			return nil, errors.New("should not be called")
		},
	}

	c := newTestClient(t, mock)
	require.NoError(t, c.Init(context.Background(), true))
	assert.False(t, called)
}

func TestInit_ValidSchema(t *testing.T) {
	t.Parallel()

	mock := &mockAPI{
		describeTableFunc: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return &dynamodb.DescribeTableOutput{Table: validTable()}, nil
		},
		describeTimeToLiveFunc: validTTL,
	}

	c := newTestClient(t, mock)
	require.NoError(t, c.Init(context.Background(), false))
}

func TestInit_TableNotFound(t *testing.T) {
	t.Parallel()

	mock := &mockAPI{
		describeTableFunc: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return nil, &dynamodbtypes.ResourceNotFoundException{Message: aws.String("missing")}
		},
	}

	c := newTestClient(t, mock)
	err := c.Init(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestInit_SchemaMismatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*dynamodbtypes.TableDescription)
		wantErr string
	}{
		{
			name:    "wrong partition key",
			mutate:  func(d *dynamodbtypes.TableDescription) { d.KeySchema[0].AttributeName = aws.String("id") },
			wantErr: "has partition key id",
		},
		{
			name:    "simple key",
			mutate:  func(d *dynamodbtypes.TableDescription) { d.KeySchema = d.KeySchema[:1] },
			wantErr: "simple primary key",
		},
		{
			name:    "not active",
			mutate:  func(d *dynamodbtypes.TableDescription) { d.TableStatus = dynamodbtypes.TableStatusCreating },
			wantErr: "is not active",
		},
		{
			name:    "stream disabled",
			mutate:  func(d *dynamodbtypes.TableDescription) { d.StreamSpecification = nil },
			wantErr: "no stream enabled",
		},
		{
			name: "keys only stream",
			mutate: func(d *dynamodbtypes.TableDescription) {
				d.StreamSpecification.StreamViewType = dynamodbtypes.StreamViewTypeKeysOnly
			},
			wantErr: "stream view type",
		},
		{
			name:    "missing index",
			mutate:  func(d *dynamodbtypes.TableDescription) { d.GlobalSecondaryIndexes = d.GlobalSecondaryIndexes[:2] },
			wantErr: "GSI3 not found",
		},
		{
			name: "keys only projection",
			mutate: func(d *dynamodbtypes.TableDescription) {
				d.GlobalSecondaryIndexes[0].Projection.ProjectionType = dynamodbtypes.ProjectionTypeKeysOnly
			},
			wantErr: "must project ALL",
		},
		{
			name: "wrong index sort key",
			mutate: func(d *dynamodbtypes.TableDescription) {
				d.GlobalSecondaryIndexes[1].KeySchema[1].AttributeName = aws.String("other")
			},
			wantErr: "has sort key other",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			table := validTable()
			tt.mutate(table)

			mock := &mockAPI{
				describeTableFunc: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
					return &dynamodb.DescribeTableOutput{Table: table}, nil
				},
				describeTimeToLiveFunc: validTTL,
			}

			c := newTestClient(t, mock)
			err := c.Init(context.Background(), false)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInit_TTLDisabled(t *testing.T) {
	t.Parallel()

	mock := &mockAPI{
		describeTableFunc: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return &dynamodb.DescribeTableOutput{Table: validTable()}, nil
		},
		describeTimeToLiveFunc: func(_ context.Context, _ *dynamodb.DescribeTimeToLiveInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error) {
			return &dynamodb.DescribeTimeToLiveOutput{
				TimeToLiveDescription: &dynamodbtypes.TimeToLiveDescription{
					TimeToLiveStatus: dynamodbtypes.TimeToLiveStatusDisabled,
				},
			}, nil
		},
	}

	c := newTestClient(t, mock)
	err := c.Init(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TTL status")
}

func TestWriteBatches_ChunksOf25(t *testing.T) {
	t.Parallel()

	var sizes []int
	mock := &mockAPI{
		batchWriteItemFunc: func(_ context.Context, params *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
			sizes = append(sizes, len(params.RequestItems["test-table"]))
			return &dynamodb.BatchWriteItemOutput{}, nil
		},
	}

	c := newTestClient(t, mock)
	requests := make([]dynamodbtypes.WriteRequest, 60)
	require.NoError(t, c.writeBatches(context.Background(), requests))
	assert.Equal(t, []int{25, 25, 10}, sizes)
}

func TestWriteBatch_RetriesUnprocessedItems(t *testing.T) {
	t.Parallel()

	calls := 0
	mock := &mockAPI{
		batchWriteItemFunc: func(_ context.Context, params *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
			calls++
			requests := params.RequestItems["test-table"]
			if calls < 3 {
				return &dynamodb.BatchWriteItemOutput{
					UnprocessedItems: map[string][]dynamodbtypes.WriteRequest{"test-table": requests[1:]},
				}, nil
			}
			return &dynamodb.BatchWriteItemOutput{}, nil
		},
	}

	c := newTestClient(t, mock)
	require.NoError(t, c.writeBatches(context.Background(), make([]dynamodbtypes.WriteRequest, 5)))
	assert.Equal(t, 3, calls)
}

func TestWriteBatch_ExhaustedRetriesAreTransient(t *testing.T) {
	t.Parallel()

	calls := 0
	mock := &mockAPI{
		batchWriteItemFunc: func(_ context.Context, params *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
			calls++
			return &dynamodb.BatchWriteItemOutput{UnprocessedItems: params.RequestItems}, nil
		},
	}

	c := newTestClient(t, mock, WithBatchMaxRetries(2))
	err := c.writeBatches(context.Background(), make([]dynamodbtypes.WriteRequest, 3))
	require.ErrorIs(t, err, types.ErrTransient)
	assert.Equal(t, 3, calls)
}

func TestWriteBatch_APIError(t *testing.T) {
	t.Parallel()

	mock := &mockAPI{
		batchWriteItemFunc: func(_ context.Context, _ *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
			return nil, errors.New("throttled")
		},
	}

	c := newTestClient(t, mock)
	err := c.writeBatches(context.Background(), make([]dynamodbtypes.WriteRequest, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestWriteBatch_ContextCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	mock := &mockAPI{
		batchWriteItemFunc: func(_ context.Context, params *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
			cancel()
			return &dynamodb.BatchWriteItemOutput{UnprocessedItems: params.RequestItems}, nil
		},
	}

	c := newTestClient(t, mock)
	err := c.writeBatches(ctx, make([]dynamodbtypes.WriteRequest, 1))
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsConditionFailed(t *testing.T) {
	t.Parallel()

	assert.True(t, isConditionFailed(&dynamodbtypes.ConditionalCheckFailedException{}))
	assert.True(t, isConditionFailed(&dynamodbtypes.TransactionCanceledException{
		CancellationReasons: []dynamodbtypes.CancellationReason{
			{Code: aws.String("None")},
			{Code: aws.String("ConditionalCheckFailed")},
		},
	}))
	assert.False(t, isConditionFailed(&dynamodbtypes.TransactionCanceledException{
		CancellationReasons: []dynamodbtypes.CancellationReason{{Code: aws.String("ThrottlingError")}},
	}))
	assert.False(t, isConditionFailed(errors.New("boom")))
}

func TestGetStringValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "x", getStringValue(&dynamodbtypes.AttributeValueMemberS{Value: "x"}))
	assert.Empty(t, getStringValue(&dynamodbtypes.AttributeValueMemberN{Value: "1"}))
	assert.Empty(t, getStringValue(nil))
}
