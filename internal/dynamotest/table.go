// Package dynamotest provides an in-memory stand-in for the DynamoDB API
// used by the store. It understands the small expression dialect the store
// writes (key conditions, filters, conditions and SET updates) and keeps
// items in a single table with the three secondary indexes.
package dynamotest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is a single table record.
type Item = map[string]types.AttributeValue

var indexKeys = map[string][2]string{
	"":     {"pk", "sk"},
	"GSI1": {"gsi1pk", "gsi1sk"},
	"GSI2": {"gsi2pk", "gsi2sk"},
	"GSI3": {"gsi3pk", "gsi3sk"},
}

// Table is an in-memory DynamoDB table. The zero value is not usable; call
// [NewTable].
type Table struct {
	mu    sync.Mutex
	name  string
	items map[string]Item
	errs  map[string]error
	calls map[string]int

	// Unprocessed, when set, is called for every BatchWriteItem call with
	// the 1-based call number and returns how many of the trailing requests
	// to hand back as unprocessed.
	Unprocessed func(call int, requests []types.WriteRequest) int
}

// NewTable returns an empty table with the given name.
func NewTable(name string) *Table {
	return &Table{
		name:  name,
		items: make(map[string]Item),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

// FailWith makes every subsequent call of operation op return err. A nil
// err clears the failure.
func (t *Table) FailWith(op string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err == nil {
		delete(t.errs, op)
		return
	}

	t.errs[op] = err
}

// Calls returns how many times operation op has been invoked.
func (t *Table) Calls(op string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.calls[op]
}

// Put stores item directly, bypassing conditions.
func (t *Table) Put(item Item) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.items[itemKey(item)] = clone(item)
}

// Get returns a copy of the item with the given primary key, or nil.
func (t *Table) Get(pk, sk string) Item {
	t.mu.Lock()
	defer t.mu.Unlock()

	item, ok := t.items[pk+"\x00"+sk]
	if !ok {
		return nil
	}

	return clone(item)
}

// Items returns copies of every stored item whose partition key is pk, in
// sort key order. An empty pk returns the whole table.
func (t *Table) Items(pk string) []Item {
	t.mu.Lock()
	defer t.mu.Unlock()

	var items []Item
	for _, item := range t.sorted("") {
		if pk == "" || str(item["pk"]) == pk {
			items = append(items, clone(item))
		}
	}

	return items
}

// Len returns the number of stored items.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.items)
}

func (t *Table) enter(op string) error {
	t.mu.Lock()
	t.calls[op]++

	return t.errs[op]
}

func (t *Table) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	err := t.enter("GetItem")
	defer t.mu.Unlock()

	if err != nil {
		return nil, err
	}

	item, ok := t.items[itemKey(params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}

	return &dynamodb.GetItemOutput{Item: clone(item)}, nil
}

func (t *Table) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	err := t.enter("PutItem")
	defer t.mu.Unlock()

	if err != nil {
		return nil, err
	}

	ok, err := t.check(params.Item, params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, conditionFailed()
	}

	t.items[itemKey(params.Item)] = clone(params.Item)

	return &dynamodb.PutItemOutput{}, nil
}

func (t *Table) UpdateItem(_ context.Context, params *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	err := t.enter("UpdateItem")
	defer t.mu.Unlock()

	if err != nil {
		return nil, err
	}

	ok, err := t.check(params.Key, params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, conditionFailed()
	}

	updated, err := t.update(params.Key, aws.ToString(params.UpdateExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}

	output := &dynamodb.UpdateItemOutput{}
	if params.ReturnValues == types.ReturnValueAllNew {
		output.Attributes = clone(updated)
	}

	return output, nil
}

func (t *Table) DeleteItem(_ context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	err := t.enter("DeleteItem")
	defer t.mu.Unlock()

	if err != nil {
		return nil, err
	}

	ok, err := t.check(params.Key, params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, conditionFailed()
	}

	delete(t.items, itemKey(params.Key))

	return &dynamodb.DeleteItemOutput{}, nil
}

func (t *Table) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	err := t.enter("Query")
	defer t.mu.Unlock()

	if err != nil {
		return nil, err
	}

	index := aws.ToString(params.IndexName)
	if _, ok := indexKeys[index]; !ok {
		return nil, fmt.Errorf("unknown index %q", index)
	}

	keyCond, err := parseCondition(aws.ToString(params.KeyConditionExpression))
	if err != nil {
		return nil, err
	}

	filter, err := parseCondition(aws.ToString(params.FilterExpression))
	if err != nil {
		return nil, err
	}

	var candidates []Item
	for _, item := range t.sorted(index) {
		match, err := keyCond.eval(item, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if match {
			candidates = append(candidates, item)
		}
	}

	forward := params.ScanIndexForward == nil || *params.ScanIndexForward
	if !forward {
		for i, j := 0, len(candidates)-1; i < j; i, j = i+1, j-1 {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		}
	}

	page, last, err := paginate(candidates, index, forward, params.ExclusiveStartKey, params.Limit, filter, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}

	return &dynamodb.QueryOutput{
		Items:            project(page, aws.ToString(params.ProjectionExpression), params.ExpressionAttributeNames),
		Count:            int32(len(page)),
		LastEvaluatedKey: last,
	}, nil
}

func (t *Table) Scan(_ context.Context, params *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	err := t.enter("Scan")
	defer t.mu.Unlock()

	if err != nil {
		return nil, err
	}

	filter, err := parseCondition(aws.ToString(params.FilterExpression))
	if err != nil {
		return nil, err
	}

	page, last, err := paginate(t.sorted(""), "", true, params.ExclusiveStartKey, params.Limit, filter, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}

	return &dynamodb.ScanOutput{
		Items:            project(page, aws.ToString(params.ProjectionExpression), params.ExpressionAttributeNames),
		Count:            int32(len(page)),
		LastEvaluatedKey: last,
	}, nil
}

func (t *Table) BatchWriteItem(_ context.Context, params *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	err := t.enter("BatchWriteItem")
	defer t.mu.Unlock()

	if err != nil {
		return nil, err
	}

	unprocessed := make(map[string][]types.WriteRequest)

	for table, requests := range params.RequestItems {
		if table != t.name {
			return nil, &types.ResourceNotFoundException{Message: aws.String("table not found: " + table)}
		}

		if len(requests) > 25 {
			return nil, fmt.Errorf("batch of %d requests exceeds the limit of 25", len(requests))
		}

		skip := 0
		if t.Unprocessed != nil {
			skip = min(max(t.Unprocessed(t.calls["BatchWriteItem"], requests), 0), len(requests))
		}

		applied := requests[:len(requests)-skip]
		for _, request := range applied {
			switch {
			case request.PutRequest != nil:
				t.items[itemKey(request.PutRequest.Item)] = clone(request.PutRequest.Item)
			case request.DeleteRequest != nil:
				delete(t.items, itemKey(request.DeleteRequest.Key))
			}
		}

		if skip > 0 {
			unprocessed[table] = append([]types.WriteRequest(nil), requests[len(requests)-skip:]...)
		}
	}

	return &dynamodb.BatchWriteItemOutput{UnprocessedItems: unprocessed}, nil
}

func (t *Table) TransactWriteItems(_ context.Context, params *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	err := t.enter("TransactWriteItems")
	defer t.mu.Unlock()

	if err != nil {
		return nil, err
	}

	reasons := make([]types.CancellationReason, len(params.TransactItems))
	cancelled := false

	for i, op := range params.TransactItems {
		var (
			key    Item
			cond   *string
			names  map[string]string
			values map[string]types.AttributeValue
		)

		switch {
		case op.Put != nil:
			key, cond, names, values = op.Put.Item, op.Put.ConditionExpression, op.Put.ExpressionAttributeNames, op.Put.ExpressionAttributeValues
		case op.Update != nil:
			key, cond, names, values = op.Update.Key, op.Update.ConditionExpression, op.Update.ExpressionAttributeNames, op.Update.ExpressionAttributeValues
		case op.Delete != nil:
			key, cond, names, values = op.Delete.Key, op.Delete.ConditionExpression, op.Delete.ExpressionAttributeNames, op.Delete.ExpressionAttributeValues
		case op.ConditionCheck != nil:
			key, cond, names, values = op.ConditionCheck.Key, op.ConditionCheck.ConditionExpression, op.ConditionCheck.ExpressionAttributeNames, op.ConditionCheck.ExpressionAttributeValues
		}

		ok, err := t.check(key, cond, names, values)
		if err != nil {
			return nil, err
		}

		reasons[i] = types.CancellationReason{Code: aws.String("None")}
		if !ok {
			reasons[i] = types.CancellationReason{Code: aws.String("ConditionalCheckFailed")}
			cancelled = true
		}
	}

	if cancelled {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for _, op := range params.TransactItems {
		switch {
		case op.Put != nil:
			t.items[itemKey(op.Put.Item)] = clone(op.Put.Item)
		case op.Update != nil:
			if _, err := t.update(op.Update.Key, aws.ToString(op.Update.UpdateExpression), op.Update.ExpressionAttributeNames, op.Update.ExpressionAttributeValues); err != nil {
				return nil, err
			}
		case op.Delete != nil:
			delete(t.items, itemKey(op.Delete.Key))
		}
	}

	return &dynamodb.TransactWriteItemsOutput{}, nil
}

// DescribeTable reports the schema the store expects.
func (t *Table) DescribeTable(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	err := t.enter("DescribeTable")
	defer t.mu.Unlock()

	if err != nil {
		return nil, err
	}

	var indexes []types.GlobalSecondaryIndexDescription
	for _, name := range []string{"GSI1", "GSI2", "GSI3"} {
		k := indexKeys[name]
		indexes = append(indexes, types.GlobalSecondaryIndexDescription{
			IndexName: aws.String(name),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(k[0]), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(k[1]), KeyType: types.KeyTypeRange},
			},
			IndexStatus: types.IndexStatusActive,
			Projection:  &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}

	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{
			TableName:   aws.String(t.name),
			TableStatus: types.TableStatusActive,
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
			},
			GlobalSecondaryIndexes: indexes,
			StreamSpecification: &types.StreamSpecification{
				StreamEnabled:  aws.Bool(true),
				StreamViewType: types.StreamViewTypeNewAndOldImages,
			},
		},
	}, nil
}

func (t *Table) DescribeTimeToLive(_ context.Context, _ *dynamodb.DescribeTimeToLiveInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error) {
	err := t.enter("DescribeTimeToLive")
	defer t.mu.Unlock()

	if err != nil {
		return nil, err
	}

	return &dynamodb.DescribeTimeToLiveOutput{
		TimeToLiveDescription: &types.TimeToLiveDescription{
			AttributeName:    aws.String("ttl"),
			TimeToLiveStatus: types.TimeToLiveStatusEnabled,
		},
	}, nil
}

func (t *Table) check(key Item, expr *string, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	if aws.ToString(expr) == "" {
		return true, nil
	}

	cond, err := parseCondition(aws.ToString(expr))
	if err != nil {
		return false, err
	}

	existing, ok := t.items[itemKey(key)]
	if !ok {
		existing = Item{}
	}

	return cond.eval(existing, names, values)
}

// update applies a "SET a = :x, #b = :y" expression, creating the item
// from its key when it does not exist yet.
func (t *Table) update(key Item, expr string, names map[string]string, values map[string]types.AttributeValue) (Item, error) {
	k := itemKey(key)

	item, ok := t.items[k]
	if !ok {
		item = Item{"pk": key["pk"], "sk": key["sk"]}
	} else {
		item = clone(item)
	}

	body, ok := strings.CutPrefix(strings.TrimSpace(expr), "SET ")
	if !ok {
		return nil, fmt.Errorf("unsupported update expression %q", expr)
	}

	for _, assignment := range strings.Split(body, ",") {
		name, placeholder, ok := strings.Cut(assignment, "=")
		if !ok {
			return nil, fmt.Errorf("unsupported update clause %q", assignment)
		}

		value, ok := values[strings.TrimSpace(placeholder)]
		if !ok {
			return nil, fmt.Errorf("missing value for %q", placeholder)
		}

		item[resolveName(strings.TrimSpace(name), names)] = value
	}

	t.items[k] = item

	return item, nil
}

// sorted returns the items present in index, ordered by the index keys and
// then by the table keys.
func (t *Table) sorted(index string) []Item {
	k := indexKeys[index]

	items := make([]Item, 0, len(t.items))
	for _, item := range t.items {
		if _, ok := item[k[0]]; ok {
			items = append(items, item)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return position(items[i], index) < position(items[j], index)
	})

	return items
}

// position renders the ordering of item within index as a single string.
func position(item Item, index string) string {
	k := indexKeys[index]

	return strings.Join([]string{str(item[k[0]]), str(item[k[1]]), str(item["pk"]), str(item["sk"])}, "\x00")
}

// paginate applies ExclusiveStartKey, Limit and the filter in DynamoDB
// order: the limit counts evaluated items, before filtering. Items must
// already be in iteration order.
func paginate(items []Item, index string, forward bool, start Item, limit *int32, filter *condition, names map[string]string, values map[string]types.AttributeValue) ([]Item, Item, error) {
	if len(start) > 0 {
		from := position(start, index)
		remaining := items[:0:0]

		for _, item := range items {
			p := position(item, index)
			if (forward && p > from) || (!forward && p < from) {
				remaining = append(remaining, item)
			}
		}

		items = remaining
	}

	var last Item
	if limit != nil && int(*limit) < len(items) {
		items = items[:*limit]
		last = lastKey(items[len(items)-1], index)
	}

	page := make([]Item, 0, len(items))
	for _, item := range items {
		match, err := filter.eval(item, names, values)
		if err != nil {
			return nil, nil, err
		}
		if match {
			page = append(page, clone(item))
		}
	}

	return page, last, nil
}

func lastKey(item Item, index string) Item {
	key := Item{"pk": item["pk"], "sk": item["sk"]}

	if index != "" {
		k := indexKeys[index]
		key[k[0]] = item[k[0]]
		key[k[1]] = item[k[1]]
	}

	return key
}

func project(items []Item, expr string, names map[string]string) []Item {
	if expr == "" {
		return items
	}

	var attrs []string
	for _, name := range strings.Split(expr, ",") {
		attrs = append(attrs, resolveName(strings.TrimSpace(name), names))
	}

	projected := make([]Item, 0, len(items))
	for _, item := range items {
		out := Item{}
		for _, attr := range attrs {
			if v, ok := item[attr]; ok {
				out[attr] = v
			}
		}
		projected = append(projected, out)
	}

	return projected
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func itemKey(item Item) string {
	return str(item["pk"]) + "\x00" + str(item["sk"])
}

func str(v types.AttributeValue) string {
	switch v := v.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	default:
		return ""
	}
}

func clone(item Item) Item {
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = v
	}

	return out
}
