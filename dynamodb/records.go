package dynamodb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/keys"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/types"
)

type teamRecord struct {
	PK        string `dynamodbav:"pk"`
	SK        string `dynamodbav:"sk"`
	TeamID    string `dynamodbav:"teamId"`
	Name      string `dynamodbav:"name"`
	CreatedAt string `dynamodbav:"createdAt"`
	UpdatedAt string `dynamodbav:"updatedAt"`
}

type memberRecord struct {
	PK       string `dynamodbav:"pk"`
	SK       string `dynamodbav:"sk"`
	TeamID   string `dynamodbav:"teamId"`
	UserID   string `dynamodbav:"userId"`
	Role     string `dynamodbav:"role"`
	JoinedAt string `dynamodbav:"joinedAt"`
	GSI2PK   string `dynamodbav:"gsi2pk"`
	GSI2SK   string `dynamodbav:"gsi2sk"`
}

type boardRecord struct {
	PK          string `dynamodbav:"pk"`
	SK          string `dynamodbav:"sk"`
	TeamID      string `dynamodbav:"teamId"`
	BoardID     string `dynamodbav:"boardId"`
	Name        string `dynamodbav:"name"`
	Status      string `dynamodbav:"status"`
	CreatedAt   string `dynamodbav:"createdAt"`
	UpdatedAt   string `dynamodbav:"updatedAt"`
	OwnerUserID string `dynamodbav:"ownerUserId,omitempty"`
}

type trashRecord struct {
	PK        string `dynamodbav:"pk"`
	SK        string `dynamodbav:"sk"`
	TeamID    string `dynamodbav:"teamId"`
	BoardID   string `dynamodbav:"boardId"`
	Name      string `dynamodbav:"name"`
	Status    string `dynamodbav:"status"`
	CreatedAt string `dynamodbav:"createdAt"`
	UpdatedAt string `dynamodbav:"updatedAt"`
	DeletedAt string `dynamodbav:"deletedAt"`
	GSI3PK    string `dynamodbav:"gsi3pk"`
	GSI3SK    string `dynamodbav:"gsi3sk"`
}

type elementRecord struct {
	PK           string `dynamodbav:"pk"`
	SK           string `dynamodbav:"sk"`
	TeamID       string `dynamodbav:"teamId"`
	BoardID      string `dynamodbav:"boardId"`
	ElementID    string `dynamodbav:"elementId"`
	ElementIndex int    `dynamodbav:"elementIndex"`
	ElementData  any    `dynamodbav:"elementData"`
	UpdatedAt    string `dynamodbav:"updatedAt"`
	GSI1PK       string `dynamodbav:"gsi1pk"`
	GSI1SK       string `dynamodbav:"gsi1sk"`
}

type sessionRecord struct {
	PK           string `dynamodbav:"pk"`
	SK           string `dynamodbav:"sk"`
	TeamID       string `dynamodbav:"teamId"`
	BoardID      string `dynamodbav:"boardId"`
	ConnectionID string `dynamodbav:"connectionId"`
	UserID       string `dynamodbav:"userId,omitempty"`
	ConnectedAt  string `dynamodbav:"connectedAt"`
	TTL          int64  `dynamodbav:"ttl"`
	GSI2PK       string `dynamodbav:"gsi2pk"`
	GSI2SK       string `dynamodbav:"gsi2sk"`
}

func (r *teamRecord) team() *types.Team {
	return &types.Team{
		ID:        r.TeamID,
		Name:      r.Name,
		CreatedAt: parseTime(r.CreatedAt),
		UpdatedAt: parseTime(r.UpdatedAt),
	}
}

func (r *memberRecord) member() types.Member {
	return types.Member{
		TeamID:   r.TeamID,
		UserID:   r.UserID,
		Role:     types.Role(r.Role),
		JoinedAt: parseTime(r.JoinedAt),
	}
}

func (r *boardRecord) board() *types.Board {
	return &types.Board{
		TeamID:      r.TeamID,
		ID:          r.BoardID,
		Name:        r.Name,
		Status:      types.BoardStatus(r.Status),
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
		OwnerUserID: r.OwnerUserID,
	}
}

func (r *trashRecord) trashedBoard() types.TrashedBoard {
	return types.TrashedBoard{
		TeamID:    r.TeamID,
		ID:        r.BoardID,
		Name:      r.Name,
		Status:    r.Status,
		CreatedAt: parseTime(r.CreatedAt),
		UpdatedAt: parseTime(r.UpdatedAt),
		DeletedAt: parseTime(r.DeletedAt),
	}
}

func (r *sessionRecord) session() types.Session {
	return types.Session{
		BoardID:      r.BoardID,
		ConnectionID: r.ConnectionID,
		TeamID:       r.TeamID,
		UserID:       r.UserID,
		ConnectedAt:  parseTime(r.ConnectedAt),
		ExpiresAt:    time.Unix(r.TTL, 0).UTC(),
	}
}

// newElementRecord stores the element as a native map so its fields stay
// readable in the console and in stream images. Numbers are stored with
// their original digits.
func newElementRecord(teamID, boardID, elementID string, index int, element types.Element, updatedAt string) (map[string]dynamodbtypes.AttributeValue, error) {
	dec := json.NewDecoder(bytes.NewReader(element))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: element %s is not valid JSON", types.ErrInvalidInput, elementID)
	}

	record := elementRecord{
		PK:           keys.BoardPK(boardID),
		SK:           keys.ElementSK(elementID),
		TeamID:       teamID,
		BoardID:      boardID,
		ElementID:    elementID,
		ElementIndex: index,
		ElementData:  toAttributeNumbers(data),
		UpdatedAt:    updatedAt,
		GSI1PK:       keys.GSI1PK(boardID),
		GSI1SK:       keys.GSI1SK(index),
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal element %s: %w", elementID, err)
	}

	return item, nil
}

func elementFromItem(item map[string]dynamodbtypes.AttributeValue) (types.Element, error) {
	var record elementRecord

	err := attributevalue.UnmarshalMapWithOptions(item, &record, func(o *attributevalue.DecoderOptions) {
		o.UseNumber = true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal element record: %w", err)
	}

	data, err := json.Marshal(toJSONNumbers(record.ElementData))
	if err != nil {
		return nil, fmt.Errorf("failed to encode element %s: %w", record.ElementID, err)
	}

	return types.Element(data), nil
}

// toAttributeNumbers rewrites the json.Number leaves of a decoded document
// as attributevalue.Number so they marshal to N values.
func toAttributeNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		return attributevalue.Number(v)
	case map[string]any:
		for k, e := range v {
			v[k] = toAttributeNumbers(e)
		}
	case []any:
		for i, e := range v {
			v[i] = toAttributeNumbers(e)
		}
	}

	return v
}

// toJSONNumbers is the inverse of toAttributeNumbers.
func toJSONNumbers(v any) any {
	switch v := v.(type) {
	case attributevalue.Number:
		return json.Number(v)
	case map[string]any:
		for k, e := range v {
			v[k] = toJSONNumbers(e)
		}
	case []any:
		for i, e := range v {
			v[i] = toJSONNumbers(e)
		}
	}

	return v
}

func unmarshalItems[T any](items []map[string]dynamodbtypes.AttributeValue) ([]T, error) {
	records := make([]T, 0, len(items))

	if err := attributevalue.UnmarshalListOfMaps(items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal records: %w", err)
	}

	return records, nil
}

// parseTime reads a stored timestamp. Malformed values read as the zero time.
func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}

	return t.UTC()
}

func keyOf(pk, sk string) map[string]dynamodbtypes.AttributeValue {
	return map[string]dynamodbtypes.AttributeValue{
		PartitionKey: &dynamodbtypes.AttributeValueMemberS{Value: pk},
		SortKey:      &dynamodbtypes.AttributeValueMemberS{Value: sk},
	}
}

func stringValue(value string) *dynamodbtypes.AttributeValueMemberS {
	return &dynamodbtypes.AttributeValueMemberS{Value: value}
}
