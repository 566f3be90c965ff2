package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Stream event names.
const (
	EventInsert = "INSERT"
	EventModify = "MODIFY"
	EventRemove = "REMOVE"
)

// ChangeRecord is one row-level mutation from the table's change stream.
type ChangeRecord struct {
	EventID   string
	EventName string
	Keys      map[string]dynamodbtypes.AttributeValue
	NewImage  map[string]dynamodbtypes.AttributeValue
	OldImage  map[string]dynamodbtypes.AttributeValue
}

// image returns the record state that describes the change: the old image
// for removals, the new image otherwise.
func (r *ChangeRecord) image() map[string]dynamodbtypes.AttributeValue {
	if r.EventName == EventRemove || len(r.NewImage) == 0 {
		return r.OldImage
	}
	return r.NewImage
}

// FromLambdaEvent converts the records of a stream-triggered Lambda
// invocation. Records that cannot be converted are left out and reported
// together in the returned error; the others are still returned.
func FromLambdaEvent(event events.DynamoDBEvent) ([]ChangeRecord, error) {
	records := make([]ChangeRecord, 0, len(event.Records))

	var errs []error

	for _, r := range event.Records {
		record, err := fromEventRecord(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, record)
	}

	return records, errors.Join(errs...)
}

// DecodeRecord parses one stream record serialized as JSON, the shape an
// EventBridge pipe forwards to the change queue.
func DecodeRecord(body []byte) (ChangeRecord, error) {
	var r events.DynamoDBEventRecord

	if err := json.Unmarshal(body, &r); err != nil {
		return ChangeRecord{}, fmt.Errorf("failed to decode stream record: %w", err)
	}

	return fromEventRecord(r)
}

func fromEventRecord(r events.DynamoDBEventRecord) (ChangeRecord, error) {
	keys, err := convertMap(r.Change.Keys)
	if err != nil {
		return ChangeRecord{}, fmt.Errorf("record %s keys: %w", r.EventID, err)
	}

	newImage, err := convertMap(r.Change.NewImage)
	if err != nil {
		return ChangeRecord{}, fmt.Errorf("record %s new image: %w", r.EventID, err)
	}

	oldImage, err := convertMap(r.Change.OldImage)
	if err != nil {
		return ChangeRecord{}, fmt.Errorf("record %s old image: %w", r.EventID, err)
	}

	return ChangeRecord{
		EventID:   r.EventID,
		EventName: r.EventName,
		Keys:      keys,
		NewImage:  newImage,
		OldImage:  oldImage,
	}, nil
}

func convertMap(in map[string]events.DynamoDBAttributeValue) (map[string]dynamodbtypes.AttributeValue, error) {
	if len(in) == 0 {
		return nil, nil
	}

	out := make(map[string]dynamodbtypes.AttributeValue, len(in))

	for name, value := range in {
		converted, err := convertValue(value)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		out[name] = converted
	}

	return out, nil
}

func convertValue(v events.DynamoDBAttributeValue) (dynamodbtypes.AttributeValue, error) {
	switch v.DataType() {
	case events.DataTypeString:
		return &dynamodbtypes.AttributeValueMemberS{Value: v.String()}, nil
	case events.DataTypeNumber:
		return &dynamodbtypes.AttributeValueMemberN{Value: v.Number()}, nil
	case events.DataTypeBinary:
		return &dynamodbtypes.AttributeValueMemberB{Value: v.Binary()}, nil
	case events.DataTypeBoolean:
		return &dynamodbtypes.AttributeValueMemberBOOL{Value: v.Boolean()}, nil
	case events.DataTypeNull:
		return &dynamodbtypes.AttributeValueMemberNULL{Value: true}, nil
	case events.DataTypeStringSet:
		return &dynamodbtypes.AttributeValueMemberSS{Value: v.StringSet()}, nil
	case events.DataTypeNumberSet:
		return &dynamodbtypes.AttributeValueMemberNS{Value: v.NumberSet()}, nil
	case events.DataTypeBinarySet:
		return &dynamodbtypes.AttributeValueMemberBS{Value: v.BinarySet()}, nil
	case events.DataTypeList:
		list := v.List()
		out := make([]dynamodbtypes.AttributeValue, 0, len(list))
		for _, item := range list {
			converted, err := convertValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return &dynamodbtypes.AttributeValueMemberL{Value: out}, nil
	case events.DataTypeMap:
		m, err := convertMap(v.Map())
		if err != nil {
			return nil, err
		}
		if m == nil {
			m = map[string]dynamodbtypes.AttributeValue{}
		}
		return &dynamodbtypes.AttributeValueMemberM{Value: m}, nil
	default:
		return nil, fmt.Errorf("unsupported attribute data type %v", v.DataType())
	}
}
