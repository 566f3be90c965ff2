package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MaxElementsPerBoard is the maximum number of live elements a board may hold.
const MaxElementsPerBoard = 5000

// Element is one opaque drawable unit of a board: a JSON object with at
// least a string "id" field. Its remaining structure belongs to the client.
type Element json.RawMessage

// MarshalJSON returns e unchanged.
func (e Element) MarshalJSON() ([]byte, error) {
	if e == nil {
		return []byte("null"), nil
	}

	return e, nil
}

// UnmarshalJSON stores a copy of data.
func (e *Element) UnmarshalJSON(data []byte) error {
	if e == nil {
		return fmt.Errorf("%w: element is nil", ErrInvalidInput)
	}

	*e = append((*e)[0:0], data...)

	return nil
}

// ID returns the element's "id" field. The error wraps [ErrInvalidInput]
// when the element is not a JSON object or its id is missing, not a
// string, or blank.
func (e Element) ID() (string, error) {
	var probe struct {
		ID any `json:"id"`
	}

	if len(e) == 0 {
		return "", fmt.Errorf("%w: element is empty", ErrInvalidInput)
	}

	if err := json.Unmarshal(e, &probe); err != nil {
		return "", fmt.Errorf("%w: element must be a JSON object", ErrInvalidInput)
	}

	id, ok := probe.ID.(string)
	if !ok || strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: each element must include a non-empty string id", ErrInvalidInput)
	}

	return id, nil
}

// ElementIDs validates a full replacement set and returns the id of every
// element in order. It fails without side effects when the set exceeds
// [MaxElementsPerBoard], when any element has an invalid id, or when two
// elements share an id.
func ElementIDs(elements []Element) ([]string, error) {
	if len(elements) > MaxElementsPerBoard {
		return nil, fmt.Errorf("%w: board element limit exceeded (max %d)", ErrInvalidInput, MaxElementsPerBoard)
	}

	ids := make([]string, len(elements))
	seen := make(map[string]int, len(elements))

	for i, element := range elements {
		id, err := element.ID()
		if err != nil {
			return nil, fmt.Errorf("element at index %d: %w", i, err)
		}

		if first, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate element id %q at index %d and %d", ErrInvalidInput, id, first, i)
		}

		seen[id] = i
		ids[i] = id
	}

	return ids, nil
}
