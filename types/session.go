package types

import (
	"encoding/json"
	"time"
)

// DefaultSessionTimeToLive is the lease a session gets at connect time.
const DefaultSessionTimeToLive = time.Hour

// Session binds one push connection to one board.
type Session struct {
	BoardID      string    `json:"boardId"`
	ConnectionID string    `json:"connectionId"`
	TeamID       string    `json:"teamId"`
	UserID       string    `json:"userId,omitempty"`
	ConnectedAt  time.Time `json:"connectedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// ElementUpdateType is the type field of every element change notification.
const ElementUpdateType = "elementUpdate"

// ElementUpdate is pushed to every session of a board when one of its
// element records changes. Clients react by re-fetching the board.
type ElementUpdate struct {
	Type      string `json:"type"`
	BoardID   string `json:"boardId"`
	ElementID string `json:"elementId,omitempty"`
	EventKind string `json:"eventName"`
	UpdatedAt string `json:"updatedAt,omitempty"`
	TeamID    string `json:"teamId,omitempty"`
}

// PingAction is the reserved relay action answered without fan-out.
const PingAction = "ping"

// RelayMessage is an inbound websocket message from a registered connection.
type RelayMessage struct {
	Action  string          `json:"action"`
	BoardID string          `json:"boardId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RelayEnvelope is what peers receive for a relayed message: the original
// message with the board and the sending connection filled in.
type RelayEnvelope struct {
	Action       string          `json:"action"`
	BoardID      string          `json:"boardId"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	ConnectionID string          `json:"connectionId"`
}
