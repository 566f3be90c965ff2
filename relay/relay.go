// Package relay forwards ephemeral messages, such as cursor positions,
// between the sessions of one board. Nothing is persisted and delivery is
// best-effort.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nicholasgriffintn/aws-hosted-excalidraw/fanout"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/types"
)

// Sessions resolves the sender's session and its peers.
type Sessions interface {
	LookupByConnection(ctx context.Context, connectionID string) (*types.Session, error)
	ListSessions(ctx context.Context, boardID string) ([]types.Session, error)
}

// Result reports what happened to one inbound message.
type Result struct {
	Pong      bool
	BoardID   string
	Delivered int
	Report    fanout.Report
}

// Relay handles inbound websocket messages.
type Relay struct {
	sessions Sessions
	fanout   *fanout.Fanout
	logger   types.Logger
}

func New(sessions Sessions, f *fanout.Fanout, logger types.Logger) *Relay {
	return &Relay{
		sessions: sessions,
		fanout:   f,
		logger:   logger.WithField("component", "relay"),
	}
}

// Handle relays body from connectionID to every other session of the
// sender's board. The sender must have a registered session
// ([types.ErrInvalidSession] otherwise) and a boardId in the message, if
// present, must be the sender's board. A ping is acknowledged without any
// fan-out.
func (r *Relay) Handle(ctx context.Context, connectionID string, body []byte) (*Result, error) {
	var msg types.RelayMessage

	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: message must be a JSON object", types.ErrInvalidInput)
	}

	if strings.TrimSpace(msg.Action) == "" {
		return nil, fmt.Errorf("%w: action is required", types.ErrInvalidInput)
	}

	sender, err := r.sessions.LookupByConnection(ctx, connectionID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("connection %s: %w", connectionID, types.ErrInvalidSession)
		}
		return nil, err
	}

	if msg.BoardID != "" && msg.BoardID != sender.BoardID {
		return nil, fmt.Errorf("%w: boardId does not match the connection's board", types.ErrInvalidInput)
	}

	if msg.Action == types.PingAction {
		return &Result{Pong: true, BoardID: sender.BoardID}, nil
	}

	payload, err := json.Marshal(types.RelayEnvelope{
		Action:       msg.Action,
		BoardID:      sender.BoardID,
		Payload:      msg.Payload,
		ConnectionID: connectionID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode relay message: %w", err)
	}

	peers, err := r.sessions.ListSessions(ctx, sender.BoardID)
	if err != nil {
		return nil, err
	}

	report := r.fanout.Send(ctx, peers, payload, connectionID)

	r.logger.
		WithField("board_id", sender.BoardID).
		WithField("connection_id", connectionID).
		WithField("action", msg.Action).
		WithField("delivered", report.Delivered).
		Debug("Relayed message")

	return &Result{BoardID: sender.BoardID, Delivered: report.Delivered, Report: report}, nil
}
