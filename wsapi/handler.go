// Package wsapi adapts API Gateway websocket route events to the session
// registry and the message relay.
package wsapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/dynamodb"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/relay"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/types"
)

const (
	DefaultTeamID = "default"

	teamHeader = "x-excalidraw-team-id"
	userHeader = "x-excalidraw-user-id"
)

// Registry registers and removes sessions.
type Registry interface {
	RegisterSession(ctx context.Context, in dynamodb.SessionInput) (*types.Session, error)
	RemoveConnection(ctx context.Context, connectionID string) (int, error)
}

// Relayer handles inbound messages.
type Relayer interface {
	Handle(ctx context.Context, connectionID string, body []byte) (*relay.Result, error)
}

// Handler serves the $connect, $disconnect and $default routes. The relay
// may be nil in deployments that only register and remove sessions.
type Handler struct {
	registry Registry
	relay    Relayer
	logger   types.Logger
}

func New(registry Registry, relay Relayer, logger types.Logger) *Handler {
	return &Handler{
		registry: registry,
		relay:    relay,
		logger:   logger.WithField("component", "wsapi"),
	}
}

type connectData struct {
	BoardID      string    `json:"boardId"`
	TeamID       string    `json:"teamId"`
	ConnectionID string    `json:"connectionId"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Connect registers the connection against the board named by the boardId
// query parameter.
func (h *Handler) Connect(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := req.RequestContext.ConnectionID
	boardID := strings.TrimSpace(req.QueryStringParameters["boardId"])

	if boardID == "" {
		return respond(http.StatusBadRequest, types.Response{Message: "boardId query parameter is required", ErrorCode: types.KindInvalidInput.String()}), nil
	}

	in := dynamodb.SessionInput{
		TeamID:       teamID(req),
		BoardID:      boardID,
		ConnectionID: connectionID,
		UserID:       userID(req),
	}

	logger := h.logger.WithField("board_id", boardID).WithField("connection_id", connectionID)

	session, err := h.registry.RegisterSession(ctx, in)
	if err != nil {
		logger.Warnf("Failed to register session: %v", err)
		return failure(err), nil
	}

	logger.Info("Session registered")

	return respond(http.StatusOK, types.OK(connectData{
		BoardID:      session.BoardID,
		TeamID:       session.TeamID,
		ConnectionID: session.ConnectionID,
		ExpiresAt:    session.ExpiresAt,
	})), nil
}

// Disconnect removes every session of the connection. Removing nothing is
// not an error.
func (h *Handler) Disconnect(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := req.RequestContext.ConnectionID
	logger := h.logger.WithField("connection_id", connectionID)

	removed, err := h.registry.RemoveConnection(ctx, connectionID)
	if err != nil {
		logger.Errorf("Failed to remove sessions of connection: %v", err)
		return failure(err), nil
	}

	logger.WithField("removed", removed).Info("Connection closed")

	return respond(http.StatusOK, types.OK(map[string]int{"removed": removed})), nil
}

// Message relays the frame body to the other sessions of the sender's board.
func (h *Handler) Message(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := req.RequestContext.ConnectionID

	if h.relay == nil {
		return failure(errors.New("message relay is not configured")), nil
	}

	result, err := h.relay.Handle(ctx, connectionID, []byte(req.Body))
	if err != nil {
		h.logger.WithField("connection_id", connectionID).Warnf("Failed to relay message: %v", err)
		return failure(err), nil
	}

	if result.Pong {
		return respond(http.StatusOK, types.OK(map[string]string{"action": "pong"})), nil
	}

	return respond(http.StatusOK, types.OK(map[string]int{"delivered": result.Delivered})), nil
}

func teamID(req events.APIGatewayWebsocketProxyRequest) string {
	if v := header(req.Headers, teamHeader); v != "" {
		return v
	}

	for _, name := range []string{"teamId", "team_id"} {
		if v := strings.TrimSpace(req.QueryStringParameters[name]); v != "" {
			return v
		}
	}

	return DefaultTeamID
}

func userID(req events.APIGatewayWebsocketProxyRequest) string {
	if v := strings.TrimSpace(req.QueryStringParameters["userId"]); v != "" {
		return v
	}

	return header(req.Headers, userHeader)
}

// header looks name up case-insensitively.
func header(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}

	return ""
}

func failure(err error) events.APIGatewayProxyResponse {
	return respond(types.KindOf(err).HTTPStatus(), types.Failure(err))
}

func respond(status int, body types.Response) events.APIGatewayProxyResponse {
	data, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"success":false,"message":"internal server error","errorCode":"INTERNAL_ERROR"}`)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(data),
	}
}
