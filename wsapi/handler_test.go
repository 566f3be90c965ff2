package wsapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/dynamodb"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/fanout"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/internal/dynamotest"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/internal/pushtest"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/logging"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/relay"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/wsapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *dynamodb.Client
	gateway *pushtest.Gateway
	handler *wsapi.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := dynamodb.New(&aws.Config{}, "boards",
		dynamodb.WithAPI(dynamotest.NewTable("boards")),
		dynamodb.WithClock(func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, store.Connect())

	gateway := pushtest.NewGateway()
	logger := logging.Nop()
	f := fanout.New(gateway, store, logger)

	return &fixture{
		store:   store,
		gateway: gateway,
		handler: wsapi.New(store, relay.New(store, f, logger), logger),
	}
}

func (f *fixture) board(t *testing.T, teamID string) string {
	t.Helper()

	board, err := f.store.CreateBoard(context.Background(), dynamodb.CreateBoardInput{TeamID: teamID})
	require.NoError(t, err)

	return board.ID
}

func request(connectionID string, query, headers map[string]string, body string) events.APIGatewayWebsocketProxyRequest {
	return events.APIGatewayWebsocketProxyRequest{
		QueryStringParameters: query,
		Headers:               headers,
		Body:                  body,
		RequestContext: events.APIGatewayWebsocketProxyRequestContext{
			ConnectionID: connectionID,
		},
	}
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"errorCode"`
}

func decode(t *testing.T, resp events.APIGatewayProxyResponse) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &env))
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])

	return env
}

func TestConnect(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	boardID := f.board(t, "design")

	resp, err := f.handler.Connect(ctx, request("conn-1",
		map[string]string{"boardId": boardID, "userId": "u-7"},
		map[string]string{"X-Excalidraw-Team-Id": "design"},
		""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	env := decode(t, resp)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"connectionId":"conn-1"`)

	session, err := f.store.LookupByConnection(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "design", session.TeamID)
	assert.Equal(t, "u-7", session.UserID)
	assert.Equal(t, boardID, session.BoardID)
}

func TestConnect_TeamAndUserResolution(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name     string
		team     string
		query    map[string]string
		headers  map[string]string
		wantUser string
	}{
		{"default team", "default", map[string]string{}, nil, ""},
		{"teamId query", "ops", map[string]string{"teamId": "ops"}, nil, ""},
		{"team_id query", "ops", map[string]string{"team_id": "ops"}, nil, ""},
		{"header beats query", "hdr", map[string]string{"teamId": "ops"}, map[string]string{"x-excalidraw-team-id": "hdr"}, ""},
		{"user header", "default", map[string]string{}, map[string]string{"x-excalidraw-user-id": "u-1"}, "u-1"},
		{"user query beats header", "default", map[string]string{"userId": "u-2"}, map[string]string{"x-excalidraw-user-id": "u-1"}, "u-2"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			boardID := f.board(t, tt.team)
			tt.query["boardId"] = boardID

			resp, err := f.handler.Connect(ctx, request("conn", tt.query, tt.headers, ""))
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)

			session, err := f.store.LookupByConnection(ctx, "conn")
			require.NoError(t, err)
			assert.Equal(t, tt.team, session.TeamID)
			assert.Equal(t, tt.wantUser, session.UserID)
		})
	}
}

func TestConnect_Rejections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	boardID := f.board(t, "design")

	resp, err := f.handler.Connect(ctx, request("conn-1", nil, nil, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_INPUT", decode(t, resp).ErrorCode)

	resp, err = f.handler.Connect(ctx, request("conn-1", map[string]string{"boardId": "missing", "teamId": "design"}, nil, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = f.handler.Connect(ctx, request("conn-1", map[string]string{"boardId": boardID, "teamId": "other"}, nil, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "boards are scoped to their team")
}

func TestDisconnect(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	boardID := f.board(t, "default")

	_, err := f.handler.Connect(ctx, request("conn-1", map[string]string{"boardId": boardID}, nil, ""))
	require.NoError(t, err)

	resp, err := f.handler.Disconnect(ctx, request("conn-1", nil, nil, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"removed":1}`, string(decode(t, resp).Data))

	sessions, err := f.store.ListSessions(ctx, boardID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	resp, err = f.handler.Disconnect(ctx, request("conn-1", nil, nil, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"removed":0}`, string(decode(t, resp).Data))
}

func TestMessage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	boardID := f.board(t, "default")

	for _, conn := range []string{"conn-a", "conn-b"} {
		_, err := f.handler.Connect(ctx, request(conn, map[string]string{"boardId": boardID}, nil, ""))
		require.NoError(t, err)
	}

	resp, err := f.handler.Message(ctx, request("conn-a", nil, nil, `{"action":"cursor","payload":{"x":1}}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"delivered":1}`, string(decode(t, resp).Data))
	assert.Len(t, f.gateway.Sent("conn-b"), 1)

	resp, err = f.handler.Message(ctx, request("conn-a", nil, nil, `{"action":"ping"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"pong"}`, string(decode(t, resp).Data))

	resp, err = f.handler.Message(ctx, request("stranger", nil, nil, `{"action":"cursor"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "INVALID_SESSION", decode(t, resp).ErrorCode)

	resp, err = f.handler.Message(ctx, request("conn-a", nil, nil, `{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMessage_WithoutRelay(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	h := wsapi.New(f.store, nil, logging.Nop())

	resp, err := h.Message(context.Background(), request("conn-a", nil, nil, `{"action":"cursor"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "INTERNAL_ERROR", decode(t, resp).ErrorCode)
}
