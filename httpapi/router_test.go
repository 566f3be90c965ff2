package httpapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/dynamodb"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/httpapi"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/internal/dynamotest"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"errorCode"`
}

type client struct {
	t       *testing.T
	handler http.Handler
	team    string
	user    string
}

func newClient(t *testing.T) *client {
	t.Helper()

	store := dynamodb.New(&aws.Config{}, "boards",
		dynamodb.WithAPI(dynamotest.NewTable("boards")),
		dynamodb.WithClock(func() time.Time { return time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, store.Connect())

	return &client{t: t, handler: httpapi.NewRouter(store, logging.Nop()), team: "design", user: "u-1"}
}

func (c *client) do(method, path, body string) (int, envelope) {
	c.t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body)).WithContext(context.Background())
	if c.team != "" {
		req.Header.Set(httpapi.TeamHeader, c.team)
	}
	if c.user != "" {
		req.Header.Set(httpapi.UserHeader, c.user)
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())

	return rec.Code, env
}

func (c *client) createBoard(name string) string {
	c.t.Helper()

	code, env := c.do(http.MethodPost, "/boards", fmt.Sprintf(`{"name":%q}`, name))
	require.Equal(c.t, http.StatusCreated, code, env.Message)

	var board struct {
		ID string `json:"id"`
	}
	require.NoError(c.t, json.Unmarshal(env.Data, &board))

	return board.ID
}

func TestBoardsLifecycle(t *testing.T) {
	t.Parallel()

	c := newClient(t)
	id := c.createBoard("Roadmap")

	code, env := c.do(http.MethodGet, "/boards", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"name":"Roadmap"`)

	code, env = c.do(http.MethodPut, "/boards/"+id, `{"name":"Roadmap 2025"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"name":"Roadmap 2025"`)

	code, _ = c.do(http.MethodDelete, "/boards/"+id, "")
	assert.Equal(t, http.StatusOK, code)

	code, env = c.do(http.MethodGet, "/boards/trash", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), id)

	code, env = c.do(http.MethodGet, "/boards/"+id+"/elements", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_STATE", env.ErrorCode)

	code, _ = c.do(http.MethodPost, "/boards/"+id+"/restore", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = c.do(http.MethodDelete, "/boards/"+id+"/permanent", "")
	assert.Equal(t, http.StatusOK, code)

	code, env = c.do(http.MethodGet, "/boards/"+id, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
	assert.Equal(t, "NOT_FOUND", env.ErrorCode)
}

func TestElements(t *testing.T) {
	t.Parallel()

	c := newClient(t)
	id := c.createBoard("Sketch")

	code, env := c.do(http.MethodPut, "/boards/"+id+"/elements", `{"elements":[{"id":"b","type":"arrow"},{"id":"a","type":"text"}]}`)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.JSONEq(t, `{"saved":2}`, string(env.Data))

	code, env = c.do(http.MethodGet, "/boards/"+id+"/elements", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"elements":[{"id":"b","type":"arrow"},{"id":"a","type":"text"}]}`, string(env.Data))

	code, env = c.do(http.MethodPut, "/boards/"+id+"/elements", `{"elements":[]}`)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"saved":0}`, string(env.Data))

	code, env = c.do(http.MethodGet, "/boards/"+id+"/elements", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"elements":[]}`, string(env.Data))
}

func TestElements_Rejections(t *testing.T) {
	t.Parallel()

	c := newClient(t)
	id := c.createBoard("Sketch")

	tests := []struct {
		name string
		body string
	}{
		{"missing array", `{}`},
		{"bad json", `{"elements":`},
		{"missing id", `{"elements":[{"type":"arrow"}]}`},
		{"duplicate id", `{"elements":[{"id":"a"},{"id":"a"}]}`},
	}

	for _, tt := range tests {
		code, env := c.do(http.MethodPut, "/boards/"+id+"/elements", tt.body)
		assert.Equal(t, http.StatusBadRequest, code, tt.name)
		assert.Equal(t, "INVALID_INPUT", env.ErrorCode, tt.name)
	}

	code, _ := c.do(http.MethodPut, "/boards/missing/elements", `{"elements":[]}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestBoards_TeamScoping(t *testing.T) {
	t.Parallel()

	c := newClient(t)
	id := c.createBoard("Private")

	c.team = "other"
	code, _ := c.do(http.MethodGet, "/boards/"+id, "")
	assert.Equal(t, http.StatusNotFound, code)

	c.team = ""
	code, env := c.do(http.MethodGet, "/boards", "")
	assert.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(env.Data), id)
}

func TestCreateBoard_InvalidName(t *testing.T) {
	t.Parallel()

	c := newClient(t)

	code, env := c.do(http.MethodPost, "/boards", fmt.Sprintf(`{"name":%q}`, strings.Repeat("x", 200)))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_INPUT", env.ErrorCode)

	code, env = c.do(http.MethodPut, "/boards/whatever", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "name is required")
}

func TestTeams(t *testing.T) {
	t.Parallel()

	c := newClient(t)

	code, env := c.do(http.MethodPost, "/teams", `{"id":"design","name":"Design"}`)
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, _ = c.do(http.MethodPost, "/teams", `{"id":"design","name":"Design"}`)
	assert.Equal(t, http.StatusConflict, code)

	code, env = c.do(http.MethodPost, "/teams/members", `{"userId":"u-2"}`)
	require.Equal(t, http.StatusCreated, code, env.Message)
	assert.Contains(t, string(env.Data), `"role":"member"`)

	code, env = c.do(http.MethodGet, "/teams/members", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"userId":"u-1"`)
	assert.Contains(t, string(env.Data), `"userId":"u-2"`)

	code, env = c.do(http.MethodGet, "/teams", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"teamId":"design"`)

	code, _ = c.do(http.MethodDelete, "/teams/members/u-2", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = c.do(http.MethodDelete, "/teams/members/u-2", "")
	assert.Equal(t, http.StatusNotFound, code)

	c.user = ""
	code, _ = c.do(http.MethodGet, "/teams", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()

	code, env := newClient(t).do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.ErrorCode)
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	srv := httpapi.NewServer(":0", http.NewServeMux())
	assert.Equal(t, ":0", srv.Addr)
	assert.Positive(t, srv.ReadHeaderTimeout)
}
