package types_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nicholasgriffintn/aws-hosted-excalidraw/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want types.Kind
	}{
		{nil, types.KindOther},
		{errors.New("boom"), types.KindOther},
		{fmt.Errorf("board b1: %w", types.ErrNotFound), types.KindNotFound},
		{fmt.Errorf("x: %w", types.ErrInvalidInput), types.KindInvalidInput},
		{types.ErrInvalidState, types.KindInvalidState},
		{types.ErrConflict, types.KindConflict},
		{types.ErrInvalidSession, types.KindInvalidSession},
		{fmt.Errorf("batch: %w", types.ErrTransient), types.KindTransient},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, types.KindOf(tt.err), "error %v", tt.err)
	}
}

func TestNormalizeBoardName(t *testing.T) {
	t.Parallel()

	name, err := types.NormalizeBoardName("  Sprint planning  ")
	require.NoError(t, err)
	assert.Equal(t, "Sprint planning", name)

	_, err = types.NormalizeBoardName("   ")
	require.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = types.NormalizeBoardName(strings.Repeat("a", types.MaxBoardNameLength+1))
	require.ErrorIs(t, err, types.ErrInvalidInput)

	name, err = types.NormalizeBoardName(strings.Repeat("é", types.MaxBoardNameLength))
	require.NoError(t, err)
	assert.Len(t, []rune(name), types.MaxBoardNameLength)
}

func TestNormalizeTeamName(t *testing.T) {
	t.Parallel()

	_, err := types.NormalizeTeamName(strings.Repeat("t", types.MaxTeamNameLength+1))
	require.ErrorIs(t, err, types.ErrInvalidInput)

	name, err := types.NormalizeTeamName("Design")
	require.NoError(t, err)
	assert.Equal(t, "Design", name)
}

func TestRoleValid(t *testing.T) {
	t.Parallel()

	assert.True(t, types.RoleOwner.Valid())
	assert.True(t, types.RoleMember.Valid())
	assert.False(t, types.Role("admin").Valid())
}

func TestElementID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"string id", `{"id":"abc","type":"rectangle"}`, "abc", false},
		{"empty id", `{"id":""}`, "", true},
		{"blank id", `{"id":"  "}`, "", true},
		{"numeric id", `{"id":42}`, "", true},
		{"missing id", `{"type":"arrow"}`, "", true},
		{"array", `[1,2]`, "", true},
		{"null", `null`, "", true},
		{"empty", ``, "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			id, err := types.Element(tt.raw).ID()
			if tt.wantErr {
				require.ErrorIs(t, err, types.ErrInvalidInput)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestElementIDs(t *testing.T) {
	t.Parallel()

	ids, err := types.ElementIDs([]types.Element{
		types.Element(`{"id":"b"}`),
		types.Element(`{"id":"a"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids)

	_, err = types.ElementIDs([]types.Element{
		types.Element(`{"id":"a"}`),
		types.Element(`{"id":"a"}`),
	})
	require.ErrorIs(t, err, types.ErrInvalidInput)

	tooMany := make([]types.Element, types.MaxElementsPerBoard+1)
	for i := range tooMany {
		tooMany[i] = types.Element(fmt.Sprintf(`{"id":"e%d"}`, i))
	}

	_, err = types.ElementIDs(tooMany)
	require.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestElementJSONRoundTrip(t *testing.T) {
	t.Parallel()

	var elements []types.Element
	require.NoError(t, json.Unmarshal([]byte(`[{"id":"a","x":1},{"id":"b"}]`), &elements))
	require.Len(t, elements, 2)

	out, err := json.Marshal(elements)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a","x":1},{"id":"b"}]`, string(out))
}

func TestKindHTTPStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 404, types.KindNotFound.HTTPStatus())
	assert.Equal(t, 400, types.KindInvalidInput.HTTPStatus())
	assert.Equal(t, 400, types.KindInvalidState.HTTPStatus())
	assert.Equal(t, 409, types.KindConflict.HTTPStatus())
	assert.Equal(t, 403, types.KindInvalidSession.HTTPStatus())
	assert.Equal(t, 500, types.KindTransient.HTTPStatus())
	assert.Equal(t, 500, types.KindOther.HTTPStatus())
}

func TestFailure(t *testing.T) {
	t.Parallel()

	resp := types.Failure(fmt.Errorf("board b1: %w", types.ErrNotFound))
	assert.Equal(t, types.Response{Message: "board b1: not found", ErrorCode: "NOT_FOUND"}, resp)

	resp = types.Failure(errors.New("dial tcp: connection refused"))
	assert.Equal(t, types.Response{Message: "internal server error", ErrorCode: "INTERNAL_ERROR"}, resp)

	body, err := json.Marshal(types.OK(map[string]int{"count": 2}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":{"count":2}}`, string(body))
}
