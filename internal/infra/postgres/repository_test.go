package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/toolstudio/pkg/domain/execution"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/domain/tool"
)

func TestBuildToolWhere(t *testing.T) {
	active := true

	tests := []struct {
		name      string
		filter    tool.Filter
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "empty filter still hides deleted tools",
			filter:    tool.Filter{},
			wantWhere: "deleted_at IS NULL",
		},
		{
			name:      "search escapes wildcards",
			filter:    tool.Filter{Search: "50%_off"},
			wantWhere: "deleted_at IS NULL AND (name ILIKE $1 OR description ILIKE $1)",
			wantArgs:  []any{`%50\%\_off%`},
		},
		{
			name:      "all filters number placeholders in order",
			filter:    tool.Filter{Search: "calc", Category: "computation", IsActive: &active},
			wantWhere: "deleted_at IS NULL AND (name ILIKE $1 OR description ILIKE $1) AND category = $2 AND is_active = $3",
			wantArgs:  []any{"%calc%", "computation", true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildToolWhere(tt.filter)
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildExecutionWhere(t *testing.T) {
	toolID := shared.ID(7)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	where, args := buildExecutionWhere(execution.Filter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = buildExecutionWhere(execution.Filter{
		ToolID:  &toolID,
		AgentID: "agent-1",
		Status:  execution.StatusRunning,
		From:    &from,
	})
	assert.Equal(t, "e.tool_id = $1 AND e.agent_id = $2 AND e.status = $3 AND e.started_at >= $4", where)
	assert.Equal(t, []any{toolID, "agent-1", "running", from}, args)
}

func TestErrorClassification(t *testing.T) {
	unique := &pq.Error{Code: "23505"}
	fk := &pq.Error{Code: "23503"}
	wrapped := fmt.Errorf("insert: %w", unique)

	assert.True(t, isUniqueViolation(unique))
	assert.True(t, isUniqueViolation(wrapped))
	assert.False(t, isUniqueViolation(fk))
	assert.True(t, isForeignKeyViolation(fk))
	assert.False(t, isForeignKeyViolation(errors.New("boom")))
}

func TestConflictErrors(t *testing.T) {
	err := slugConflict("calculator")
	assert.True(t, shared.IsAlreadyExists(err))
	assert.Contains(t, err.Error(), "calculator")

	err = versionConflict("1.0.0")
	assert.True(t, shared.IsAlreadyExists(err))
}

func TestNullHelpers(t *testing.T) {
	assert.False(t, nullString("").Valid)
	assert.Equal(t, "x", nullStringValue(nullString("x")))

	assert.False(t, nullInt64(nil).Valid)
	n := int64(42)
	got := nullInt64Value(nullInt64(&n))
	require.NotNil(t, got)
	assert.Equal(t, int64(42), *got)

	code := 201
	gotCode := nullIntValue(nullInt(&code))
	require.NotNil(t, gotCode)
	assert.Equal(t, 201, *gotCode)

	now := time.Now()
	assert.Nil(t, nullTimeValue(nullTime(nil)))
	assert.Equal(t, now, *nullTimeValue(nullTime(&now)))
}

func TestNullJSON(t *testing.T) {
	assert.Nil(t, nullJSON(nil))
	assert.Nil(t, nullJSON(json.RawMessage("null")))
	assert.Equal(t, []byte(`{"a":1}`), nullJSON(json.RawMessage(`{"a":1}`)))
}

func TestJSONValueCopies(t *testing.T) {
	buf := []byte(`{"a":1}`)
	v := jsonValue(buf)
	buf[2] = 'b'
	assert.JSONEq(t, `{"a":1}`, string(v))
	assert.Nil(t, jsonValue(nil))
}

func TestPrefixColumns(t *testing.T) {
	assert.Equal(t, "t.tool_id, t.name, t.slug", prefixColumns("t", "tool_id, name,\n\tslug"))
}

func TestWrapLikePattern(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "%plain%"},
		{`back\slash`, `%back\\slash%`},
		{"100%", `%100\%%`},
		{"a_b", `%a\_b%`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, wrapLikePattern(tt.in))
		})
	}
}
