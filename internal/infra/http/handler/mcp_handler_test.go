package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/toolstudio/internal/app"
	"github.com/openctemio/toolstudio/pkg/domain/catalog"
	"github.com/openctemio/toolstudio/pkg/domain/execution"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
)

type fakeCatalogService struct {
	entries []catalog.Entry
	invoked *app.InvokeInput
	err     error
}

func (f *fakeCatalogService) ListEntries(context.Context) ([]catalog.Entry, error) {
	return f.entries, f.err
}

func (f *fakeCatalogService) Invoke(_ context.Context, in app.InvokeInput) (*execution.Execution, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.invoked = &in
	return &execution.Execution{
		ID:           55,
		ToolID:       shared.ID(in.ToolID),
		VersionID:    shared.ID(in.VersionID),
		InputPayload: in.Input,
		Status:       execution.StatusRunning,
	}, nil
}

func mcpMux(svc CatalogService) chi.Router {
	v, log := testDeps()
	h := NewMCPHandler(svc, v, log)
	r := newMux()
	r.Post("/api/mcp/tools/list", h.ListTools)
	r.Post("/api/mcp/tools/execute", h.ExecuteTool)
	return r
}

func TestMCPHandler_ListTools(t *testing.T) {
	svc := &fakeCatalogService{entries: []catalog.Entry{{
		ToolID:        1,
		Name:          "Weather Lookup",
		Slug:          "weather-lookup",
		Category:      "api",
		VersionID:     2,
		VersionNumber: "1.0.0",
		InputSchema:   json.RawMessage(`{"type":"object"}`),
		OutputSchema:  json.RawMessage(`{"type":"object"}`),
	}}}

	rec := serve(t, mcpMux(svc), http.MethodPost, "/api/mcp/tools/list", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ToolListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tools, 1)
	assert.Equal(t, "1.0.0", resp.Tools[0].Version)
	assert.Equal(t, int64(2), resp.Tools[0].VersionID)
	assert.Contains(t, rec.Body.String(), `"inputSchema":{"type":"object"}`)
}

func TestMCPHandler_ListTools_EmptyCatalog(t *testing.T) {
	rec := serve(t, mcpMux(&fakeCatalogService{}), http.MethodPost, "/api/mcp/tools/list", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tools":[]}`, rec.Body.String())
}

func TestMCPHandler_ExecuteTool(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "running", body: `{"tool_id":1,"version_id":2,"input":{"city":"Hanoi"}}`, wantStatus: http.StatusOK},
		{name: "missing input", body: `{"tool_id":1,"version_id":2}`, wantStatus: http.StatusBadRequest},
		{name: "missing version", body: `{"tool_id":1,"input":{}}`, wantStatus: http.StatusBadRequest},
		{
			name:       "version of another tool",
			body:       `{"tool_id":1,"version_id":9,"input":{}}`,
			err:        shared.NewValidationError("version_id", "version does not belong to the tool"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown version",
			body:       `{"tool_id":1,"version_id":9,"input":{}}`,
			err:        shared.ErrNotFound,
			wantStatus: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeCatalogService{err: tt.err}

			rec := serve(t, mcpMux(svc), http.MethodPost, "/api/mcp/tools/execute", tt.body)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			assert.JSONEq(t, `{"executionId":55,"status":"running","input":{"city":"Hanoi"}}`, rec.Body.String())
			require.NotNil(t, svc.invoked)
			assert.Equal(t, int64(2), svc.invoked.VersionID)
		})
	}
}
