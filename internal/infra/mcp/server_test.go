package mcp

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/toolstudio/pkg/domain/catalog"
	"github.com/openctemio/toolstudio/pkg/domain/execution"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/logger"
)

const objectSchema = `{"type":"object","properties":{"q":{"type":"string"}}}`

type fakeCatalog struct {
	mu      sync.Mutex
	entries []catalog.Entry
	calls   []string
	sources []string
	listErr error
}

func (f *fakeCatalog) setEntries(entries ...catalog.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = entries
}

func (f *fakeCatalog) ListEntries(context.Context) ([]catalog.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]catalog.Entry(nil), f.entries...), f.listErr
}

func (f *fakeCatalog) InvokeBySlug(_ context.Context, slug string, input json.RawMessage, llmSource string) (*execution.Execution, *catalog.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, slug)
	f.sources = append(f.sources, llmSource)
	for i := range f.entries {
		if f.entries[i].Slug != slug {
			continue
		}
		if len(input) == 0 {
			input = json.RawMessage(`{}`)
		}
		entry := f.entries[i]
		return &execution.Execution{
			ID:           shared.ID(len(f.calls)),
			ToolID:       entry.ToolID,
			VersionID:    entry.VersionID,
			RequestID:    "req-generated",
			InputPayload: input,
			Status:       execution.StatusRunning,
		}, &entry, nil
	}
	return nil, nil, shared.NewNotFoundError("tool")
}

func entry(slug string, id int64) catalog.Entry {
	return catalog.Entry{
		ToolID:        shared.ID(id),
		Name:          "Tool " + slug,
		Slug:          slug,
		Description:   "does " + slug,
		Category:      "utility",
		VersionID:     shared.ID(id * 10),
		VersionNumber: "1.0.0",
		InputSchema:   json.RawMessage(objectSchema),
		OutputSchema:  json.RawMessage(`{"type":"object"}`),
	}
}

func connect(t *testing.T, s *Server) *gomcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	ct, st := gomcp.NewInMemoryTransports()
	_, err := s.MCP().Connect(ctx, st, nil)
	require.NoError(t, err)

	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-agent", Version: "0.1.0"}, nil)
	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func toolNames(res *gomcp.ListToolsResult) []string {
	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	return names
}

func TestServer_ListToolsFollowsCatalog(t *testing.T) {
	ctx := context.Background()
	cat := &fakeCatalog{}
	cat.setEntries(entry("web-search", 1), entry("calculator", 2))
	s := NewServer(cat, Info{Name: "toolstudio", Version: "test"}, logger.NewNop())
	session := connect(t, s)

	res, err := session.ListTools(ctx, &gomcp.ListToolsParams{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"web-search", "calculator"}, toolNames(res))

	cat.setEntries(entry("calculator", 2))
	res, err = session.ListTools(ctx, &gomcp.ListToolsParams{})
	require.NoError(t, err)
	assert.Equal(t, []string{"calculator"}, toolNames(res))
}

func TestToolFor(t *testing.T) {
	type descriptor struct {
		Name        string
		Title       string
		Description string
		Meta        gomcp.Meta
	}

	tests := []struct {
		name  string
		entry catalog.Entry
		want  descriptor
	}{
		{
			name:  "description carries version",
			entry: entry("web-search", 1),
			want: descriptor{
				Name:        "web-search",
				Title:       "Tool web-search",
				Description: "does web-search (version 1.0.0)",
				Meta: gomcp.Meta{
					"category":      "utility",
					"tool_id":       int64(1),
					"version_id":    int64(10),
					"outputSchema":  json.RawMessage(`{"type":"object"}`),
					"versionNumber": "1.0.0",
				},
			},
		},
		{
			name: "empty description falls back to name",
			entry: func() catalog.Entry {
				e := entry("calculator", 2)
				e.Description = ""
				return e
			}(),
			want: descriptor{
				Name:        "calculator",
				Title:       "Tool calculator",
				Description: "Tool calculator (version 1.0.0)",
				Meta: gomcp.Meta{
					"category":      "utility",
					"tool_id":       int64(2),
					"version_id":    int64(20),
					"outputSchema":  json.RawMessage(`{"type":"object"}`),
					"versionNumber": "1.0.0",
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := toolFor(tt.entry)
			got := descriptor{Name: tool.Name, Title: tool.Title, Description: tool.Description, Meta: tool.Meta}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("toolFor() mismatch (-want +got):\n%s", diff)
			}
			assert.JSONEq(t, objectSchema, string(tool.InputSchema.(json.RawMessage)))
		})
	}
}

func TestServer_SkipsNonObjectSchemas(t *testing.T) {
	cat := &fakeCatalog{}
	bad := entry("broken", 3)
	bad.InputSchema = json.RawMessage(`{"type":"string"}`)
	cat.setEntries(entry("good", 1), bad)
	s := NewServer(cat, Info{Name: "toolstudio", Version: "test"}, logger.NewNop())

	require.NoError(t, s.Sync(context.Background()))
	assert.Len(t, s.registered, 1)
	assert.Contains(t, s.registered, "good")
}

func TestServer_CallToolRecordsExecution(t *testing.T) {
	ctx := context.Background()
	cat := &fakeCatalog{}
	cat.setEntries(entry("calculator", 2))
	s := NewServer(cat, Info{Name: "toolstudio", Version: "test"}, logger.NewNop())
	session := connect(t, s)

	res, err := session.CallTool(ctx, &gomcp.CallToolParams{
		Name:      "calculator",
		Arguments: map[string]any{"q": "2+2"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)

	text, ok := res.Content[0].(*gomcp.TextContent)
	require.True(t, ok)
	var got CallResult
	require.NoError(t, json.Unmarshal([]byte(text.Text), &got))
	assert.Equal(t, int64(1), got.ExecutionID)
	assert.Equal(t, "running", got.Status)
	assert.Equal(t, int64(20), got.VersionID)
	assert.JSONEq(t, `{"q":"2+2"}`, string(got.Input))

	assert.Equal(t, []string{"calculator"}, cat.calls)
	assert.Equal(t, []string{"test-agent"}, cat.sources)
}

func TestServer_CallRemovedToolIsToolError(t *testing.T) {
	s := NewServer(&fakeCatalog{}, Info{Name: "toolstudio", Version: "test"}, logger.NewNop())
	handler := s.callHandler("gone")

	res, err := handler(context.Background(), &gomcp.CallToolRequest{Params: &gomcp.CallToolParamsRaw{Name: "gone"}})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestFingerprint(t *testing.T) {
	a := []catalog.Entry{entry("a", 1)}
	b := []catalog.Entry{entry("a", 1)}
	assert.Equal(t, fingerprint(a), fingerprint(b))

	b[0].VersionNumber = "1.0.1"
	assert.NotEqual(t, fingerprint(a), fingerprint(b))
}
