package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_DecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tools", r.URL.Path)
		assert.Equal(t, "api", r.URL.Query().Get("category"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[{"tool_id":1,"slug":"web-search","tags":[]}],
			"pagination":{"page":1,"limit":20,"total":1,"total_pages":1}}`))
	}))
	defer srv.Close()

	var tools []Tool
	page, err := NewClient(srv.URL+"/", nil).Get(context.Background(), "/api/v1/tools?category=api", &tools)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "web-search", tools[0].Slug)
	require.NotNil(t, page)
	assert.Equal(t, int64(1), page.Total)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantMsg  string
		wantCode string
		notFound bool
	}{
		{
			name:     "error envelope",
			status:   http.StatusConflict,
			body:     `{"success":false,"error":{"code":"CONFLICT","message":"Tool with this slug already exists"}}`,
			wantMsg:  "Tool with this slug already exists",
			wantCode: "CONFLICT",
		},
		{
			name:     "validation details",
			status:   http.StatusBadRequest,
			body:     `{"success":false,"error":{"code":"VALIDATION_FAILED","message":"Validation failed","details":[{"field":"slug","message":"is required"}]}}`,
			wantMsg:  "Validation failed (slug: is required)",
			wantCode: "VALIDATION_FAILED",
		},
		{
			name:     "bare 404",
			status:   http.StatusNotFound,
			body:     `not json`,
			wantMsg:  "resource not found",
			notFound: true,
		},
		{
			name:    "bare 500",
			status:  http.StatusInternalServerError,
			body:    ``,
			wantMsg: "API error: 500 Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, nil).Get(context.Background(), "/x", nil)
			require.Error(t, err)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Equal(t, tt.notFound, IsNotFound(err))

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestClient_DeleteNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var verbose bytes.Buffer
	require.NoError(t, NewClient(srv.URL, &verbose).Delete(context.Background(), "/api/v1/tags/3"))
	assert.Contains(t, verbose.String(), ">>> DELETE "+srv.URL+"/api/v1/tags/3")
	assert.Contains(t, verbose.String(), "<<< 204 No Content")
}

func TestByIDOrSlug(t *testing.T) {
	assert.Equal(t, "/api/v1/tools/12", byIDOrSlug("/api/v1/tools", "12"))
	assert.Equal(t, "/api/v1/tools/slug/web-search", byIDOrSlug("/api/v1/tools", "web-search"))
}

func TestGetToolsCommand_Table(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("is_active"))
		_, _ = w.Write([]byte(`{"success":true,"data":[{"tool_id":3,"slug":"calculator","category":"computation","is_active":true,"tags":[]}],
			"pagination":{"page":1,"limit":20,"total":1,"total_pages":1}}`))
	}))
	defer srv.Close()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"get", "tools", "--active", "true", "--api-url", srv.URL})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "calculator")
	assert.Contains(t, out.String(), "computation")
	assert.Contains(t, out.String(), "Showing 1-1 of 1 results (page 1/1)")
}

func TestConfigContexts(t *testing.T) {
	configPathOverride = filepath.Join(t.TempDir(), "config.yaml")
	t.Cleanup(func() { configPathOverride = "" })

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"config", "set-context", "staging", "--url", "http://staging:3001"})
	require.NoError(t, root.Execute())

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.CurrentContext)
	require.NotNil(t, cfg.GetContext("staging"))
	assert.Equal(t, "http://staging:3001", cfg.GetContext("staging").Context.APIURL)

	flagAPIURL, flagContext = "", ""
	t.Setenv("STUDIOCTL_API_URL", "")
	t.Setenv("STUDIOCTL_CONTEXT", "")
	resolveAPIURL()
	assert.Equal(t, "http://staging:3001", flagAPIURL)
}
