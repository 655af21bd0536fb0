package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_Health(t *testing.T) {
	h := NewHealthHandler()
	rec := httptest.NewRecorder()

	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestHealthHandler_Ready(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		opts       []HealthHandlerOption
		wantStatus int
		wantBody   []string
	}{
		{
			name:       "no dependencies",
			wantStatus: http.StatusOK,
			wantBody:   []string{`"status":"ready"`},
		},
		{
			name:       "all healthy",
			opts:       []HealthHandlerOption{WithDatabase(ok), WithRedis(ok)},
			wantStatus: http.StatusOK,
			wantBody:   []string{`"database"`, `"redis"`},
		},
		{
			name:       "redis down",
			opts:       []HealthHandlerOption{WithDatabase(ok), WithRedis(down)},
			wantStatus: http.StatusServiceUnavailable,
			wantBody: []string{
				`"not_ready"`, "connection refused",
				`"error":{"code":"SERVICE_UNAVAILABLE","message":"Dependencies unavailable","details":["redis"]}`,
			},
		},
		{
			name:       "both down",
			opts:       []HealthHandlerOption{WithDatabase(down), WithRedis(down)},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   []string{`"details":["database","redis"]`},
		},
		{
			name:       "nil redis ignored",
			opts:       []HealthHandlerOption{WithDatabase(ok), WithRedis(nil)},
			wantStatus: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.opts...)
			rec := httptest.NewRecorder()

			h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			require.Equal(t, tt.wantStatus, rec.Code)
			for _, s := range tt.wantBody {
				assert.Contains(t, rec.Body.String(), s)
			}
		})
	}
}

func TestInfoHandler(t *testing.T) {
	h := NewInfoHandler("toolstudio", "1.2.3", "/mcp")
	rec := httptest.NewRecorder()

	h.Info(rec, httptest.NewRequest(http.MethodGet, "/api/v1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Contains(t, rec.Body.String(), `"version":"1.2.3"`)
	assert.Contains(t, rec.Body.String(), `"executions":"/api/v1/executions"`)
	assert.Contains(t, rec.Body.String(), `"mcp":"/mcp"`)
}
