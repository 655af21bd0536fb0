package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/toolstudio/internal/app"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/domain/tool"
	"github.com/openctemio/toolstudio/pkg/pagination"
)

type fakeToolService struct {
	list       func(app.ListToolsInput) (pagination.Result[*tool.Tool], error)
	get        func(shared.ID) (*tool.Tool, error)
	getBySlug  func(string) (*tool.Tool, error)
	create     func(app.CreateToolInput) (*tool.Tool, error)
	update     func(shared.ID, app.UpdateToolInput) (*tool.Tool, error)
	del        func(shared.ID) error
	assignTags func(shared.ID, app.AssignTagsInput) (*tool.Tool, error)
}

func (f *fakeToolService) ListTools(_ context.Context, in app.ListToolsInput) (pagination.Result[*tool.Tool], error) {
	return f.list(in)
}

func (f *fakeToolService) GetTool(_ context.Context, id shared.ID) (*tool.Tool, error) {
	return f.get(id)
}

func (f *fakeToolService) GetToolBySlug(_ context.Context, slug string) (*tool.Tool, error) {
	return f.getBySlug(slug)
}

func (f *fakeToolService) CreateTool(_ context.Context, in app.CreateToolInput) (*tool.Tool, error) {
	return f.create(in)
}

func (f *fakeToolService) UpdateTool(_ context.Context, id shared.ID, in app.UpdateToolInput) (*tool.Tool, error) {
	return f.update(id, in)
}

func (f *fakeToolService) DeleteTool(_ context.Context, id shared.ID) error {
	return f.del(id)
}

func (f *fakeToolService) AssignTags(_ context.Context, id shared.ID, in app.AssignTagsInput) (*tool.Tool, error) {
	return f.assignTags(id, in)
}

func sampleTool(id shared.ID) *tool.Tool {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &tool.Tool{
		ID:        id,
		Name:      "Weather Lookup",
		Slug:      "weather-lookup",
		Category:  "api",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		Tags:      []tool.TagRef{{ID: 3, Name: "External", Slug: "external", Color: "#ff0000"}},
	}
}

func toolMux(svc ToolService) chi.Router {
	v, log := testDeps()
	h := NewToolHandler(svc, v, log)
	r := newMux()
	r.Get("/tools", h.List)
	r.Post("/tools", h.Create)
	r.Get("/tools/slug/{slug}", h.GetBySlug)
	r.Get("/tools/{id}", h.Get)
	r.Put("/tools/{id}", h.Update)
	r.Delete("/tools/{id}", h.Delete)
	r.Post("/tools/{id}/tags", h.AssignTags)
	return r
}

func TestToolHandler_List(t *testing.T) {
	var got app.ListToolsInput
	svc := &fakeToolService{list: func(in app.ListToolsInput) (pagination.Result[*tool.Tool], error) {
		got = in
		return pagination.NewResult([]*tool.Tool{sampleTool(1)}, 41, pagination.New(in.Page, in.PerPage)), nil
	}}

	rec := serve(t, toolMux(svc), http.MethodGet,
		"/tools?search=weather&category=api&is_active=true&page=3&limit=20&sort_by=name&sort_order=asc", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "weather", got.Search)
	assert.Equal(t, "api", got.Category)
	require.NotNil(t, got.IsActive)
	assert.True(t, *got.IsActive)
	assert.Equal(t, 3, got.Page)
	assert.Equal(t, 20, got.PerPage)
	assert.Equal(t, "name", got.SortBy)
	assert.Equal(t, "asc", got.SortOrder)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, int64(41), env.Pagination.Total)
	assert.Equal(t, 3, env.Pagination.TotalPages)

	var tools []ToolResponse
	decodeData(t, env, &tools)
	require.Len(t, tools, 1)
	assert.Equal(t, int64(1), tools[0].ToolID)
	require.Len(t, tools[0].Tags, 1)
	assert.Equal(t, int64(3), tools[0].Tags[0].TagID)
}

func TestToolHandler_List_RejectsUnknownCategory(t *testing.T) {
	svc := &fakeToolService{list: func(app.ListToolsInput) (pagination.Result[*tool.Tool], error) {
		t.Fatal("service must not be called")
		return pagination.Result[*tool.Tool]{}, nil
	}}

	rec := serve(t, toolMux(svc), http.MethodGet, "/tools?category=nope", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Contains(t, string(env.Error.Details), `"category"`)
}

func TestToolHandler_List_RejectsMalformedBool(t *testing.T) {
	svc := &fakeToolService{list: func(app.ListToolsInput) (pagination.Result[*tool.Tool], error) {
		t.Fatal("service must not be called")
		return pagination.Result[*tool.Tool]{}, nil
	}}

	rec := serve(t, toolMux(svc), http.MethodGet, "/tools?is_active=maybe", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Equal(t, "is_active must be true or false", env.Error.Message)
	assert.Contains(t, string(env.Error.Details), `"field":"is_active"`)
}

func TestToolHandler_Get(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "found", path: "/tools/1", wantStatus: http.StatusOK},
		{name: "not found", path: "/tools/9", err: shared.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "non numeric id", path: "/tools/abc", wantStatus: http.StatusBadRequest, wantCode: "BAD_REQUEST"},
		{name: "zero id", path: "/tools/0", wantStatus: http.StatusBadRequest, wantCode: "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeToolService{get: func(id shared.ID) (*tool.Tool, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return sampleTool(id), nil
			}}

			rec := serve(t, toolMux(svc), http.MethodGet, tt.path, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeEnvelope(t, rec).Error.Code)
			}
		})
	}
}

func TestToolHandler_GetBySlug(t *testing.T) {
	svc := &fakeToolService{getBySlug: func(slug string) (*tool.Tool, error) {
		assert.Equal(t, "weather-lookup", slug)
		return sampleTool(5), nil
	}}

	rec := serve(t, toolMux(svc), http.MethodGet, "/tools/slug/weather-lookup", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ToolResponse
	decodeData(t, decodeEnvelope(t, rec), &resp)
	assert.Equal(t, "weather-lookup", resp.Slug)
}

func TestToolHandler_Create(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "created",
			body:       `{"name":"Weather Lookup","slug":"weather-lookup","category":"api"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing slug",
			body:       `{"name":"Weather Lookup","category":"api"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "bad slug",
			body:       `{"name":"Weather Lookup","slug":"Weather Lookup","category":"api"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "duplicate slug",
			body:       `{"name":"Weather Lookup","slug":"weather-lookup","category":"api"}`,
			err:        shared.NewDomainError("CONFLICT", "Tool with this slug already exists", shared.ErrAlreadyExists),
			wantStatus: http.StatusConflict,
			wantCode:   "CONFLICT",
		},
		{
			name:       "malformed json",
			body:       `{"name":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeToolService{create: func(in app.CreateToolInput) (*tool.Tool, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				out := sampleTool(7)
				out.Name, out.Slug = in.Name, in.Slug
				return out, nil
			}}

			rec := serve(t, toolMux(svc), http.MethodPost, "/tools", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			env := decodeEnvelope(t, rec)
			if tt.wantCode != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.wantCode, env.Error.Code)
				return
			}
			var resp ToolResponse
			decodeData(t, env, &resp)
			assert.Equal(t, int64(7), resp.ToolID)
		})
	}
}

func TestToolHandler_Create_EmptyBody(t *testing.T) {
	rec := serve(t, toolMux(&fakeToolService{}), http.MethodPost, "/tools", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Request body is required", decodeEnvelope(t, rec).Error.Message)
}

func TestToolHandler_Update_PassesOnlyPresentFields(t *testing.T) {
	svc := &fakeToolService{update: func(id shared.ID, in app.UpdateToolInput) (*tool.Tool, error) {
		assert.Equal(t, shared.ID(4), id)
		require.NotNil(t, in.Description)
		assert.Equal(t, "new", *in.Description)
		assert.Nil(t, in.Name)
		assert.Nil(t, in.Slug)
		return sampleTool(id), nil
	}}

	rec := serve(t, toolMux(svc), http.MethodPut, "/tools/4", `{"description":"new"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestToolHandler_Delete(t *testing.T) {
	deleted := shared.ID(0)
	svc := &fakeToolService{del: func(id shared.ID) error {
		deleted = id
		return nil
	}}

	rec := serve(t, toolMux(svc), http.MethodDelete, "/tools/12", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, shared.ID(12), deleted)
}

func TestToolHandler_AssignTags(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantIDs    []int64
		wantStatus int
	}{
		{name: "replace", body: `{"tag_ids":[1,2]}`, wantIDs: []int64{1, 2}, wantStatus: http.StatusOK},
		{name: "clear with missing field", body: `{}`, wantIDs: []int64{}, wantStatus: http.StatusOK},
		{name: "non positive id", body: `{"tag_ids":[0]}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int64
			svc := &fakeToolService{assignTags: func(id shared.ID, in app.AssignTagsInput) (*tool.Tool, error) {
				got = in.TagIDs
				return sampleTool(id), nil
			}}

			rec := serve(t, toolMux(svc), http.MethodPost, "/tools/1/tags", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantIDs != nil {
				assert.Equal(t, tt.wantIDs, got)
			}
		})
	}
}

func TestToolHandler_UnexpectedErrorIsInternal(t *testing.T) {
	svc := &fakeToolService{get: func(shared.ID) (*tool.Tool, error) {
		return nil, context.DeadlineExceeded
	}}

	rec := serve(t, toolMux(svc), http.MethodGet, "/tools/1", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
	assert.NotContains(t, rec.Body.String(), "deadline")
}
