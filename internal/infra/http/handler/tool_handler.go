package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openctemio/toolstudio/internal/app"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/domain/tool"
	"github.com/openctemio/toolstudio/pkg/logger"
	"github.com/openctemio/toolstudio/pkg/pagination"
	"github.com/openctemio/toolstudio/pkg/validator"
)

// ToolService is the part of app.ToolService the handler uses.
type ToolService interface {
	ListTools(ctx context.Context, input app.ListToolsInput) (pagination.Result[*tool.Tool], error)
	GetTool(ctx context.Context, id shared.ID) (*tool.Tool, error)
	GetToolBySlug(ctx context.Context, slug string) (*tool.Tool, error)
	CreateTool(ctx context.Context, input app.CreateToolInput) (*tool.Tool, error)
	UpdateTool(ctx context.Context, id shared.ID, input app.UpdateToolInput) (*tool.Tool, error)
	DeleteTool(ctx context.Context, id shared.ID) error
	AssignTags(ctx context.Context, id shared.ID, input app.AssignTagsInput) (*tool.Tool, error)
}

// ToolHandler handles HTTP requests for the tool registry.
type ToolHandler struct {
	errorResponder
	service   ToolService
	validator *validator.Validator
}

// NewToolHandler creates a new ToolHandler.
func NewToolHandler(service ToolService, v *validator.Validator, log *logger.Logger) *ToolHandler {
	return &ToolHandler{
		errorResponder: errorResponder{logger: log.With("handler", "tool")},
		service:        service,
		validator:      v,
	}
}

// List handles GET /api/v1/tools
// @Summary      List tools
// @Description  Page of live tools with their tags
// @Tags         Tools
// @Produce      json
// @Param        search      query     string  false  "Name, slug or description substring"
// @Param        category    query     string  false  "Category"
// @Param        is_active   query     bool    false  "Active filter"
// @Param        page        query     int     false  "Page (1-based)"
// @Param        limit       query     int     false  "Page size, max 100"
// @Param        sort_by     query     string  false  "name, created_at or updated_at"
// @Param        sort_order  query     string  false  "asc or desc"
// @Success      200  {object}  ListResponse[ToolResponse]
// @Failure      400  {object}  apierror.Error
// @Router       /tools [get]
func (h *ToolHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	isActive, err := parseQueryBool(q.Get("is_active"), "is_active")
	if err != nil {
		h.handleServiceError(w, r, err, "")
		return
	}
	page, limit := pageParams(r)
	input := app.ListToolsInput{
		Search:    q.Get("search"),
		Category:  q.Get("category"),
		IsActive:  isActive,
		Page:      page,
		PerPage:   limit,
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}
	if err := h.validator.Validate(input); err != nil {
		h.handleValidationError(w, r, err)
		return
	}

	result, err := h.service.ListTools(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, r, err, "Tool")
		return
	}
	writeList(w, result, toToolResponse)
}

// Get handles GET /api/v1/tools/{id}
// @Summary      Get tool
// @Description  Tool with its tags and version summaries
// @Tags         Tools
// @Produce      json
// @Param        id   path      int  true  "Tool ID"
// @Success      200  {object}  ToolResponse
// @Failure      404  {object}  apierror.Error
// @Router       /tools/{id} [get]
func (h *ToolHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.service.GetTool(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err, "Tool")
		return
	}
	writeData(w, http.StatusOK, toToolResponse(t))
}

// GetBySlug handles GET /api/v1/tools/slug/{slug}
// @Summary      Get tool by slug
// @Tags         Tools
// @Produce      json
// @Param        slug  path      string  true  "Tool slug"
// @Success      200   {object}  ToolResponse
// @Failure      404   {object}  apierror.Error
// @Router       /tools/slug/{slug} [get]
func (h *ToolHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.GetToolBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.handleServiceError(w, r, err, "Tool")
		return
	}
	writeData(w, http.StatusOK, toToolResponse(t))
}

// Create handles POST /api/v1/tools
// @Summary      Create tool
// @Tags         Tools
// @Accept       json
// @Produce      json
// @Param        body  body      app.CreateToolInput  true  "Tool"
// @Success      201   {object}  ToolResponse
// @Failure      400   {object}  apierror.Error
// @Failure      409   {object}  apierror.Error
// @Router       /tools [post]
func (h *ToolHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req app.CreateToolInput
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(req); err != nil {
		h.handleValidationError(w, r, err)
		return
	}

	t, err := h.service.CreateTool(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err, "Tool")
		return
	}
	writeData(w, http.StatusCreated, toToolResponse(t))
}

// Update handles PUT /api/v1/tools/{id}. Omitted fields are left unchanged.
// @Summary      Update tool
// @Tags         Tools
// @Accept       json
// @Produce      json
// @Param        id    path      int                  true  "Tool ID"
// @Param        body  body      app.UpdateToolInput  true  "Fields to change"
// @Success      200   {object}  ToolResponse
// @Failure      400   {object}  apierror.Error
// @Failure      404   {object}  apierror.Error
// @Failure      409   {object}  apierror.Error
// @Router       /tools/{id} [put]
func (h *ToolHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.UpdateToolInput
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(req); err != nil {
		h.handleValidationError(w, r, err)
		return
	}

	t, err := h.service.UpdateTool(r.Context(), id, req)
	if err != nil {
		h.handleServiceError(w, r, err, "Tool")
		return
	}
	writeData(w, http.StatusOK, toToolResponse(t))
}

// Delete handles DELETE /api/v1/tools/{id}. The tool is soft deleted.
// @Summary      Delete tool
// @Tags         Tools
// @Param        id   path  int  true  "Tool ID"
// @Success      204
// @Failure      404  {object}  apierror.Error
// @Router       /tools/{id} [delete]
func (h *ToolHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteTool(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err, "Tool")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AssignTags handles POST /api/v1/tools/{id}/tags, replacing the tool's tag set.
// @Summary      Replace tool tags
// @Tags         Tools
// @Accept       json
// @Produce      json
// @Param        id    path      int                  true  "Tool ID"
// @Param        body  body      app.AssignTagsInput  true  "Tag ids"
// @Success      200   {object}  ToolResponse
// @Failure      400   {object}  apierror.Error
// @Failure      404   {object}  apierror.Error
// @Router       /tools/{id}/tags [post]
func (h *ToolHandler) AssignTags(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.AssignTagsInput
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TagIDs == nil {
		req.TagIDs = []int64{}
	}
	if err := h.validator.Validate(req); err != nil {
		h.handleValidationError(w, r, err)
		return
	}

	t, err := h.service.AssignTags(r.Context(), id, req)
	if err != nil {
		h.handleServiceError(w, r, err, "Tool")
		return
	}
	writeData(w, http.StatusOK, toToolResponse(t))
}
