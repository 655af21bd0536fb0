package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openctemio/toolstudio/internal/app"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/domain/tag"
	"github.com/openctemio/toolstudio/pkg/domain/tool"
	"github.com/openctemio/toolstudio/pkg/logger"
	"github.com/openctemio/toolstudio/pkg/validator"
)

// TagService is the part of app.TagService the handler uses.
type TagService interface {
	ListTags(ctx context.Context, isActive *bool) ([]*tag.Tag, error)
	GetTag(ctx context.Context, id shared.ID) (*tag.Tag, error)
	GetTagBySlug(ctx context.Context, slug string) (*tag.Tag, error)
	ListToolsByTag(ctx context.Context, id shared.ID) ([]*tool.Tool, error)
	CreateTag(ctx context.Context, input app.CreateTagInput) (*tag.Tag, error)
	UpdateTag(ctx context.Context, id shared.ID, input app.UpdateTagInput) (*tag.Tag, error)
	DeleteTag(ctx context.Context, id shared.ID) error
}

// TagHandler handles HTTP requests for tags.
type TagHandler struct {
	errorResponder
	service   TagService
	validator *validator.Validator
}

// NewTagHandler creates a new TagHandler.
func NewTagHandler(service TagService, v *validator.Validator, log *logger.Logger) *TagHandler {
	return &TagHandler{
		errorResponder: errorResponder{logger: log.With("handler", "tag")},
		service:        service,
		validator:      v,
	}
}

// List handles GET /api/v1/tags?is_active=
func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	isActive, err := parseQueryBool(r.URL.Query().Get("is_active"), "is_active")
	if err != nil {
		h.handleServiceError(w, r, err, "")
		return
	}
	tags, err := h.service.ListTags(r.Context(), isActive)
	if err != nil {
		h.handleServiceError(w, r, err, "Tag")
		return
	}
	writeData(w, http.StatusOK, mapSlice(tags, toTagResponse))
}

func (h *TagHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.service.GetTag(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err, "Tag")
		return
	}
	writeData(w, http.StatusOK, toTagResponse(t))
}

func (h *TagHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.GetTagBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.handleServiceError(w, r, err, "Tag")
		return
	}
	writeData(w, http.StatusOK, toTagResponse(t))
}

// ListTools handles GET /api/v1/tags/{id}/tools: live tools carrying the tag.
func (h *TagHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	tools, err := h.service.ListToolsByTag(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err, "Tag")
		return
	}
	writeData(w, http.StatusOK, mapSlice(tools, toToolResponse))
}

func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req app.CreateTagInput
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(req); err != nil {
		h.handleValidationError(w, r, err)
		return
	}
	t, err := h.service.CreateTag(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err, "Tag")
		return
	}
	writeData(w, http.StatusCreated, toTagResponse(t))
}

func (h *TagHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.UpdateTagInput
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(req); err != nil {
		h.handleValidationError(w, r, err)
		return
	}
	t, err := h.service.UpdateTag(r.Context(), id, req)
	if err != nil {
		h.handleServiceError(w, r, err, "Tag")
		return
	}
	writeData(w, http.StatusOK, toTagResponse(t))
}

// Delete handles DELETE /api/v1/tags/{id}. A tag still on a live tool is a
// 409 TAG_IN_USE.
func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteTag(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err, "Tag")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
