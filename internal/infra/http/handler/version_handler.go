package handler

import (
	"context"
	"net/http"

	"github.com/openctemio/toolstudio/internal/app"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/domain/toolversion"
	"github.com/openctemio/toolstudio/pkg/logger"
	"github.com/openctemio/toolstudio/pkg/validator"
)

// VersionService is the part of app.VersionService the handler uses.
type VersionService interface {
	ListVersions(ctx context.Context, toolID shared.ID) ([]*toolversion.Version, error)
	GetVersion(ctx context.Context, id shared.ID) (*toolversion.Version, error)
	GetActiveVersion(ctx context.Context, toolID shared.ID) (*toolversion.Version, error)
	CreateVersion(ctx context.Context, toolID shared.ID, input app.CreateVersionInput) (*toolversion.Version, error)
	UpdateVersion(ctx context.Context, id shared.ID, input app.UpdateVersionInput) (*toolversion.Version, error)
	ActivateVersion(ctx context.Context, id shared.ID) (*toolversion.Version, error)
	DeleteVersion(ctx context.Context, id shared.ID) error
}

// VersionHandler handles HTTP requests for tool versions.
type VersionHandler struct {
	errorResponder
	service   VersionService
	validator *validator.Validator
}

// NewVersionHandler creates a new VersionHandler.
func NewVersionHandler(service VersionService, v *validator.Validator, log *logger.Logger) *VersionHandler {
	return &VersionHandler{
		errorResponder: errorResponder{logger: log.With("handler", "version")},
		service:        service,
		validator:      v,
	}
}

// ListByTool handles GET /api/v1/tools/{toolId}/versions, newest first.
func (h *VersionHandler) ListByTool(w http.ResponseWriter, r *http.Request) {
	toolID, ok := pathID(w, r, "toolId")
	if !ok {
		return
	}
	versions, err := h.service.ListVersions(r.Context(), toolID)
	if err != nil {
		h.handleServiceError(w, r, err, "Tool")
		return
	}
	writeData(w, http.StatusOK, mapSlice(versions, toVersionResponse))
}

// GetActive handles GET /api/v1/tools/{toolId}/versions/active
func (h *VersionHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	toolID, ok := pathID(w, r, "toolId")
	if !ok {
		return
	}
	v, err := h.service.GetActiveVersion(r.Context(), toolID)
	if err != nil {
		h.handleServiceError(w, r, err, "Active version")
		return
	}
	writeData(w, http.StatusOK, toVersionResponse(v))
}

// Create handles POST /api/v1/tools/{toolId}/versions
// @Summary      Create version
// @Description  A version created active deactivates its siblings atomically
// @Tags         Versions
// @Accept       json
// @Produce      json
// @Param        toolId  path      int                     true  "Tool ID"
// @Param        body    body      app.CreateVersionInput  true  "Version"
// @Success      201     {object}  VersionResponse
// @Failure      400     {object}  apierror.Error
// @Failure      404     {object}  apierror.Error
// @Router       /tools/{toolId}/versions [post]
func (h *VersionHandler) Create(w http.ResponseWriter, r *http.Request) {
	toolID, ok := pathID(w, r, "toolId")
	if !ok {
		return
	}
	var req app.CreateVersionInput
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(req); err != nil {
		h.handleValidationError(w, r, err)
		return
	}

	v, err := h.service.CreateVersion(r.Context(), toolID, req)
	if err != nil {
		h.handleServiceError(w, r, err, "Tool")
		return
	}
	writeData(w, http.StatusCreated, toVersionResponse(v))
}

// Get handles GET /api/v1/versions/{id}
func (h *VersionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	v, err := h.service.GetVersion(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err, "Version")
		return
	}
	writeData(w, http.StatusOK, toVersionResponse(v))
}

// Update handles PUT /api/v1/versions/{id}. is_active=true deactivates the
// siblings in the same transaction as the field update.
func (h *VersionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.UpdateVersionInput
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(req); err != nil {
		h.handleValidationError(w, r, err)
		return
	}

	v, err := h.service.UpdateVersion(r.Context(), id, req)
	if err != nil {
		h.handleServiceError(w, r, err, "Version")
		return
	}
	writeData(w, http.StatusOK, toVersionResponse(v))
}

// Activate handles POST /api/v1/versions/{id}/activate
// @Summary      Activate version
// @Description  Deactivates every sibling and activates this version in one transaction
// @Tags         Versions
// @Produce      json
// @Param        id   path      int  true  "Version ID"
// @Success      200  {object}  VersionResponse
// @Failure      404  {object}  apierror.Error
// @Router       /versions/{id}/activate [post]
func (h *VersionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	v, err := h.service.ActivateVersion(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err, "Version")
		return
	}
	writeData(w, http.StatusOK, toVersionResponse(v))
}

// Delete handles DELETE /api/v1/versions/{id}
func (h *VersionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteVersion(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err, "Version")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
