package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/openctemio/toolstudio/internal/app"
	"github.com/openctemio/toolstudio/pkg/apierror"
	"github.com/openctemio/toolstudio/pkg/domain/catalog"
	"github.com/openctemio/toolstudio/pkg/domain/execution"
	"github.com/openctemio/toolstudio/pkg/logger"
	"github.com/openctemio/toolstudio/pkg/validator"
)

// CatalogService is the part of app.CatalogService the MCP routes use.
type CatalogService interface {
	ListEntries(ctx context.Context) ([]catalog.Entry, error)
	Invoke(ctx context.Context, input app.InvokeInput) (*execution.Execution, error)
}

// MCPHandler serves the JSON compatibility routes under /api/mcp for agents
// that do not speak the MCP transport.
type MCPHandler struct {
	errorResponder
	service   CatalogService
	validator *validator.Validator
}

// NewMCPHandler creates a new MCPHandler.
func NewMCPHandler(service CatalogService, v *validator.Validator, log *logger.Logger) *MCPHandler {
	return &MCPHandler{
		errorResponder: errorResponder{logger: log.With("handler", "mcp")},
		service:        service,
		validator:      v,
	}
}

// ToolListResponse is the body of POST /api/mcp/tools/list.
type ToolListResponse struct {
	Tools []CatalogToolResponse `json:"tools"`
}

// ListTools handles POST /api/mcp/tools/list
func (h *MCPHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListEntries(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err, "Tool")
		return
	}
	writeJSON(w, http.StatusOK, ToolListResponse{Tools: mapSlice(entries, toCatalogToolResponse)})
}

// ToolExecuteResponse is the body of POST /api/mcp/tools/execute.
type ToolExecuteResponse struct {
	ExecutionID int64           `json:"executionId"`
	Status      string          `json:"status"`
	Input       json.RawMessage `json:"input"`
}

// ExecuteTool handles POST /api/mcp/tools/execute. The execution is recorded
// as running under a generated request id; the caller reports the result
// through PUT /api/v1/executions/{id}.
func (h *MCPHandler) ExecuteTool(w http.ResponseWriter, r *http.Request) {
	var req app.InvokeInput
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Input) == 0 || string(req.Input) == "null" {
		writeError(w, r, apierror.ValidationFailed("Missing required fields",
			[]apierror.ValidationError{{Field: "input", Message: "input is required"}}))
		return
	}
	if err := h.validator.Validate(req); err != nil {
		h.handleValidationError(w, r, err)
		return
	}

	e, err := h.service.Invoke(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err, "Tool version")
		return
	}
	writeJSON(w, http.StatusOK, ToolExecuteResponse{
		ExecutionID: e.ID.Int64(),
		Status:      string(e.Status),
		Input:       e.InputPayload,
	})
}
