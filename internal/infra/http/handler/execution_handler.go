package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openctemio/toolstudio/internal/app"
	"github.com/openctemio/toolstudio/pkg/apierror"
	"github.com/openctemio/toolstudio/pkg/domain/execution"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/logger"
	"github.com/openctemio/toolstudio/pkg/pagination"
	"github.com/openctemio/toolstudio/pkg/validator"
)

// ExecutionService is the part of app.ExecutionService the handler uses.
type ExecutionService interface {
	CreateExecution(ctx context.Context, input app.CreateExecutionInput) (*execution.Execution, bool, error)
	UpdateExecution(ctx context.Context, id shared.ID, input app.UpdateExecutionInput) (*execution.Execution, error)
	GetExecution(ctx context.Context, id shared.ID) (*execution.Execution, error)
	GetExecutionByRequestID(ctx context.Context, requestID string) (*execution.Execution, error)
	ListExecutions(ctx context.Context, input app.ListExecutionsInput) (pagination.Result[*execution.Execution], error)
	GetStats(ctx context.Context, toolID *shared.ID) (*execution.Stats, error)
}

// ExecutionHandler handles HTTP requests for the execution ledger.
type ExecutionHandler struct {
	errorResponder
	service   ExecutionService
	validator *validator.Validator
}

// NewExecutionHandler creates a new ExecutionHandler.
func NewExecutionHandler(service ExecutionService, v *validator.Validator, log *logger.Logger) *ExecutionHandler {
	return &ExecutionHandler{
		errorResponder: errorResponder{logger: log.With("handler", "execution")},
		service:        service,
		validator:      v,
	}
}

// Create handles POST /api/v1/executions
// @Summary      Record execution
// @Description  Idempotent on execution_request_id. A replay answers 200 with the stored record.
// @Tags         Executions
// @Accept       json
// @Produce      json
// @Param        body  body      app.CreateExecutionInput  true  "Execution"
// @Success      201   {object}  ExecutionResponse
// @Success      200   {object}  ExecutionResponse
// @Failure      400   {object}  apierror.Error
// @Failure      404   {object}  apierror.Error
// @Router       /executions [post]
func (h *ExecutionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req app.CreateExecutionInput
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(req); err != nil {
		h.handleValidationError(w, r, err)
		return
	}

	e, created, err := h.service.CreateExecution(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err, "Version")
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, Response{
			Success: true,
			Data:    toExecutionResponse(e),
			Message: "Execution already exists",
		})
		return
	}
	writeData(w, http.StatusCreated, toExecutionResponse(e))
}

// Get handles GET /api/v1/executions/{id}
func (h *ExecutionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	e, err := h.service.GetExecution(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err, "Execution")
		return
	}
	writeData(w, http.StatusOK, toExecutionResponse(e))
}

// GetByRequestID handles GET /api/v1/executions/request/{requestId}
func (h *ExecutionHandler) GetByRequestID(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")
	if requestID == "" {
		writeError(w, r, apierror.BadRequest("Invalid requestId"))
		return
	}
	e, err := h.service.GetExecutionByRequestID(r.Context(), requestID)
	if err != nil {
		h.handleServiceError(w, r, err, "Execution")
		return
	}
	writeData(w, http.StatusOK, toExecutionResponse(e))
}

// List handles GET /api/v1/executions
// @Summary      List executions
// @Description  Newest first. Filters combine with AND.
// @Tags         Executions
// @Produce      json
// @Param        tool_id      query     int     false  "Tool"
// @Param        version_id   query     int     false  "Version"
// @Param        agent_id     query     string  false  "Agent"
// @Param        workflow_id  query     string  false  "Workflow"
// @Param        user_id      query     string  false  "User"
// @Param        status       query     string  false  "Status"
// @Param        from_date    query     string  false  "Started at or after"
// @Param        to_date      query     string  false  "Started at or before"
// @Param        page         query     int     false  "Page (1-based)"
// @Param        limit        query     int     false  "Page size, max 100"
// @Success      200  {object}  ListResponse[ExecutionResponse]
// @Failure      400  {object}  apierror.Error
// @Router       /executions [get]
func (h *ExecutionHandler) List(w http.ResponseWriter, r *http.Request) {
	input, err := listExecutionsInput(r)
	if err != nil {
		h.handleServiceError(w, r, err, "Execution")
		return
	}
	if err := h.validator.Validate(input); err != nil {
		h.handleValidationError(w, r, err)
		return
	}

	result, err := h.service.ListExecutions(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, r, err, "Execution")
		return
	}
	writeList(w, result, toExecutionResponse)
}

func listExecutionsInput(r *http.Request) (app.ListExecutionsInput, error) {
	q := r.URL.Query()
	page, limit := pageParams(r)
	input := app.ListExecutionsInput{
		AgentID:    q.Get("agent_id"),
		WorkflowID: q.Get("workflow_id"),
		UserID:     q.Get("user_id"),
		Status:     q.Get("status"),
		Page:       page,
		PerPage:    limit,
	}

	var err error
	if input.ToolID, err = parseQueryID(q.Get("tool_id"), "tool_id"); err != nil {
		return input, err
	}
	if input.VersionID, err = parseQueryID(q.Get("version_id"), "version_id"); err != nil {
		return input, err
	}
	if input.From, err = parseQueryTime(q.Get("from_date"), "from_date"); err != nil {
		return input, err
	}
	if input.To, err = parseQueryTime(q.Get("to_date"), "to_date"); err != nil {
		return input, err
	}
	return input, nil
}

// Update handles PUT /api/v1/executions/{id}
// @Summary      Update execution
// @Description  Reports a result. Terminal executions reject status changes with 409.
// @Tags         Executions
// @Accept       json
// @Produce      json
// @Param        id    path      int                       true  "Execution ID"
// @Param        body  body      app.UpdateExecutionInput  true  "Result"
// @Success      200   {object}  ExecutionResponse
// @Failure      400   {object}  apierror.Error
// @Failure      404   {object}  apierror.Error
// @Failure      409   {object}  apierror.Error
// @Router       /executions/{id} [put]
func (h *ExecutionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.UpdateExecutionInput
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(req); err != nil {
		h.handleValidationError(w, r, err)
		return
	}

	e, err := h.service.UpdateExecution(r.Context(), id, req)
	if err != nil {
		h.handleServiceError(w, r, err, "Execution")
		return
	}
	writeData(w, http.StatusOK, toExecutionResponse(e))
}

// Stats handles GET /api/v1/executions/stats?tool_id=
func (h *ExecutionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	toolID, err := parseQueryID(r.URL.Query().Get("tool_id"), "tool_id")
	if err != nil {
		h.handleServiceError(w, r, err, "Execution")
		return
	}
	stats, err := h.service.GetStats(r.Context(), toolID)
	if err != nil {
		h.handleServiceError(w, r, err, "Execution")
		return
	}
	writeData(w, http.StatusOK, stats)
}
