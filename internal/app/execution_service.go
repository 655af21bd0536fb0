package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/openctemio/toolstudio/internal/metrics"
	"github.com/openctemio/toolstudio/pkg/domain/execution"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/domain/toolversion"
	"github.com/openctemio/toolstudio/pkg/logger"
	"github.com/openctemio/toolstudio/pkg/pagination"
	"github.com/openctemio/toolstudio/pkg/schema"
)

// StaleTimeoutReason is recorded on executions expired by the stale sweep.
const StaleTimeoutReason = "execution exceeded stale timeout"

// ExecutionServiceConfig holds ledger settings.
type ExecutionServiceConfig struct {
	// ValidateInput checks input payloads against the version's input schema.
	ValidateInput bool
	// StaleAfter is how long an execution may stay running.
	StaleAfter time.Duration
	// StaleBatchSize bounds one sweep.
	StaleBatchSize int
}

// ExecutionService records and advances tool executions.
type ExecutionService struct {
	executionRepo execution.Repository
	versionRepo   toolversion.Repository
	schemas       *schema.Registry
	cfg           ExecutionServiceConfig
	now           func() time.Time
	logger        *logger.Logger
}

// NewExecutionService creates a new ExecutionService.
func NewExecutionService(
	executionRepo execution.Repository,
	versionRepo toolversion.Repository,
	schemas *schema.Registry,
	cfg ExecutionServiceConfig,
	log *logger.Logger,
) *ExecutionService {
	if schemas == nil {
		schemas = schema.NewRegistry()
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	if cfg.StaleBatchSize <= 0 {
		cfg.StaleBatchSize = 500
	}
	return &ExecutionService{
		executionRepo: executionRepo,
		versionRepo:   versionRepo,
		schemas:       schemas,
		cfg:           cfg,
		now:           time.Now,
		logger:        log.With("service", "execution"),
	}
}

// CreateExecutionInput represents the input for recording an execution.
type CreateExecutionInput struct {
	ToolID             int64           `json:"tool_id" validate:"required,gt=0"`
	VersionID          int64           `json:"version_id" validate:"required,gt=0"`
	ExecutionRequestID string          `json:"execution_request_id" validate:"required,max=255"`
	InputPayload       json.RawMessage `json:"input_payload" validate:"required"`
	AgentID            string          `json:"agent_id" validate:"max=255"`
	WorkflowID         string          `json:"workflow_id" validate:"max=255"`
	UserID             string          `json:"user_id" validate:"max=255"`
	LLMSource          string          `json:"llm_source" validate:"max=255"`
	// Status is pending unless a caller records an execution it already started.
	Status string `json:"-"`
	Source string `json:"-"`
}

// CreateExecution records an execution. A known execution_request_id
// returns the stored record unchanged with created=false.
func (s *ExecutionService) CreateExecution(ctx context.Context, input CreateExecutionInput) (*execution.Execution, bool, error) {
	ctx, span := tracer.Start(ctx, "ExecutionService.CreateExecution")
	defer span.End()
	span.SetAttributes(attribute.String("execution.request_id", input.ExecutionRequestID))

	source := input.Source
	if source == "" {
		source = metrics.SourceAPI
	}

	// Replays skip version checks so a retried request gets the same answer
	// even after the version changed.
	existing, err := s.executionRepo.GetByRequestID(ctx, input.ExecutionRequestID)
	if err == nil {
		metrics.ExecutionsDeduplicatedTotal.WithLabelValues(source).Inc()
		return existing, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, false, err
	}

	e, err := execution.NewExecution(execution.NewParams{
		ToolID:       shared.ID(input.ToolID),
		VersionID:    shared.ID(input.VersionID),
		RequestID:    input.ExecutionRequestID,
		InputPayload: input.InputPayload,
		AgentID:      input.AgentID,
		WorkflowID:   input.WorkflowID,
		UserID:       input.UserID,
		LLMSource:    input.LLMSource,
		Status:       execution.Status(input.Status),
	})
	if err != nil {
		return nil, false, err
	}

	version, err := s.versionRepo.GetByID(ctx, e.VersionID)
	if err != nil {
		return nil, false, err
	}
	if version.ToolID != e.ToolID {
		return nil, false, shared.NewValidationError("version_id", "version does not belong to the tool")
	}
	if s.cfg.ValidateInput {
		if err := s.schemas.Validate(version.InputSchema, e.InputPayload); err != nil {
			return nil, false, shared.NewValidationError("input_payload", err.Error())
		}
	}

	stored, created, err := s.executionRepo.Create(ctx, e)
	if err != nil {
		return nil, false, err
	}
	if !created {
		metrics.ExecutionsDeduplicatedTotal.WithLabelValues(source).Inc()
		return stored, false, nil
	}

	metrics.ExecutionsRecordedTotal.WithLabelValues(string(stored.Status), source).Inc()
	s.logger.Info("execution recorded",
		"execution_id", stored.ID.Int64(),
		"tool_id", stored.ToolID.Int64(),
		"version_id", stored.VersionID.Int64(),
		"status", stored.Status,
		"source", source,
	)
	return stored, true, nil
}

// UpdateExecutionInput carries a partial update of an execution.
type UpdateExecutionInput struct {
	OutputPayload   *json.RawMessage `json:"output_payload"`
	ErrorMessage    *string          `json:"error_message"`
	ErrorStacktrace *string          `json:"error_stacktrace"`
	ExecutionTimeMs *int64           `json:"execution_time_ms" validate:"omitempty,gte=0"`
	Status          *string          `json:"status" validate:"omitempty,execution_status"`
	HTTPStatusCode  *int             `json:"http_status_code" validate:"omitempty,gte=100,lte=599"`
	CompletedAt     *time.Time       `json:"completed_at"`
}

// UpdateExecution applies the supplied fields under the status machine.
func (s *ExecutionService) UpdateExecution(ctx context.Context, id shared.ID, input UpdateExecutionInput) (*execution.Execution, error) {
	e, err := s.executionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := e.Status

	patch := execution.Patch{
		OutputPayload:   input.OutputPayload,
		ErrorMessage:    input.ErrorMessage,
		ErrorStacktrace: input.ErrorStacktrace,
		ExecutionTimeMs: input.ExecutionTimeMs,
		HTTPStatusCode:  input.HTTPStatusCode,
		CompletedAt:     input.CompletedAt,
	}
	if input.Status != nil {
		status := execution.Status(*input.Status)
		patch.Status = &status
	}

	if err := s.advance(ctx, e, from, patch); err != nil {
		return nil, err
	}
	return e, nil
}

// advance applies patch to e and persists it guarded by from.
func (s *ExecutionService) advance(ctx context.Context, e *execution.Execution, from execution.Status, patch execution.Patch) error {
	if err := e.Apply(patch, s.now()); err != nil {
		if errors.Is(err, shared.ErrInvalidTransition) {
			metrics.ExecutionTransitionsRejectedTotal.Inc()
		}
		return err
	}
	if err := s.executionRepo.Update(ctx, e, from); err != nil {
		if errors.Is(err, shared.ErrInvalidTransition) {
			metrics.ExecutionTransitionsRejectedTotal.Inc()
		}
		return err
	}

	if e.Status != from {
		metrics.ExecutionTransitionsTotal.WithLabelValues(string(from), string(e.Status)).Inc()
		if e.Status.IsTerminal() && e.ExecutionTimeMs != nil {
			metrics.ExecutionDuration.WithLabelValues(string(e.Status)).
				Observe(float64(*e.ExecutionTimeMs) / 1000)
		}
	}
	return nil
}

// GetExecution returns an execution by ID.
func (s *ExecutionService) GetExecution(ctx context.Context, id shared.ID) (*execution.Execution, error) {
	return s.executionRepo.GetByID(ctx, id)
}

// GetExecutionByRequestID returns the execution recorded under an idempotency key.
func (s *ExecutionService) GetExecutionByRequestID(ctx context.Context, requestID string) (*execution.Execution, error) {
	return s.executionRepo.GetByRequestID(ctx, requestID)
}

// ListExecutionsInput represents the query of a ledger listing.
type ListExecutionsInput struct {
	ToolID     *shared.ID
	VersionID  *shared.ID
	AgentID    string
	WorkflowID string
	UserID     string
	Status     string `json:"status" validate:"omitempty,execution_status"`
	From       *time.Time
	To         *time.Time
	Page       int
	PerPage    int
}

// ListExecutions returns a page of executions, newest first.
func (s *ExecutionService) ListExecutions(ctx context.Context, input ListExecutionsInput) (pagination.Result[*execution.Execution], error) {
	if input.From != nil && input.To != nil && input.To.Before(*input.From) {
		return pagination.Result[*execution.Execution]{}, shared.NewValidationError("to_date", "to_date must not be before from_date")
	}
	filter := execution.Filter{
		ToolID:     input.ToolID,
		VersionID:  input.VersionID,
		AgentID:    input.AgentID,
		WorkflowID: input.WorkflowID,
		UserID:     input.UserID,
		Status:     execution.Status(input.Status),
		From:       input.From,
		To:         input.To,
	}
	return s.executionRepo.List(ctx, filter, pagination.New(input.Page, input.PerPage))
}

// GetStats aggregates the ledger, optionally for one tool.
func (s *ExecutionService) GetStats(ctx context.Context, toolID *shared.ID) (*execution.Stats, error) {
	return s.executionRepo.Stats(ctx, toolID)
}

// ExpireStale moves executions running longer than StaleAfter to timeout.
// It returns how many were expired. Rows advanced concurrently are skipped.
func (s *ExecutionService) ExpireStale(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "ExecutionService.ExpireStale")
	defer span.End()

	now := s.now()
	cutoff := now.Add(-s.cfg.StaleAfter)
	stale, err := s.executionRepo.ListStale(ctx, execution.StatusRunning, cutoff, s.cfg.StaleBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale executions: %w", err)
	}

	expired := 0
	for _, e := range stale {
		from := e.Status
		status := execution.StatusTimeout
		reason := StaleTimeoutReason
		err := s.advance(ctx, e, from, execution.Patch{Status: &status, ErrorMessage: &reason})
		switch {
		case err == nil:
			expired++
		case errors.Is(err, shared.ErrInvalidTransition), errors.Is(err, shared.ErrNotFound):
			s.logger.Debug("stale execution advanced concurrently", "execution_id", e.ID.Int64())
		default:
			return expired, fmt.Errorf("expire execution %d: %w", e.ID.Int64(), err)
		}
	}

	if expired > 0 {
		metrics.StaleExecutionsExpiredTotal.Add(float64(expired))
		s.logger.Info("expired stale executions", "count", expired, "cutoff", cutoff)
	}
	span.SetAttributes(attribute.Int("executions.expired", expired))
	return expired, nil
}
