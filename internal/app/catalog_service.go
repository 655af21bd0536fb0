package app

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/openctemio/toolstudio/internal/metrics"
	"github.com/openctemio/toolstudio/pkg/domain/catalog"
	"github.com/openctemio/toolstudio/pkg/domain/execution"
	"github.com/openctemio/toolstudio/pkg/logger"
)

const catalogKey = "entries"

// CatalogService exposes the invocable tools to agents and records their
// invocations in the ledger.
type CatalogService struct {
	reader     catalog.Reader
	executions *ExecutionService
	cache      Cache[[]catalog.Entry]
	logger     *logger.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(reader catalog.Reader, executions *ExecutionService, log *logger.Logger) *CatalogService {
	return &CatalogService{
		reader:     reader,
		executions: executions,
		logger:     log.With("service", "catalog"),
	}
}

// SetCache enables caching of the entry list.
func (s *CatalogService) SetCache(cache Cache[[]catalog.Entry]) {
	s.cache = cache
}

// InvalidateCatalog drops the cached entry list.
func (s *CatalogService) InvalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, catalogKey); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", "error", err)
	}
}

// ListEntries returns every live, active tool with an active version.
func (s *CatalogService) ListEntries(ctx context.Context) ([]catalog.Entry, error) {
	entries, err := readThrough(ctx, s.cache, catalogKey, func(ctx context.Context) (*[]catalog.Entry, error) {
		list, err := s.reader.ListEntries(ctx)
		if err != nil {
			return nil, err
		}
		return &list, nil
	})
	if err != nil {
		return nil, err
	}
	return *entries, nil
}

// GetEntry returns the invocable tool with slug.
func (s *CatalogService) GetEntry(ctx context.Context, slug string) (*catalog.Entry, error) {
	return s.reader.GetEntry(ctx, slug)
}

// InvokeInput identifies the tool version an agent calls.
type InvokeInput struct {
	ToolID    int64           `json:"tool_id" validate:"required,gt=0"`
	VersionID int64           `json:"version_id" validate:"required,gt=0"`
	Input     json.RawMessage `json:"input"`
	AgentID   string          `json:"agent_id" validate:"max=255"`
	LLMSource string          `json:"llm_source" validate:"max=255"`
}

// Invoke records a running execution of the version under a fresh request id.
func (s *CatalogService) Invoke(ctx context.Context, input InvokeInput) (*execution.Execution, error) {
	payload := input.Input
	if len(payload) == 0 || string(payload) == "null" {
		payload = json.RawMessage(`{}`)
	}

	e, _, err := s.executions.CreateExecution(ctx, CreateExecutionInput{
		ToolID:             input.ToolID,
		VersionID:          input.VersionID,
		ExecutionRequestID: uuid.NewString(),
		InputPayload:       payload,
		AgentID:            input.AgentID,
		LLMSource:          input.LLMSource,
		Status:             string(execution.StatusRunning),
		Source:             metrics.SourceMCP,
	})
	return e, err
}

// InvokeBySlug resolves the tool's active version and invokes it.
func (s *CatalogService) InvokeBySlug(ctx context.Context, slug string, input json.RawMessage, llmSource string) (*execution.Execution, *catalog.Entry, error) {
	entry, err := s.reader.GetEntry(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	e, err := s.Invoke(ctx, InvokeInput{
		ToolID:    entry.ToolID.Int64(),
		VersionID: entry.VersionID.Int64(),
		Input:     input,
		LLMSource: llmSource,
	})
	if err != nil {
		return nil, entry, err
	}
	return e, entry, nil
}
