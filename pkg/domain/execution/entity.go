// Package execution defines the execution ledger: one record per invocation
// attempt of a tool version, keyed by a caller-supplied idempotency key.
package execution

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openctemio/toolstudio/pkg/domain/shared"
)

// Execution records one invocation of a tool version.
type Execution struct {
	ID              shared.ID
	ToolID          shared.ID
	VersionID       shared.ID
	RequestID       string
	InputPayload    json.RawMessage
	OutputPayload   json.RawMessage
	ErrorMessage    string
	ErrorStacktrace string
	ExecutionTimeMs *int64
	HTTPStatusCode  *int
	Status          Status
	AgentID         string
	WorkflowID      string
	UserID          string
	LLMSource       string
	StartedAt       time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Joined on reads.
	ToolName      string
	VersionNumber string
}

// NewParams holds the fields accepted when recording an execution.
type NewParams struct {
	ToolID       shared.ID
	VersionID    shared.ID
	RequestID    string
	InputPayload json.RawMessage
	AgentID      string
	WorkflowID   string
	UserID       string
	LLMSource    string
	// Status defaults to pending. Only pending and running are accepted.
	Status Status
}

// NewExecution validates params and builds an execution started now.
func NewExecution(p NewParams) (*Execution, error) {
	if p.ToolID.IsZero() {
		return nil, shared.NewValidationError("tool_id", "tool_id is required")
	}
	if p.VersionID.IsZero() {
		return nil, shared.NewValidationError("version_id", "version_id is required")
	}
	if p.RequestID == "" {
		return nil, shared.NewValidationError("execution_request_id", "execution_request_id is required")
	}
	if !isDocument(p.InputPayload) {
		return nil, shared.NewValidationError("input_payload", "input_payload is required")
	}
	status := p.Status
	if status == "" {
		status = StatusPending
	}
	if status != StatusPending && status != StatusRunning {
		return nil, shared.NewValidationError("status", "a new execution must start as pending or running")
	}

	now := time.Now().UTC()
	return &Execution{
		ToolID:       p.ToolID,
		VersionID:    p.VersionID,
		RequestID:    p.RequestID,
		InputPayload: p.InputPayload,
		Status:       status,
		AgentID:      p.AgentID,
		WorkflowID:   p.WorkflowID,
		UserID:       p.UserID,
		LLMSource:    p.LLMSource,
		StartedAt:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Patch carries a partial update. Nil fields are left unchanged.
type Patch struct {
	OutputPayload   *json.RawMessage
	ErrorMessage    *string
	ErrorStacktrace *string
	ExecutionTimeMs *int64
	Status          *Status
	HTTPStatusCode  *int
	CompletedAt     *time.Time
}

// Apply validates the patch against the lifecycle and applies it.
// Entering a terminal status stamps CompletedAt with now unless the
// patch supplies it.
func (e *Execution) Apply(p Patch, now time.Time) error {
	if e.Status.IsTerminal() {
		return NewTransitionError(e.Status, e.Status)
	}
	next := *e
	if p.Status != nil {
		if !p.Status.IsValid() {
			return shared.NewValidationError("status", fmt.Sprintf("invalid status: %s", *p.Status))
		}
		if !e.Status.CanTransitionTo(*p.Status) {
			return NewTransitionError(e.Status, *p.Status)
		}
		next.Status = *p.Status
	}
	if p.OutputPayload != nil {
		next.OutputPayload = *p.OutputPayload
	}
	if p.ErrorMessage != nil {
		next.ErrorMessage = *p.ErrorMessage
	}
	if p.ErrorStacktrace != nil {
		next.ErrorStacktrace = *p.ErrorStacktrace
	}
	if p.ExecutionTimeMs != nil {
		if *p.ExecutionTimeMs < 0 {
			return shared.NewValidationError("execution_time_ms", "execution_time_ms must not be negative")
		}
		next.ExecutionTimeMs = p.ExecutionTimeMs
	}
	if p.HTTPStatusCode != nil {
		if *p.HTTPStatusCode < 100 || *p.HTTPStatusCode > 599 {
			return shared.NewValidationError("http_status_code", "http_status_code must be between 100 and 599")
		}
		next.HTTPStatusCode = p.HTTPStatusCode
	}
	switch {
	case p.CompletedAt != nil:
		completed := p.CompletedAt.UTC()
		next.CompletedAt = &completed
	case next.Status.IsTerminal() && next.CompletedAt == nil:
		completed := now.UTC()
		next.CompletedAt = &completed
	}
	next.UpdatedAt = now.UTC()
	*e = next
	return nil
}

// Expire moves a running execution to timeout.
func (e *Execution) Expire(reason string, now time.Time) error {
	status := StatusTimeout
	return e.Apply(Patch{Status: &status, ErrorMessage: &reason}, now)
}

// Duration returns the wall-clock time between start and completion.
func (e *Execution) Duration() (time.Duration, bool) {
	if e.CompletedAt == nil {
		return 0, false
	}
	return e.CompletedAt.Sub(e.StartedAt), true
}

// NewTransitionError reports a rejected lifecycle move.
func NewTransitionError(from, to Status) error {
	return &shared.DomainError{
		Code:    "INVALID_TRANSITION",
		Message: fmt.Sprintf("cannot transition execution from %s to %s", from, to),
		Field:   "status",
		Err:     shared.ErrInvalidTransition,
	}
}

func isDocument(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false
	}
	return json.Valid(trimmed)
}
