package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openctemio/toolstudio/pkg/domain/execution"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/pagination"
)

// ExecutionRepository implements execution.Repository using PostgreSQL.
type ExecutionRepository struct {
	db *DB
}

// NewExecutionRepository creates a new ExecutionRepository.
func NewExecutionRepository(db *DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

const executionColumns = `e.execution_id, e.tool_id, e.version_id, e.execution_request_id,
	e.input_payload, e.output_payload, e.error_message, e.error_stacktrace,
	e.execution_time_ms, e.http_status_code, e.status,
	e.agent_id, e.workflow_id, e.user_id, e.llm_source,
	e.started_at, e.completed_at, e.created_at, e.updated_at,
	COALESCE(t.name, ''), COALESCE(v.version_number, '')`

const executionFrom = ` FROM tool_executions e
	LEFT JOIN tools t ON t.tool_id = e.tool_id
	LEFT JOIN tool_versions v ON v.version_id = e.version_id`

func (r *ExecutionRepository) selectQuery() string {
	return "SELECT " + executionColumns + executionFrom
}

// Create inserts e or returns the execution already recorded under its request id.
// The unique constraint on execution_request_id arbitrates concurrent callers.
func (r *ExecutionRepository) Create(ctx context.Context, e *execution.Execution) (*execution.Execution, bool, error) {
	query := `
		INSERT INTO tool_executions (
			tool_id, version_id, execution_request_id, input_payload, status,
			agent_id, workflow_id, user_id, llm_source, started_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (execution_request_id) DO NOTHING
		RETURNING execution_id`

	var id shared.ID
	err := r.db.QueryRowContext(ctx, query,
		e.ToolID,
		e.VersionID,
		e.RequestID,
		[]byte(e.InputPayload),
		string(e.Status),
		nullString(e.AgentID),
		nullString(e.WorkflowID),
		nullString(e.UserID),
		nullString(e.LLMSource),
		e.StartedAt,
		e.CreatedAt,
		e.UpdatedAt,
	).Scan(&id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		existing, err := r.GetByRequestID(ctx, e.RequestID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	case err != nil:
		if isForeignKeyViolation(err) {
			return nil, false, shared.NewNotFoundError("tool version")
		}
		return nil, false, fmt.Errorf("failed to create execution: %w", err)
	}

	stored, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return stored, true, nil
}

// GetByID retrieves an execution by ID.
func (r *ExecutionRepository) GetByID(ctx context.Context, id shared.ID) (*execution.Execution, error) {
	return r.scanExecution(r.db.QueryRowContext(ctx, r.selectQuery()+" WHERE e.execution_id = $1", id))
}

// GetByRequestID retrieves an execution by its idempotency key.
func (r *ExecutionRepository) GetByRequestID(ctx context.Context, requestID string) (*execution.Execution, error) {
	return r.scanExecution(r.db.QueryRowContext(ctx, r.selectQuery()+" WHERE e.execution_request_id = $1", requestID))
}

// List returns a page of executions, newest started first.
func (r *ExecutionRepository) List(ctx context.Context, filter execution.Filter, page pagination.Pagination) (pagination.Result[*execution.Execution], error) {
	var result pagination.Result[*execution.Execution]

	whereClause, args := buildExecutionWhere(filter)
	where := ""
	if whereClause != "" {
		where = " WHERE " + whereClause
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tool_executions e"+where, args...).Scan(&total); err != nil {
		return result, fmt.Errorf("failed to count executions: %w", err)
	}

	query := fmt.Sprintf("%s%s ORDER BY e.started_at DESC, e.execution_id DESC LIMIT %d OFFSET %d",
		r.selectQuery(), where, page.Limit(), page.Offset())
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return result, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	items, err := r.collect(rows)
	if err != nil {
		return result, err
	}
	return pagination.NewResult(items, total, page), nil
}

func buildExecutionWhere(filter execution.Filter) (string, []any) {
	var conditions []string
	var args []any
	argIndex := 1

	add := func(cond string, v any) {
		conditions = append(conditions, fmt.Sprintf(cond, argIndex))
		args = append(args, v)
		argIndex++
	}

	if filter.ToolID != nil {
		add("e.tool_id = $%d", *filter.ToolID)
	}
	if filter.VersionID != nil {
		add("e.version_id = $%d", *filter.VersionID)
	}
	if filter.AgentID != "" {
		add("e.agent_id = $%d", filter.AgentID)
	}
	if filter.WorkflowID != "" {
		add("e.workflow_id = $%d", filter.WorkflowID)
	}
	if filter.UserID != "" {
		add("e.user_id = $%d", filter.UserID)
	}
	if filter.Status != "" {
		add("e.status = $%d", string(filter.Status))
	}
	if filter.From != nil {
		add("e.started_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("e.started_at <= $%d", *filter.To)
	}

	return strings.Join(conditions, " AND "), args
}

// Update writes the mutable columns, guarded by the status the caller read.
func (r *ExecutionRepository) Update(ctx context.Context, e *execution.Execution, from execution.Status) error {
	query := `
		UPDATE tool_executions
		SET output_payload = $3, error_message = $4, error_stacktrace = $5,
		    execution_time_ms = $6, http_status_code = $7, status = $8,
		    completed_at = $9, updated_at = $10
		WHERE execution_id = $1 AND status = $2`

	result, err := r.db.ExecContext(ctx, query,
		e.ID,
		string(from),
		nullJSON(e.OutputPayload),
		nullString(e.ErrorMessage),
		nullString(e.ErrorStacktrace),
		nullInt64(e.ExecutionTimeMs),
		nullInt(e.HTTPStatusCode),
		string(e.Status),
		nullTime(e.CompletedAt),
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	// Either the row is gone or its status moved underneath us.
	current, err := r.GetByID(ctx, e.ID)
	if err != nil {
		return err
	}
	return execution.NewTransitionError(current.Status, e.Status)
}

// Stats aggregates counts and timings, optionally for one tool.
func (r *ExecutionRepository) Stats(ctx context.Context, toolID *shared.ID) (*execution.Stats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'succeeded'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'running'),
			COUNT(*) FILTER (WHERE status = 'timeout'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			AVG(execution_time_ms)::float8,
			MIN(execution_time_ms),
			MAX(execution_time_ms)
		FROM tool_executions`
	var args []any
	if toolID != nil {
		query += " WHERE tool_id = $1"
		args = append(args, *toolID)
	}

	var (
		s     execution.Stats
		avg   sql.NullFloat64
		minMs sql.NullInt64
		maxMs sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&s.Total, &s.Succeeded, &s.Failed, &s.Pending, &s.Running, &s.TimedOut, &s.Cancelled,
		&avg, &minMs, &maxMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute execution stats: %w", err)
	}
	if avg.Valid {
		v := avg.Float64
		s.AvgExecutionMs = &v
	}
	s.MinExecutionMs = nullInt64Value(minMs)
	s.MaxExecutionMs = nullInt64Value(maxMs)
	return &s, nil
}

// ListStale returns executions stuck in status since before cutoff, oldest first.
func (r *ExecutionRepository) ListStale(ctx context.Context, status execution.Status, cutoff time.Time, limit int) ([]*execution.Execution, error) {
	query := r.selectQuery() + ` WHERE e.status = $1 AND e.started_at < $2 ORDER BY e.started_at ASC LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, string(status), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale executions: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *ExecutionRepository) collect(rows *sql.Rows) ([]*execution.Execution, error) {
	items := make([]*execution.Execution, 0)
	for rows.Next() {
		e, err := r.scanExecution(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate executions: %w", err)
	}
	return items, nil
}

func (r *ExecutionRepository) scanExecution(row scanner) (*execution.Execution, error) {
	var (
		e           execution.Execution
		input       []byte
		output      []byte
		errMsg      sql.NullString
		stacktrace  sql.NullString
		timeMs      sql.NullInt64
		httpStatus  sql.NullInt64
		status      string
		agentID     sql.NullString
		workflowID  sql.NullString
		userID      sql.NullString
		llmSource   sql.NullString
		completedAt sql.NullTime
	)

	err := row.Scan(
		&e.ID,
		&e.ToolID,
		&e.VersionID,
		&e.RequestID,
		&input,
		&output,
		&errMsg,
		&stacktrace,
		&timeMs,
		&httpStatus,
		&status,
		&agentID,
		&workflowID,
		&userID,
		&llmSource,
		&e.StartedAt,
		&completedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.ToolName,
		&e.VersionNumber,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NewNotFoundError("execution")
		}
		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	e.InputPayload = jsonValue(input)
	e.OutputPayload = jsonValue(output)
	e.ErrorMessage = nullStringValue(errMsg)
	e.ErrorStacktrace = nullStringValue(stacktrace)
	e.ExecutionTimeMs = nullInt64Value(timeMs)
	e.HTTPStatusCode = nullIntValue(httpStatus)
	e.Status = execution.Status(status)
	e.AgentID = nullStringValue(agentID)
	e.WorkflowID = nullStringValue(workflowID)
	e.UserID = nullStringValue(userID)
	e.LLMSource = nullStringValue(llmSource)
	e.CompletedAt = nullTimeValue(completedAt)
	return &e, nil
}
