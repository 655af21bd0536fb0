package execution

import (
	"context"
	"time"

	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/pagination"
)

// Filter defines filtering options for ledger listings.
type Filter struct {
	ToolID     *shared.ID
	VersionID  *shared.ID
	AgentID    string
	WorkflowID string
	UserID     string
	Status     Status
	From       *time.Time
	To         *time.Time
}

// Stats aggregates the ledger, optionally scoped to one tool.
type Stats struct {
	Total          int64    `json:"total_executions"`
	Succeeded      int64    `json:"successful_executions"`
	Failed         int64    `json:"failed_executions"`
	Pending        int64    `json:"pending_executions"`
	Running        int64    `json:"running_executions"`
	TimedOut       int64    `json:"timeout_executions"`
	Cancelled      int64    `json:"cancelled_executions"`
	AvgExecutionMs *float64 `json:"avg_execution_time_ms"`
	MinExecutionMs *int64   `json:"min_execution_time_ms"`
	MaxExecutionMs *int64   `json:"max_execution_time_ms"`
}

// Repository defines the interface for ledger persistence.
type Repository interface {
	// Create inserts e unless its request id is already recorded, in which
	// case the stored execution is returned with created=false. Concurrent
	// callers with the same request id observe exactly one row.
	Create(ctx context.Context, e *Execution) (stored *Execution, created bool, err error)
	GetByID(ctx context.Context, id shared.ID) (*Execution, error)
	GetByRequestID(ctx context.Context, requestID string) (*Execution, error)
	// List orders by started_at, newest first.
	List(ctx context.Context, filter Filter, page pagination.Pagination) (pagination.Result[*Execution], error)
	// Update persists e only if the stored status still equals from.
	// Returns shared.ErrInvalidTransition when another writer got there first.
	Update(ctx context.Context, e *Execution, from Status) error
	Stats(ctx context.Context, toolID *shared.ID) (*Stats, error)
	// ListStale returns executions in status started before cutoff, oldest first.
	ListStale(ctx context.Context, status Status, cutoff time.Time, limit int) ([]*Execution, error)
}
