package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/openctemio/toolstudio/internal/app"
	"github.com/openctemio/toolstudio/pkg/logger"
)

// =============================================================================
// Task Types
// =============================================================================

const (
	// TypeExecutionExpireStale moves long-running executions to timeout.
	TypeExecutionExpireStale = "execution:expire_stale"

	// QueueMaintenance holds periodic housekeeping tasks.
	QueueMaintenance = "maintenance"
)

// ExpireStalePayload describes who asked for a sweep.
type ExpireStalePayload struct {
	Trigger string `json:"trigger"`
}

// Sweep triggers.
const (
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
)

// NewExpireStaleTask creates a sweep task. Sweeps are idempotent, so a failed
// one is not retried; the next scheduled run picks the rows up.
func NewExpireStaleTask(trigger string) (*asynq.Task, error) {
	payload, err := json.Marshal(ExpireStalePayload{Trigger: trigger})
	if err != nil {
		return nil, fmt.Errorf("marshal expire stale payload: %w", err)
	}

	return asynq.NewTask(
		TypeExecutionExpireStale,
		payload,
		asynq.MaxRetry(0),
		asynq.Timeout(2*time.Minute),
		asynq.Queue(QueueMaintenance),
	), nil
}

// =============================================================================
// Task Handlers
// =============================================================================

// ExecutionTaskHandler handles execution ledger tasks.
type ExecutionTaskHandler struct {
	sweeper app.StaleSweeper
	logger  *logger.Logger
}

// NewExecutionTaskHandler creates a new ExecutionTaskHandler.
func NewExecutionTaskHandler(sweeper app.StaleSweeper, log *logger.Logger) *ExecutionTaskHandler {
	return &ExecutionTaskHandler{
		sweeper: sweeper,
		logger:  log.With("component", "execution_task_handler"),
	}
}

// RegisterHandlers registers the execution task handlers with the mux.
func (h *ExecutionTaskHandler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeExecutionExpireStale, h.HandleExpireStale)
}

// HandleExpireStale runs one stale execution sweep.
func (h *ExecutionTaskHandler) HandleExpireStale(ctx context.Context, task *asynq.Task) error {
	var payload ExpireStalePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	expired, err := h.sweeper.ExpireStale(ctx)
	if err != nil {
		h.logger.Error("stale execution sweep failed", "trigger", payload.Trigger, "error", err)
		return fmt.Errorf("expire stale executions: %w", err)
	}

	if expired > 0 {
		h.logger.Info("stale execution sweep completed", "trigger", payload.Trigger, "expired", expired)
	}
	return nil
}
