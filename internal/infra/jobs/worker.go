package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/openctemio/toolstudio/internal/app"
	"github.com/openctemio/toolstudio/pkg/logger"
)

// WorkerConfig holds the configuration for the job worker.
type WorkerConfig struct {
	Concurrency int
}

// WorkerOption is a functional option for configuring the Worker.
type WorkerOption func(*Worker)

// Worker processes background jobs.
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	logger  *logger.Logger
	sweeper app.StaleSweeper
}

// WithStaleSweeper registers the stale execution sweep handler.
func WithStaleSweeper(sweeper app.StaleSweeper) WorkerOption {
	return func(w *Worker) {
		w.sweeper = sweeper
	}
}

// NewWorker creates a new background job worker.
func NewWorker(opt asynq.RedisConnOpt, cfg WorkerConfig, log *logger.Logger, opts ...WorkerOption) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"default":        5,
			QueueMaintenance: 2,
		},
	})

	w := &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		logger: log.With("component", "job_worker"),
	}
	for _, o := range opts {
		o(w)
	}

	if w.sweeper != nil {
		NewExecutionTaskHandler(w.sweeper, log).RegisterHandlers(w.mux)
		w.logger.Info("execution task handlers registered")
	}
	return w
}

// Handler returns the task mux.
func (w *Worker) Handler() asynq.Handler {
	return w.mux
}

// Start starts the worker.
func (w *Worker) Start() error {
	w.logger.Info("starting job worker")
	return w.server.Start(w.mux)
}

// Stop stops the worker gracefully.
func (w *Worker) Stop() {
	w.logger.Info("stopping job worker")
	w.server.Shutdown()
}

// Run runs the worker until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.Start(); err != nil {
		return fmt.Errorf("worker error: %w", err)
	}
	<-ctx.Done()
	w.Stop()
	return nil
}
