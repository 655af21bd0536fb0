package main

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/openctemio/toolstudio/internal/app"
	"github.com/openctemio/toolstudio/internal/config"
	"github.com/openctemio/toolstudio/internal/infra/jobs"
	"github.com/openctemio/toolstudio/pkg/logger"
)

// Workers holds the background workers. Exactly one of the asynq trio
// (JobWorker, Scheduler, JobClient) or Expirer is set.
type Workers struct {
	JobWorker *jobs.Worker
	Scheduler *jobs.Scheduler
	JobClient *jobs.Client
	Expirer   *app.StaleExecutionExpirer

	expireInterval time.Duration
}

// WorkerDeps contains dependencies needed to create workers.
type WorkerDeps struct {
	Config   *config.Config
	Log      *logger.Logger
	Services *Services
}

// NewWorkers initializes the stale execution sweep. With WORKER_ENABLED it
// runs as a scheduled asynq task shared by every replica; otherwise each
// process sweeps in-process.
func NewWorkers(deps *WorkerDeps) (*Workers, error) {
	cfg := deps.Config
	log := deps.Log
	w := &Workers{expireInterval: cfg.Worker.ExpireInterval}

	if !cfg.Worker.Enabled {
		w.Expirer = app.NewStaleExecutionExpirer(deps.Services.Execution, app.StaleExecutionExpirerConfig{
			CheckInterval: cfg.Worker.ExpireInterval,
		}, log)
		return w, nil
	}

	var opt asynq.RedisConnOpt = jobs.RedisOpt(&cfg.Redis)
	w.JobWorker = jobs.NewWorker(opt, jobs.WorkerConfig{Concurrency: cfg.Worker.Concurrency}, log,
		jobs.WithStaleSweeper(deps.Services.Execution),
	)
	w.Scheduler = jobs.NewScheduler(opt, log)
	if err := w.Scheduler.ScheduleExpireStale(cfg.Worker.ExpireInterval); err != nil {
		return nil, err
	}
	w.JobClient = jobs.NewClient(opt, log)
	log.Info("job worker initialized",
		"concurrency", cfg.Worker.Concurrency,
		"expire_interval", cfg.Worker.ExpireInterval,
	)
	return w, nil
}

// Run runs the workers in g until ctx is cancelled.
func (w *Workers) Run(ctx context.Context, g *errgroup.Group, log *logger.Logger) {
	if w.Expirer != nil {
		w.Expirer.Start()
		g.Go(func() error {
			<-ctx.Done()
			w.Expirer.Stop()
			return nil
		})
		return
	}

	g.Go(func() error { return w.JobWorker.Run(ctx) })
	g.Go(func() error { return w.Scheduler.Run(ctx) })

	// Sweep once at startup so executions orphaned by a crash do not wait
	// for the first tick.
	if err := w.JobClient.EnqueueExpireStale(ctx, jobs.TriggerStartup, w.expireInterval); err != nil {
		log.Warn("failed to enqueue startup sweep", "error", err)
	}
}

// Close releases the job client.
func (w *Workers) Close(log *logger.Logger) {
	if w.JobClient != nil {
		closeWithLog(w.JobClient, "job client", log)
	}
}
