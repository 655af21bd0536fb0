package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/openctemio/toolstudio/pkg/logger"
)

// Scheduler enqueues periodic tasks.
type Scheduler struct {
	scheduler *asynq.Scheduler
	logger    *logger.Logger
}

// NewScheduler creates a scheduler on the given Redis connection.
func NewScheduler(opt asynq.RedisConnOpt, log *logger.Logger) *Scheduler {
	return &Scheduler{
		scheduler: asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC}),
		logger:    log.With("component", "job_scheduler"),
	}
}

// ExpireStaleSpec returns the cron spec for a sweep every interval.
func ExpireStaleSpec(interval time.Duration) string {
	if interval < time.Second {
		interval = time.Minute
	}
	return "@every " + interval.String()
}

// ScheduleExpireStale registers the periodic stale execution sweep.
func (s *Scheduler) ScheduleExpireStale(interval time.Duration) error {
	task, err := NewExpireStaleTask(TriggerSchedule)
	if err != nil {
		return err
	}
	spec := ExpireStaleSpec(interval)
	id, err := s.scheduler.Register(spec, task)
	if err != nil {
		return fmt.Errorf("register %s: %w", TypeExecutionExpireStale, err)
	}
	s.logger.Info("periodic task registered", "task", TypeExecutionExpireStale, "spec", spec, "entry_id", id)
	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	<-ctx.Done()
	s.scheduler.Shutdown()
	s.logger.Info("job scheduler stopped")
	return nil
}
