package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/openctemio/toolstudio/internal/config"
	"github.com/openctemio/toolstudio/pkg/logger"
)

// RedisOpt builds the asynq connection options from the Redis config.
func RedisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	}
}

// Client manages enqueueing background jobs using Asynq.
type Client struct {
	client *asynq.Client
	logger *logger.Logger
}

// NewClient creates a new job client for enqueueing tasks.
func NewClient(opt asynq.RedisConnOpt, log *logger.Logger) *Client {
	return &Client{
		client: asynq.NewClient(opt),
		logger: log.With("component", "job_client"),
	}
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueExpireStale enqueues one stale execution sweep. At most one sweep per
// trigger is queued within uniqueFor; a duplicate is not an error.
func (c *Client) EnqueueExpireStale(ctx context.Context, trigger string, uniqueFor time.Duration) error {
	task, err := NewExpireStaleTask(trigger)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	var opts []asynq.Option
	if uniqueFor > 0 {
		opts = append(opts, asynq.Unique(uniqueFor))
	}

	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		c.logger.Debug("stale execution sweep already queued", "trigger", trigger)
		return nil
	}
	if err != nil {
		c.logger.Error("failed to enqueue stale execution sweep", "trigger", trigger, "error", err)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.Info("stale execution sweep queued",
		"task_id", info.ID,
		"trigger", trigger,
		"queue", info.Queue,
	)
	return nil
}
