package app

import (
	"context"
	"sync"
	"time"

	"github.com/openctemio/toolstudio/pkg/logger"
)

// StaleSweeper expires stale executions. ExecutionService implements it.
type StaleSweeper interface {
	ExpireStale(ctx context.Context) (int, error)
}

// StaleExecutionExpirer periodically moves executions stuck in running to timeout.
// It is the in-process alternative to the scheduled background job.
type StaleExecutionExpirer struct {
	sweeper StaleSweeper
	logger  *logger.Logger

	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// StaleExecutionExpirerConfig holds configuration for the expirer.
type StaleExecutionExpirerConfig struct {
	// CheckInterval is how often to sweep (default: 1 minute)
	CheckInterval time.Duration
}

// NewStaleExecutionExpirer creates a new StaleExecutionExpirer.
func NewStaleExecutionExpirer(sweeper StaleSweeper, cfg StaleExecutionExpirerConfig, log *logger.Logger) *StaleExecutionExpirer {
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return &StaleExecutionExpirer{
		sweeper:  sweeper,
		logger:   log.With("component", "stale_execution_expirer"),
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the sweep loop.
func (c *StaleExecutionExpirer) Start() {
	c.wg.Add(1)
	go c.run()
	c.logger.Info("stale execution expirer started", "interval", c.interval)
}

// Stop stops the loop and waits for an in-flight sweep.
func (c *StaleExecutionExpirer) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
	c.logger.Info("stale execution expirer stopped")
}

func (c *StaleExecutionExpirer) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopCh:
			return
		}
	}
}

func (c *StaleExecutionExpirer) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := c.sweeper.ExpireStale(ctx); err != nil {
		c.logger.Error("stale execution sweep failed", "error", err)
	}
}
