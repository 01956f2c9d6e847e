package cleanup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/terra-clan/staffing-engine/internal/metrics"
	"github.com/terra-clan/staffing-engine/internal/models"
)

const staleError = "execution abandoned: no progress before the stale timeout"

// TaskStore is the task persistence the cleaner needs
type TaskStore interface {
	ListTasks(ctx context.Context, filters models.TaskFilters) ([]*models.Task, error)
	UpdateTask(ctx context.Context, t *models.Task) error
}

// ActivityChecker reports runs still in progress on this instance
type ActivityChecker interface {
	Active(taskID string) bool
}

// Cleaner periodically fails executions whose log is still running but has
// not advanced within the stale timeout, e.g. after the owning process died
type Cleaner struct {
	store      TaskStore
	activity   ActivityChecker
	interval   time.Duration
	staleAfter time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewCleaner creates a new cleanup worker. activity may be nil.
func NewCleaner(store TaskStore, activity ActivityChecker, interval, staleAfter time.Duration, logger *zap.Logger) *Cleaner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}

	return &Cleaner{
		store:      store,
		activity:   activity,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     logger.Named("cleanup"),
		now:        time.Now,
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

// run is the main loop for the cleanup worker
func (c *Cleaner) run(ctx context.Context) {
	c.logger.Info("cleanup worker started",
		zap.Duration("interval", c.interval),
		zap.Duration("stale_after", c.staleAfter),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	c.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep marks stale running executions failed and returns how many it marked
func (c *Cleaner) Sweep(ctx context.Context) int {
	c.logger.Debug("running cleanup cycle")

	cutoff := c.now().Add(-c.staleAfter)
	stale, err := c.store.ListTasks(ctx, models.TaskFilters{
		ExecutionStatus: models.ExecutionRunning,
		UpdatedBefore:   &cutoff,
	})
	if err != nil {
		c.logger.Error("failed to list running executions", zap.Error(err))
		return 0
	}

	if len(stale) == 0 {
		c.logger.Debug("no stale executions found")
		return 0
	}

	marked := 0
	for _, task := range stale {
		if c.activity != nil && c.activity.Active(task.ID) {
			continue
		}

		now := c.now()
		task.UpdatedAt = now
		task.ExecutionLog.Status = models.ExecutionFailed
		task.ExecutionLog.Error = staleError
		task.ExecutionLog.CompletedAt = &now
		task.ExecutionLog.UpdatedAt = now

		if err := c.store.UpdateTask(ctx, task); err != nil {
			c.logger.Error("failed to mark stale execution",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
			continue
		}

		marked++
		metrics.StaleExecutions.Inc()
		c.logger.Info("stale execution marked failed",
			zap.String("task_id", task.ID),
			zap.Time("started_at", task.ExecutionLog.StartedAt),
		)
	}
	return marked
}
