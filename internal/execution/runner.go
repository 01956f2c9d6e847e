package execution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/terra-clan/staffing-engine/internal/metrics"
	"github.com/terra-clan/staffing-engine/internal/models"
	"github.com/terra-clan/staffing-engine/internal/templates"
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrNotExecutable    = errors.New("task is not auto-executable")
	ErrAlreadyCompleted = errors.New("task is already completed")
	ErrAlreadyRunning   = errors.New("task is already running")
	ErrAlreadyExecuted  = errors.New("run has already been executed")
)

const (
	doneMessage   = "タスクの実行が完了しました"
	failedMessage = "Execution failed"

	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeCancelled = "cancelled"
)

// Store is the task persistence the runner needs
type Store interface {
	GetTask(ctx context.Context, id string) (*models.Task, error)
	UpdateTask(ctx context.Context, t *models.Task) error
}

// PlaybookSource picks the step playbook for a task name
type PlaybookSource interface {
	PlaybookFor(taskName string) *models.Playbook
}

// Publisher broadcasts events to observers other than the caller
type Publisher interface {
	Publish(ctx context.Context, ev models.ExecutionEvent) error
}

// Sink receives the events of one run in order
type Sink interface {
	Send(ev models.ExecutionEvent) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ev models.ExecutionEvent) error

// Send implements Sink
func (f SinkFunc) Send(ev models.ExecutionEvent) error {
	return f(ev)
}

// CompletionFunc is called after a run has marked its task COMPLETED.
// prev is the task status before the run started.
type CompletionFunc func(ctx context.Context, prev models.TaskStatus, task *models.Task)

// Config holds runner settings
type Config struct {
	Playbooks PlaybookSource
	Publisher Publisher
	// SpeedFactor scales step durations; 0 runs steps back to back
	SpeedFactor float64
	OnComplete  CompletionFunc
	Logger      *zap.Logger
	Now         func() time.Time
}

// Runner executes mock playbooks against tasks
type Runner struct {
	store      Store
	playbooks  PlaybookSource
	publisher  Publisher
	speed      float64
	onComplete CompletionFunc
	logger     *zap.Logger
	now        func() time.Time

	mu     sync.Mutex
	active map[string]struct{}
}

// NewRunner creates a runner persisting through store
func NewRunner(store Store, cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		store:      store,
		playbooks:  cfg.Playbooks,
		publisher:  cfg.Publisher,
		speed:      math.Max(cfg.SpeedFactor, 0),
		onComplete: cfg.OnComplete,
		logger:     logger.Named("execution"),
		now:        cfg.Now,
		active:     make(map[string]struct{}),
	}
	if r.playbooks == nil {
		r.playbooks = templates.NewLoader(logger)
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Active reports whether the task has a run in progress on this instance
func (r *Runner) Active(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[taskID]
	return ok
}

// Start checks that the task can run, marks it IN_PROGRESS with a fresh
// execution log and returns the run. Nothing is emitted until Execute.
func (r *Runner) Start(ctx context.Context, taskID string) (*Run, error) {
	task, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if task == nil {
		return nil, fmt.Errorf("%s: %w", taskID, ErrTaskNotFound)
	}
	if !task.AutoExecutable {
		return nil, fmt.Errorf("%s: %w", taskID, ErrNotExecutable)
	}
	if task.Status == models.TaskCompleted {
		return nil, fmt.Errorf("%s: %w", taskID, ErrAlreadyCompleted)
	}

	r.mu.Lock()
	_, running := r.active[taskID]
	if running || (task.ExecutionLog != nil && task.ExecutionLog.Status == models.ExecutionRunning) {
		r.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", taskID, ErrAlreadyRunning)
	}
	r.active[taskID] = struct{}{}
	r.mu.Unlock()

	playbook := r.playbooks.PlaybookFor(task.Name)
	prev := task.Status
	now := r.now()

	task.Status = models.TaskInProgress
	task.Progress = 0
	task.CompletedAt = nil
	task.UpdatedAt = now
	task.ExecutionLog = &models.ExecutionLog{
		Status:    models.ExecutionRunning,
		StartedAt: now,
		UpdatedAt: now,
		Steps:     playbook.CloneSteps(),
	}

	if err := r.store.UpdateTask(ctx, task); err != nil {
		r.release(taskID)
		return nil, fmt.Errorf("failed to start execution: %w", err)
	}

	metrics.ExecutionsActive.Inc()
	r.logger.Info("execution started",
		zap.String("task_id", task.ID),
		zap.String("playbook", playbook.Name),
		zap.Int("steps", len(task.ExecutionLog.Steps)),
	)

	return &Run{runner: r, task: task, prev: prev}, nil
}

func (r *Runner) release(taskID string) {
	r.mu.Lock()
	delete(r.active, taskID)
	r.mu.Unlock()
}

// sleep waits d scaled by the speed factor or until ctx is done
func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	scaled := time.Duration(float64(d) * r.speed)
	if scaled <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(scaled)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run is one started execution of a task
type Run struct {
	runner *Runner
	task   *models.Task
	prev   models.TaskStatus

	mu       sync.Mutex
	executed bool
}

// Task returns the task as persisted at the latest step
func (e *Run) Task() *models.Task {
	return e.task
}

// Execute walks the playbook, emitting step_start and step_complete for each
// step and done at the end. Any failure emits a single error event, marks
// the execution log failed and is returned. sink may be nil.
func (e *Run) Execute(ctx context.Context, sink Sink) error {
	e.mu.Lock()
	if e.executed {
		e.mu.Unlock()
		return ErrAlreadyExecuted
	}
	e.executed = true
	e.mu.Unlock()

	r := e.runner
	task := e.task
	defer r.release(task.ID)
	defer metrics.ExecutionsActive.Dec()

	steps := task.ExecutionLog.Steps
	total := len(steps)

	for i := range steps {
		progress := int(math.Round(float64(i+1) / float64(total) * 100))

		err := e.emit(ctx, sink, models.ExecutionEvent{
			Type:        models.EventStepStart,
			Step:        i + 1,
			Total:       total,
			Description: steps[i].Description,
			Progress:    progress,
		})
		if err != nil {
			return e.fail(ctx, sink, err)
		}

		if err := r.sleep(ctx, steps[i].Duration); err != nil {
			return e.fail(ctx, sink, err)
		}

		err = e.emit(ctx, sink, models.ExecutionEvent{
			Type:     models.EventStepComplete,
			Step:     i + 1,
			Total:    total,
			Result:   steps[i].Result,
			Progress: progress,
		})
		if err != nil {
			return e.fail(ctx, sink, err)
		}

		now := r.now()
		steps[i].Completed = true
		task.Progress = progress
		task.UpdatedAt = now
		task.ExecutionLog.CurrentStep = i + 1
		task.ExecutionLog.UpdatedAt = now
		if err := r.store.UpdateTask(ctx, task); err != nil {
			return e.fail(ctx, sink, fmt.Errorf("failed to persist step %d: %w", i+1, err))
		}
	}

	now := r.now()
	task.Status = models.TaskCompleted
	task.Progress = 100
	task.CompletedAt = &now
	task.UpdatedAt = now
	task.ExecutionLog.Status = models.ExecutionCompleted
	task.ExecutionLog.CompletedAt = &now
	task.ExecutionLog.UpdatedAt = now
	if err := r.store.UpdateTask(ctx, task); err != nil {
		return e.fail(ctx, sink, fmt.Errorf("failed to complete task: %w", err))
	}

	if r.onComplete != nil {
		r.onComplete(context.WithoutCancel(ctx), e.prev, task)
	}

	// the task is already completed, a lost done event is only logged
	if err := e.emit(ctx, sink, models.ExecutionEvent{
		Type:     models.EventDone,
		Message:  doneMessage,
		Progress: 100,
	}); err != nil {
		r.logger.Warn("failed to deliver done event", zap.String("task_id", task.ID), zap.Error(err))
	}

	metrics.Executions.WithLabelValues(outcomeCompleted).Inc()
	r.logger.Info("execution completed", zap.String("task_id", task.ID))
	return nil
}

// fail records the failure on the execution log, leaving task status as is
func (e *Run) fail(ctx context.Context, sink Sink, cause error) error {
	r := e.runner
	task := e.task
	persistCtx := context.WithoutCancel(ctx)

	now := r.now()
	task.UpdatedAt = now
	task.ExecutionLog.Status = models.ExecutionFailed
	task.ExecutionLog.Error = cause.Error()
	task.ExecutionLog.CompletedAt = &now
	task.ExecutionLog.UpdatedAt = now
	if err := r.store.UpdateTask(persistCtx, task); err != nil {
		r.logger.Error("failed to persist execution failure", zap.String("task_id", task.ID), zap.Error(err))
	}

	_ = e.emit(persistCtx, sink, models.ExecutionEvent{
		Type:     models.EventError,
		Error:    failedMessage,
		Message:  cause.Error(),
		Progress: task.Progress,
	})

	outcome := outcomeFailed
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		outcome = outcomeCancelled
	}
	metrics.Executions.WithLabelValues(outcome).Inc()
	r.logger.Warn("execution failed", zap.String("task_id", task.ID), zap.Error(cause))
	return cause
}

// emit stamps the event, publishes it to observers and hands it to the sink
func (e *Run) emit(ctx context.Context, sink Sink, ev models.ExecutionEvent) error {
	r := e.runner
	ev.TaskID = e.task.ID
	ev.Timestamp = r.now()

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, ev); err != nil {
			r.logger.Warn("failed to publish execution event",
				zap.String("task_id", ev.TaskID),
				zap.String("type", string(ev.Type)),
				zap.Error(err),
			)
		}
	}
	if sink == nil {
		return nil
	}
	if err := sink.Send(ev); err != nil {
		return fmt.Errorf("failed to send %s event: %w", ev.Type, err)
	}
	return nil
}
