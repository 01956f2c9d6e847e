package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/terra-clan/staffing-engine/internal/models"
	"github.com/terra-clan/staffing-engine/internal/storage"
)

type staticPlaybook struct {
	playbook *models.Playbook
}

func (s staticPlaybook) PlaybookFor(string) *models.Playbook {
	return s.playbook
}

type recorder struct {
	mu     sync.Mutex
	events []models.ExecutionEvent
	failOn models.EventType
}

func (r *recorder) Send(ev models.ExecutionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != "" && ev.Type == r.failOn {
		return errors.New("client went away")
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Publish(ctx context.Context, ev models.ExecutionEvent) error {
	return r.Send(ev)
}

func (r *recorder) types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

var threeSteps = &models.Playbook{
	Name: "test",
	Steps: []models.ExecutionStep{
		{Description: "準備", Duration: 100 * time.Millisecond, Result: "ok"},
		{Description: "実行", Duration: 100 * time.Millisecond, Result: "ok"},
		{Description: "確認", Duration: 100 * time.Millisecond, Result: "ok"},
	},
}

func setup(t *testing.T, task *models.Task) (*storage.MemoryRepository, *models.Task) {
	t.Helper()
	ctx := context.Background()
	repo := storage.NewMemoryRepository()

	project := &models.Project{ID: "p1", Name: "Project", Status: models.ProjectActive}
	require.NoError(t, repo.CreateProject(ctx, project))

	task.ProjectID = project.ID
	if task.ID == "" {
		task.ID = "t1"
	}
	if task.Status == "" {
		task.Status = models.TaskTodo
	}
	require.NoError(t, repo.CreateTask(ctx, task))
	return repo, task
}

func TestRunner_Execute(t *testing.T) {
	ctx := context.Background()
	repo, task := setup(t, &models.Task{Name: "API実装", AutoExecutable: true})

	bus := &recorder{}
	var completedPrev models.TaskStatus
	runner := NewRunner(repo, Config{
		Playbooks:   staticPlaybook{threeSteps},
		Publisher:   bus,
		SpeedFactor: 0,
		Logger:      zaptest.NewLogger(t),
		OnComplete: func(ctx context.Context, prev models.TaskStatus, task *models.Task) {
			completedPrev = prev
		},
	})

	run, err := runner.Start(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, runner.Active(task.ID))

	started, err := repo.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskInProgress, started.Status)
	assert.Equal(t, models.ExecutionRunning, started.ExecutionLog.Status)

	sink := &recorder{}
	require.NoError(t, run.Execute(ctx, sink))

	assert.Equal(t, []models.EventType{
		models.EventStepStart, models.EventStepComplete,
		models.EventStepStart, models.EventStepComplete,
		models.EventStepStart, models.EventStepComplete,
		models.EventDone,
	}, sink.types())
	assert.Equal(t, sink.types(), bus.types(), "observers see the same stream")

	// progress reported on step_start is the progress after that step
	assert.Equal(t, 33, sink.events[0].Progress)
	assert.Equal(t, 67, sink.events[2].Progress)
	assert.Equal(t, 100, sink.events[4].Progress)
	assert.Equal(t, 3, sink.events[0].Total)
	assert.Equal(t, "t1", sink.events[6].TaskID)

	done, err := repo.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, models.ExecutionCompleted, done.ExecutionLog.Status)
	assert.Equal(t, 3, done.ExecutionLog.CurrentStep)
	for _, s := range done.ExecutionLog.Steps {
		assert.True(t, s.Completed)
	}

	assert.Equal(t, models.TaskTodo, completedPrev)
	assert.False(t, runner.Active(task.ID))
	assert.ErrorIs(t, run.Execute(ctx, sink), ErrAlreadyExecuted)
}

func TestRunner_Refusals(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		repo, _ := setup(t, &models.Task{Name: "x", AutoExecutable: true})
		_, err := NewRunner(repo, Config{}).Start(ctx, "missing")
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("not auto executable", func(t *testing.T) {
		repo, task := setup(t, &models.Task{Name: "x"})
		_, err := NewRunner(repo, Config{}).Start(ctx, task.ID)
		assert.ErrorIs(t, err, ErrNotExecutable)
	})

	t.Run("already completed", func(t *testing.T) {
		repo, task := setup(t, &models.Task{Name: "x", AutoExecutable: true, Status: models.TaskCompleted, Progress: 100})
		_, err := NewRunner(repo, Config{}).Start(ctx, task.ID)
		assert.ErrorIs(t, err, ErrAlreadyCompleted)
	})

	t.Run("already running", func(t *testing.T) {
		repo, task := setup(t, &models.Task{Name: "x", AutoExecutable: true})
		runner := NewRunner(repo, Config{Playbooks: staticPlaybook{threeSteps}})

		_, err := runner.Start(ctx, task.ID)
		require.NoError(t, err)
		_, err = runner.Start(ctx, task.ID)
		assert.ErrorIs(t, err, ErrAlreadyRunning)

		// another instance sees the running log
		other := NewRunner(repo, Config{Playbooks: staticPlaybook{threeSteps}})
		_, err = other.Start(ctx, task.ID)
		assert.ErrorIs(t, err, ErrAlreadyRunning)
	})
}

func TestRunner_Cancelled(t *testing.T) {
	repo, task := setup(t, &models.Task{Name: "x", AutoExecutable: true})

	ctx, cancel := context.WithCancel(context.Background())
	sink := &recorder{}
	runner := NewRunner(repo, Config{
		Playbooks:   staticPlaybook{threeSteps},
		SpeedFactor: 100,
		OnComplete: func(context.Context, models.TaskStatus, *models.Task) {
			t.Error("completion hook must not fire")
		},
	})

	run, err := runner.Start(ctx, task.ID)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err = run.Execute(ctx, sink)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []models.EventType{models.EventStepStart, models.EventError}, sink.types())
	assert.Equal(t, "Execution failed", sink.events[1].Error)

	failed, err := repo.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskInProgress, failed.Status, "status stays where it failed")
	assert.Equal(t, models.ExecutionFailed, failed.ExecutionLog.Status)
	assert.NotEmpty(t, failed.ExecutionLog.Error)
	assert.False(t, runner.Active(task.ID))
}

func TestRunner_SinkFailure(t *testing.T) {
	ctx := context.Background()
	repo, task := setup(t, &models.Task{Name: "x", AutoExecutable: true})

	runner := NewRunner(repo, Config{Playbooks: staticPlaybook{threeSteps}})
	run, err := runner.Start(ctx, task.ID)
	require.NoError(t, err)

	sink := &recorder{failOn: models.EventStepComplete}
	err = run.Execute(ctx, sink)
	require.Error(t, err)

	types := sink.types()
	assert.Equal(t, models.EventError, types[len(types)-1])
	count := 0
	for _, typ := range types {
		if typ == models.EventError {
			count++
		}
	}
	assert.Equal(t, 1, count)

	stored, err := repo.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionFailed, stored.ExecutionLog.Status)
	assert.Equal(t, 0, stored.Progress)
}

func TestRunner_DefaultPlaybooks(t *testing.T) {
	ctx := context.Background()
	repo, task := setup(t, &models.Task{Name: "セキュリティ監査", AutoExecutable: true})

	run, err := NewRunner(repo, Config{}).Start(ctx, task.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, run.Task().ExecutionLog.Steps)

	var events []models.ExecutionEvent
	require.NoError(t, run.Execute(ctx, SinkFunc(func(ev models.ExecutionEvent) error {
		events = append(events, ev)
		return nil
	})))
	assert.Equal(t, models.EventDone, events[len(events)-1].Type)
}
