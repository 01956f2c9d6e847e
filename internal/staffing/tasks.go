package staffing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/terra-clan/staffing-engine/internal/execution"
	"github.com/terra-clan/staffing-engine/internal/matching"
	"github.com/terra-clan/staffing-engine/internal/metrics"
	"github.com/terra-clan/staffing-engine/internal/models"
	"github.com/terra-clan/staffing-engine/internal/performance"
	"github.com/terra-clan/staffing-engine/internal/services"
)

// ErrExecutionDisabled is returned by ExecuteTask when no runner is configured
var ErrExecutionDisabled = errors.New("task execution is disabled")

// AssignmentResult is one task persisted by AutoAssign
type AssignmentResult struct {
	Task  *models.Task         `json:"task"`
	Match matching.MatchResult `json:"match"`
}

// AutoAssignResult summarizes an AutoAssign run
type AutoAssignResult struct {
	Assigned int                `json:"assigned"`
	Results  []AssignmentResult `json:"results"`
	// Skipped lists tasks that were assigned concurrently by someone else
	Skipped []string `json:"skipped,omitempty"`
}

// CreateTask creates a task inside a project
func (s *Service) CreateTask(ctx context.Context, projectID string, req *models.CreateTaskRequest) (*models.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return nil, invalid("endDate must not be before startDate")
	}
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	var assignee *string
	if req.AssignedUserID != nil && *req.AssignedUserID != "" {
		user, err := s.repo.GetUser(ctx, *req.AssignedUserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		if user == nil {
			return nil, notFound("user", *req.AssignedUserID)
		}
		id := user.ID
		assignee = &id
	}

	now := s.now()
	task := &models.Task{
		ID:             uuid.New().String(),
		ProjectID:      projectID,
		Name:           strings.TrimSpace(req.Name),
		Description:    req.Description,
		Status:         models.TaskTodo,
		AssignedUserID: assignee,
		RequiredSkills: req.RequiredSkills,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		AutoExecutable: req.AutoExecutable,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if len(task.RequiredSkills) == 0 {
		task.RequiredSkills = s.matcher.Skills().Infer(task.Name + " " + task.Description)
	}

	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, translate(err)
	}
	return task, nil
}

// GetTask returns a task by id
func (s *Service) GetTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if task == nil {
		return nil, notFound("task", id)
	}
	return task, nil
}

// projectTask loads a task and checks it belongs to the project
func (s *Service) projectTask(ctx context.Context, projectID, taskID string) (*models.Project, *models.Task, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	if task.ProjectID != projectID {
		return nil, nil, notFound("task", taskID)
	}
	return project, task, nil
}

// ListTasks returns tasks matching the filters, oldest first
func (s *Service) ListTasks(ctx context.Context, filters models.TaskFilters) ([]*models.Task, error) {
	tasks, err := s.repo.ListTasks(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTaskProgress applies a progress and/or status change.
// Without an explicit status the status follows the progress: 100 completes
// the task, 0 sends an in-progress task back to TODO and anything between
// starts a TODO task.
func (s *Service) UpdateTaskProgress(ctx context.Context, taskID string, req *models.UpdateProgressRequest) (*models.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.Progress == nil && req.Status == nil {
		return nil, invalid("progress or status is required")
	}

	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	prev := task.Status
	if req.Progress != nil {
		p := *req.Progress
		task.Progress = p
		switch {
		case p == 100:
			task.Status = models.TaskCompleted
		case p == 0 && task.Status == models.TaskInProgress:
			task.Status = models.TaskTodo
		case p > 0 && p < 100 && task.Status == models.TaskTodo:
			task.Status = models.TaskInProgress
		}
	}
	if req.Status != nil {
		task.Status = *req.Status
	}

	now := s.now()
	switch {
	case performance.IsCompletionTransition(prev, task.Status):
		task.CompletedAt = &now
	case task.Status != models.TaskCompleted:
		task.CompletedAt = nil
	}
	task.UpdatedAt = now

	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return nil, translate(err)
	}

	if performance.IsCompletionTransition(prev, task.Status) {
		s.recordPerformance(ctx, task)
	}
	return task, nil
}

// onTaskCompleted is the execution completion hook
func (s *Service) onTaskCompleted(ctx context.Context, prev models.TaskStatus, task *models.Task) {
	if performance.IsCompletionTransition(prev, task.Status) {
		s.recordPerformance(ctx, task)
	}
}

// recordPerformance writes the performance record of a completed task.
// Failures are logged and never surface to the caller.
func (s *Service) recordPerformance(ctx context.Context, task *models.Task) {
	log := s.logger.With(zap.String("task_id", task.ID))

	if !task.IsAssigned() {
		log.Debug("completed task has no assignee, no performance record")
		return
	}

	user, err := s.repo.GetUser(ctx, *task.AssignedUserID)
	if err != nil {
		log.Warn("failed to load assignee for performance record", zap.Error(err))
		return
	}
	if user == nil {
		log.Warn("assignee no longer exists", zap.String("user_id", *task.AssignedUserID))
		return
	}
	// records belong to an agent; both drivers require one
	if user.Agent == nil {
		log.Debug("assignee has no agent, no performance record", zap.String("user_id", user.ID))
		return
	}

	record, err := performance.RecordCompletion(task, user.Agent.ID, s.now())
	if err != nil {
		log.Warn("failed to build performance record", zap.Error(err))
		return
	}
	inserted, err := s.repo.InsertPerformanceRecord(ctx, record)
	if err != nil {
		log.Error("failed to store performance record", zap.Error(err))
		return
	}
	if !inserted {
		log.Debug("performance record already exists")
		return
	}

	metrics.PerformanceRecords.Inc()
	log.Info("performance record registered",
		zap.String("user_id", record.UserID),
		zap.Int("score", record.OverallScore),
	)
}

// TaskMatches ranks every user against a task and returns the best five
func (s *Service) TaskMatches(ctx context.Context, projectID, taskID string) ([]matching.MatchResult, error) {
	project, task, err := s.projectTask(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}

	users, err := s.repo.ListUsers(ctx, models.UserFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	candidates, err := s.candidates(ctx, users)
	if err != nil {
		return nil, err
	}

	matches := s.matcher.FindBestMatches(candidates, matching.TaskTarget(task, project), matching.DefaultMatchLimit)
	for _, m := range matches {
		metrics.MatchScores.WithLabelValues("task").Observe(float64(m.Score))
	}
	return matches, nil
}

// AssignTask assigns a task to a user, replacing any previous assignee
func (s *Service) AssignTask(ctx context.Context, projectID, taskID, userID string) (*models.Task, error) {
	if userID == "" {
		return nil, invalid("userId is required")
	}
	_, task, err := s.projectTask(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, notFound("user", userID)
	}

	task.AssignedUserID = &user.ID
	task.UpdatedAt = s.now()
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return nil, translate(err)
	}

	metrics.Assignments.WithLabelValues(metrics.ModeManual).Inc()
	s.logger.Info("task assigned",
		zap.String("task_id", task.ID),
		zap.String("user_id", user.ID),
	)
	return task, nil
}

// UnassignTask clears the assignee of a task
func (s *Service) UnassignTask(ctx context.Context, projectID, taskID string) (*models.Task, error) {
	_, task, err := s.projectTask(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}

	task.AssignedUserID = nil
	task.UpdatedAt = s.now()
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return nil, translate(err)
	}
	return task, nil
}

// AutoAssign runs the greedy policy over the project's unassigned tasks
// using its team members as candidates. Only one run per project may be in
// flight and each assignment is written only if the task is still free.
func (s *Service) AutoAssign(ctx context.Context, projectID string) (*AutoAssignResult, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, "project:"+projectID, s.lockTTL)
	if err != nil {
		if errors.Is(err, services.ErrLockHeld) {
			return nil, fmt.Errorf("auto-assign for project %s: %w", projectID, ErrLocked)
		}
		return nil, fmt.Errorf("failed to lock project: %w", err)
	}
	defer release()

	members, err := s.repo.ListTeamMembers(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	users := make([]*models.User, 0, len(members))
	for _, m := range members {
		if m.User != nil {
			users = append(users, m.User)
		}
	}
	candidates, err := s.candidates(ctx, users)
	if err != nil {
		return nil, err
	}

	tasks, err := s.repo.ListTasks(ctx, models.TaskFilters{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	result := &AutoAssignResult{Results: []AssignmentResult{}}
	for _, a := range s.matcher.SuggestTaskAssignments(candidates, tasks, project) {
		metrics.MatchScores.WithLabelValues("task").Observe(float64(a.Match.Score))

		ok, err := s.repo.AssignTaskIfUnassigned(ctx, a.TaskID, a.Match.UserID, s.now())
		if err != nil {
			return nil, fmt.Errorf("failed to assign task %s: %w", a.TaskID, translate(err))
		}
		if !ok {
			result.Skipped = append(result.Skipped, a.TaskID)
			continue
		}

		task, err := s.GetTask(ctx, a.TaskID)
		if err != nil {
			return nil, err
		}
		result.Results = append(result.Results, AssignmentResult{Task: task, Match: a.Match})
		metrics.Assignments.WithLabelValues(metrics.ModeAuto).Inc()
	}
	result.Assigned = len(result.Results)

	s.logger.Info("auto-assign finished",
		zap.String("project_id", projectID),
		zap.Int("candidates", len(candidates)),
		zap.Int("assigned", result.Assigned),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// ExecuteTask starts a mock execution. The caller drives it with Execute.
func (s *Service) ExecuteTask(ctx context.Context, taskID string) (*execution.Run, error) {
	if s.runner == nil {
		return nil, ErrExecutionDisabled
	}

	run, err := s.runner.Start(ctx, taskID)
	switch {
	case err == nil:
		return run, nil
	case errors.Is(err, execution.ErrTaskNotFound):
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, execution.ErrNotExecutable), errors.Is(err, execution.ErrAlreadyCompleted):
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	case errors.Is(err, execution.ErrAlreadyRunning):
		return nil, fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return nil, err
}
