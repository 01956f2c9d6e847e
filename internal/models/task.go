package models

import (
	"time"
)

// TaskStatus represents the workflow state of a task
type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskReview     TaskStatus = "REVIEW"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskCancelled  TaskStatus = "CANCELLED"
)

// Valid reports whether s is a known task status
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskReview, TaskCompleted, TaskCancelled:
		return true
	}
	return false
}

// Task is a unit of work inside a project
type Task struct {
	ID             string        `json:"id"`
	ProjectID      string        `json:"projectId"`
	Name           string        `json:"name"`
	Description    string        `json:"description,omitempty"`
	Status         TaskStatus    `json:"status"`
	Progress       int           `json:"progress"`
	AssignedUserID *string       `json:"assignedUserId,omitempty"`
	RequiredSkills []string      `json:"requiredSkills,omitempty"`
	StartDate      *time.Time    `json:"startDate,omitempty"`
	EndDate        *time.Time    `json:"endDate,omitempty"`
	CompletedAt    *time.Time    `json:"completedAt,omitempty"`
	AutoExecutable bool          `json:"autoExecutable"`
	ExecutionLog   *ExecutionLog `json:"executionLog,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// IsAssigned reports whether the task already has an assignee
func (t *Task) IsAssigned() bool {
	return t.AssignedUserID != nil && *t.AssignedUserID != ""
}

// ExecutionStatus is the state of a mock execution run
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// IsTerminal returns true if the execution can no longer progress
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed
}

// ExecutionLog is persisted on the task while and after it runs
type ExecutionLog struct {
	Status      ExecutionStatus `json:"status"`
	StartedAt   time.Time       `json:"startedAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	CurrentStep int             `json:"currentStep"`
	Steps       []ExecutionStep `json:"steps"`
	Error       string          `json:"error,omitempty"`
}

// ExecutionStep is one step of a mock execution playbook
type ExecutionStep struct {
	Description string        `json:"description" yaml:"description"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	Result      string        `json:"result" yaml:"result"`
	Completed   bool          `json:"completed"`
}

// TaskFilters defines filters for listing tasks
type TaskFilters struct {
	ProjectID       string
	AssignedUserID  string
	Status          TaskStatus
	ExecutionStatus ExecutionStatus
	UpdatedBefore   *time.Time
	Limit           int
	Offset          int
}
