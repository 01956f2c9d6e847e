// Package performance derives performance records from completed tasks and
// summarizes an agent's track record.
package performance

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/staffing-engine/internal/matching"
	"github.com/terra-clan/staffing-engine/internal/models"
)

// Category names stored on every record
const (
	CategoryDeadline   = "deadline"
	CategoryCompletion = "completion"
)

const (
	noDueDateScore    = 85
	onTimeScore       = 100
	minLateScore      = 50
	latePenaltyPerDay = 5

	aheadScore   = 90
	closeScore   = 80
	overdueScore = 60

	completionBase    = 80.0
	deadlineWeight    = 0.2
	fullProgressBonus = 10.0

	day = 24 * time.Hour
)

// ErrUnassigned is returned when a completed task has nobody to credit
var ErrUnassigned = errors.New("task has no assignee")

// ErrNoAgent is returned when the assignee has no personal agent to hold the record
var ErrNoAgent = errors.New("assignee has no agent")

// DeadlineScore rates deadline adherence. For completed tasks it compares the
// completion time against the due date; otherwise it estimates from the time
// remaining at now.
func DeadlineScore(due, completedAt *time.Time, now time.Time) int {
	if due == nil {
		return noDueDateScore
	}

	if completedAt != nil {
		late := completedAt.Sub(*due)
		if late <= 0 {
			return onTimeScore
		}
		daysLate := int(math.Ceil(float64(late) / float64(day)))
		return max(minLateScore, onTimeScore-latePenaltyPerDay*daysLate)
	}

	remaining := due.Sub(now)
	switch {
	case remaining < 0:
		return overdueScore
	case remaining > 3*day:
		return aheadScore
	default:
		return closeScore
	}
}

// OverallScore combines the deadline score with the completion bonus
func OverallScore(deadline, progress int) int {
	score := completionBase + deadlineWeight*(float64(deadline)-completionBase)
	if progress == 100 {
		score += fullProgressBonus
	}
	return int(math.Round(math.Max(0, math.Min(100, score))))
}

// IsCompletionTransition reports whether a status change enters the completed state
func IsCompletionTransition(prev, next models.TaskStatus) bool {
	return prev != models.TaskCompleted && next == models.TaskCompleted
}

// RecordCompletion builds the performance record for a task that just completed.
// agentID is the assignee's personal agent.
func RecordCompletion(task *models.Task, agentID string, now time.Time) (*models.PerformanceRecord, error) {
	if !task.IsAssigned() {
		return nil, ErrUnassigned
	}
	if agentID == "" {
		return nil, ErrNoAgent
	}

	completedAt := now
	if task.CompletedAt != nil {
		completedAt = *task.CompletedAt
	}

	deadline := DeadlineScore(task.EndDate, &completedAt, now)

	return &models.PerformanceRecord{
		ID:           uuid.New().String(),
		AgentID:      agentID,
		UserID:       *task.AssignedUserID,
		ProjectID:    task.ProjectID,
		TaskID:       task.ID,
		OverallScore: OverallScore(deadline, task.Progress),
		Categories: map[string]int{
			CategoryDeadline:   deadline,
			CategoryCompletion: task.Progress,
		},
		TaskType:     string(matching.InferTaskType(task.Name)),
		RegisteredAt: now,
	}, nil
}
