package performance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/staffing-engine/internal/models"
)

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestDeadlineScore_Completed(t *testing.T) {
	due := at(0)

	assert.Equal(t, 100, DeadlineScore(at(5*day), at(0), now), "due in future, completed now")
	assert.Equal(t, 100, DeadlineScore(due, due, now), "completed exactly on due")
	assert.Equal(t, 95, DeadlineScore(due, at(time.Hour), now), "partial day counts as a day")
	assert.Equal(t, 85, DeadlineScore(due, at(3*day), now))
	assert.Equal(t, 50, DeadlineScore(due, at(20*day), now))
	assert.Equal(t, 50, DeadlineScore(due, at(11*day), now))
}

func TestDeadlineScore_NoDueDate(t *testing.T) {
	assert.Equal(t, 85, DeadlineScore(nil, at(0), now))
	assert.Equal(t, 85, DeadlineScore(nil, nil, now))
}

func TestDeadlineScore_Estimate(t *testing.T) {
	assert.Equal(t, 90, DeadlineScore(at(5*day), nil, now))
	assert.Equal(t, 80, DeadlineScore(at(2*day), nil, now))
	assert.Equal(t, 80, DeadlineScore(at(0), nil, now))
	assert.Equal(t, 60, DeadlineScore(at(-time.Hour), nil, now))
}

func TestOverallScore(t *testing.T) {
	assert.Equal(t, 94, OverallScore(100, 100))
	assert.Equal(t, 91, OverallScore(85, 100))
	assert.Equal(t, 84, OverallScore(50, 100))
	assert.Equal(t, 84, OverallScore(100, 80))
}

func TestIsCompletionTransition(t *testing.T) {
	assert.True(t, IsCompletionTransition(models.TaskInProgress, models.TaskCompleted))
	assert.True(t, IsCompletionTransition(models.TaskTodo, models.TaskCompleted))
	assert.False(t, IsCompletionTransition(models.TaskCompleted, models.TaskCompleted))
	assert.False(t, IsCompletionTransition(models.TaskTodo, models.TaskInProgress))
	assert.False(t, IsCompletionTransition(models.TaskCompleted, models.TaskReview))
}

func TestRecordCompletion(t *testing.T) {
	user := "u1"
	task := &models.Task{
		ID:             "t1",
		ProjectID:      "p1",
		Name:           "フロントエンド実装",
		Status:         models.TaskCompleted,
		Progress:       100,
		AssignedUserID: &user,
		EndDate:        at(2 * day),
	}

	record, err := RecordCompletion(task, "agent-1", now)
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "agent-1", record.AgentID)
	assert.Equal(t, "u1", record.UserID)
	assert.Equal(t, "p1", record.ProjectID)
	assert.Equal(t, "t1", record.TaskID)
	assert.Equal(t, 94, record.OverallScore)
	assert.Equal(t, map[string]int{CategoryDeadline: 100, CategoryCompletion: 100}, record.Categories)
	assert.Equal(t, "implementation", record.TaskType)
	assert.Equal(t, now, record.RegisteredAt)
}

func TestRecordCompletion_LateUsesCompletedAt(t *testing.T) {
	user := "u1"
	task := &models.Task{
		ID:             "t1",
		Name:           "結合テスト",
		Progress:       100,
		AssignedUserID: &user,
		EndDate:        at(-10 * day),
		CompletedAt:    at(-7 * day),
	}

	record, err := RecordCompletion(task, "agent-1", now)
	require.NoError(t, err)
	assert.Equal(t, 85, record.Categories[CategoryDeadline])
	assert.Equal(t, 91, record.OverallScore)
	assert.Equal(t, "testing", record.TaskType)
}

func TestRecordCompletion_Unassigned(t *testing.T) {
	_, err := RecordCompletion(&models.Task{ID: "t1"}, "", now)
	assert.ErrorIs(t, err, ErrUnassigned)
}

func TestRecordCompletion_NoAgent(t *testing.T) {
	user := "u1"
	_, err := RecordCompletion(&models.Task{ID: "t1", AssignedUserID: &user}, "", now)
	assert.ErrorIs(t, err, ErrNoAgent)
}

func TestAnalyze_Empty(t *testing.T) {
	a := Analyze("agent-1", nil)

	assert.Equal(t, "agent-1", a.AgentID)
	assert.Zero(t, a.TotalProjects)
	assert.Equal(t, []string{noHistoryAdvice}, a.Recommendations)
	assert.Empty(t, a.Strengths)
}

func TestAnalyze(t *testing.T) {
	records := []models.PerformanceRecord{
		{ProjectID: "p1", TaskID: "t1", OverallScore: 92, Categories: map[string]int{"deadline": 100, "completion": 100}},
		{ProjectID: "p1", TaskID: "t2", OverallScore: 84, Categories: map[string]int{"deadline": 50, "completion": 100}},
		{ProjectID: "p2", TaskID: "t3", OverallScore: 60, Categories: map[string]int{"deadline": 60, "completion": 40}},
	}

	a := Analyze("agent-1", records)

	assert.Equal(t, 3, a.TotalProjects)
	assert.InDelta(t, 78.7, a.AverageScore, 0.001)
	assert.InDelta(t, 66.7, a.SuccessRate, 0.001)
	require.Len(t, a.CategoryAverages, 2)
	assert.Equal(t, "completion", a.CategoryAverages[0].Category)
	assert.InDelta(t, 80.0, a.CategoryAverages[0].Score, 0.001)
	assert.Equal(t, []string{"completion: 80.0点"}, a.Strengths)
	assert.Empty(t, a.Weaknesses)
	require.Len(t, a.Recommendations, 2)
	assert.Contains(t, a.Recommendations[0], "標準的")
	assert.Len(t, a.Recent, 3)
	assert.Equal(t, "t1", a.Recent[0].TaskID)
}

func TestAnalyze_RecentCapped(t *testing.T) {
	records := make([]models.PerformanceRecord, 8)
	for i := range records {
		records[i] = models.PerformanceRecord{OverallScore: 95, Categories: map[string]int{"deadline": 60}}
	}

	a := Analyze("agent-1", records)

	assert.Len(t, a.Recent, recentRecords)
	assert.Equal(t, []string{"deadline: 60.0点"}, a.Weaknesses)
	assert.Contains(t, a.Recommendations[0], "優秀")
	assert.Contains(t, a.Recommendations[1], "高い成功率")
}
