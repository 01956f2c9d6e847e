package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/staffing-engine/internal/models"
)

func strPtr(s string) *string { return &s }

func TestSuggestTaskAssignments_GreedyPrefersUnchosen(t *testing.T) {
	project := &models.Project{ID: "p1"}
	tasks := []*models.Task{
		{ID: "t1", Name: "フロントエンド実装", Status: models.TaskTodo},
		{ID: "t2", Name: "バックエンド開発", Status: models.TaskTodo},
	}
	a := Candidate{ID: "A", Skills: []string{"React", "TypeScript", "Node.js", "Java", "Python", "PostgreSQL"}}
	b := Candidate{ID: "B", Skills: []string{"React"}}

	// A outscores B on both tasks
	for _, task := range tasks {
		target := TaskTarget(task, project)
		require.Greater(t, CalculateMatchScore(a, target).Score, CalculateMatchScore(b, target).Score)
	}

	assignments := SuggestTaskAssignments([]Candidate{a, b}, tasks, project)
	require.Len(t, assignments, 2)

	assert.Equal(t, "t1", assignments[0].TaskID)
	assert.Equal(t, "A", assignments[0].Match.UserID)
	assert.Equal(t, "t2", assignments[1].TaskID)
	assert.Equal(t, "B", assignments[1].Match.UserID)
}

func TestSuggestTaskAssignments_SkipsAssignedTasks(t *testing.T) {
	project := &models.Project{ID: "p1"}
	tasks := []*models.Task{
		{ID: "t1", Name: "API設計", Status: models.TaskTodo, AssignedUserID: strPtr("someone")},
		{ID: "t2", Name: "結合テスト", Status: models.TaskTodo},
		{ID: "t3", Name: "リリース", Status: models.TaskTodo, AssignedUserID: strPtr("other")},
	}
	candidates := []Candidate{{ID: "A"}, {ID: "B"}}

	result := AssignmentMap(SuggestTaskAssignments(candidates, tasks, project))

	assert.Len(t, result, 1)
	assert.Contains(t, result, "t2")
	assert.NotContains(t, result, "t1")
	assert.NotContains(t, result, "t3")
}

func TestSuggestTaskAssignments_FallsBackToFullPool(t *testing.T) {
	project := &models.Project{ID: "p1"}
	tasks := []*models.Task{
		{ID: "t1", Name: "フロントエンド実装", Status: models.TaskTodo},
		{ID: "t2", Name: "UI改善", Status: models.TaskTodo},
		{ID: "t3", Name: "フロントエンドテスト", Status: models.TaskTodo},
	}
	candidates := []Candidate{
		{ID: "A", Skills: []string{"React", "TypeScript"}},
		{ID: "B", Skills: []string{"Java"}},
	}

	assignments := SuggestTaskAssignments(candidates, tasks, project)
	require.Len(t, assignments, 3)

	assert.Equal(t, "A", assignments[0].Match.UserID)
	assert.Equal(t, "B", assignments[1].Match.UserID)
	// everyone has been chosen, so the best of the full pool wins again
	assert.Equal(t, "A", assignments[2].Match.UserID)
}

func TestSuggestTaskAssignments_Deterministic(t *testing.T) {
	project := &models.Project{ID: "p1", Agent: &models.Agent{Capabilities: models.Capabilities{Domain: "金融"}}}
	tasks := []*models.Task{
		{ID: "t1", Name: "決済API実装", Status: models.TaskTodo},
		{ID: "t2", Name: "インフラ構築", Status: models.TaskInProgress},
		{ID: "t3", Name: "雑務", Status: models.TaskTodo},
	}
	candidates := []Candidate{
		{ID: "A", Skills: []string{"Go"}, Industries: []string{"金融"}},
		{ID: "B", Skills: []string{"Go"}, Industries: []string{"金融"}},
		{ID: "C", Skills: []string{"AWS", "Docker"}},
	}

	first := SuggestTaskAssignments(candidates, tasks, project)
	second := SuggestTaskAssignments(candidates, tasks, project)
	assert.Equal(t, first, second)
	assert.LessOrEqual(t, len(first), len(tasks))
}

func TestSuggestTaskAssignments_NoCandidates(t *testing.T) {
	tasks := []*models.Task{{ID: "t1", Name: "雑務", Status: models.TaskTodo}}
	assert.Empty(t, SuggestTaskAssignments(nil, tasks, &models.Project{}))
}
