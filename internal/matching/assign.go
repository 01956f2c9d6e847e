package matching

import (
	"github.com/terra-clan/staffing-engine/internal/models"
)

// Assignment pairs a task with the winning match
type Assignment struct {
	TaskID string      `json:"taskId"`
	Match  MatchResult `json:"match"`
}

// SuggestTaskAssignments greedily assigns the best available candidate to each
// unassigned task, in the order the tasks are given. A candidate chosen for one
// task is skipped for the following ones while others remain; once everyone has
// been chosen the full pool is ranked again. There is no backtracking.
func (m *Matcher) SuggestTaskAssignments(candidates []Candidate, tasks []*models.Task, project *models.Project) []Assignment {
	var assignments []Assignment
	if len(candidates) == 0 {
		return assignments
	}

	chosen := make(map[string]bool, len(candidates))

	for _, task := range tasks {
		if task == nil || task.IsAssigned() {
			continue
		}

		available := make([]Candidate, 0, len(candidates))
		for _, c := range candidates {
			if !chosen[c.ID] {
				available = append(available, c)
			}
		}

		pool := available
		if len(pool) == 0 {
			pool = candidates
		}

		best := m.FindBestMatches(pool, TaskTarget(task, project), 1)
		if len(best) == 0 {
			continue
		}

		assignments = append(assignments, Assignment{TaskID: task.ID, Match: best[0]})
		chosen[best[0].UserID] = true
	}

	return assignments
}

// SuggestTaskAssignments runs the greedy policy with the default matcher
func SuggestTaskAssignments(candidates []Candidate, tasks []*models.Task, project *models.Project) []Assignment {
	return defaultMatcher.SuggestTaskAssignments(candidates, tasks, project)
}

// AssignmentMap indexes assignments by task id
func AssignmentMap(assignments []Assignment) map[string]MatchResult {
	out := make(map[string]MatchResult, len(assignments))
	for _, a := range assignments {
		out[a.TaskID] = a.Match
	}
	return out
}
