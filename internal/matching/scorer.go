package matching

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/terra-clan/staffing-engine/internal/models"
)

// Scoring weights. These are fixed points, not runtime tunables.
const (
	maxSkillScore      = 50.0
	flatSkillScore     = 25.0
	domainMatchScore   = 30.0
	domainMissScore    = 10.0
	domainNeutralScore = 15.0
	todoBonus          = 20.0
	inProgressBonus    = 10.0
	sameTaskTypeBonus  = 5.0

	// DefaultHistoryLimit is how many recent performance records count towards the bonus
	DefaultHistoryLimit = 10
	// DefaultMatchLimit is the number of results FindBestMatches returns for limit <= 0
	DefaultMatchLimit = 5
)

const (
	reasonSkills     = "必要なスキル「%s」に対して、%sのスキルが一致しています。"
	reasonGeneralist = "%sのスキルを持っており、幅広いタスクに対応可能です。"
	reasonDomain     = "%sの分野で%sの経験があります。"
	reasonTodo       = "このタスクは未着手のため、早期の着手が推奨されます。"
	reasonInProgress = "進行中のタスクの引き継ぎが可能です。"
	reasonHistory    = "過去の実績から、このタスクに適していると判断されます。"
	reasonDefault    = "このタスクに対応可能なスキルセットを持っています。"
)

// Candidate is a user being evaluated for a task or project
type Candidate struct {
	ID          string
	Name        string
	AgentName   string
	Skills      []string
	Industries  []string
	Preferences models.Preferences

	// History is ordered newest first
	History []models.PerformanceRecord
}

// CandidateFromUser builds a Candidate, keeping at most historyLimit records
func CandidateFromUser(u *models.User, historyLimit int) Candidate {
	c := Candidate{
		ID:          u.ID,
		Name:        u.Name,
		Skills:      u.Skills,
		Industries:  u.Industries,
		Preferences: u.Preferences,
		History:     truncate(u.PerformanceHistory(), historyLimit),
	}
	if u.Agent != nil {
		c.AgentName = u.Agent.Name
	}
	return c
}

// Target is the task or project a candidate is scored against
type Target struct {
	Name           string
	Description    string
	Status         models.TaskStatus
	IsTask         bool
	RequiredSkills []string
	Domain         string
	FocusAreas     []string
}

// TaskTarget combines a task with its project agent's capabilities
func TaskTarget(task *models.Task, project *models.Project) Target {
	caps := project.Capabilities()
	return Target{
		Name:           task.Name,
		Description:    task.Description,
		Status:         task.Status,
		IsTask:         true,
		RequiredSkills: appendUnique(append([]string(nil), caps.RequiredSkills...), task.RequiredSkills...),
		Domain:         caps.Domain,
		FocusAreas:     caps.Focus,
	}
}

// ProjectTarget scores a candidate against a whole project; no status bonus applies
func ProjectTarget(project *models.Project) Target {
	caps := project.Capabilities()
	return Target{
		Name:           project.Name,
		Description:    project.Description,
		RequiredSkills: caps.RequiredSkills,
		Domain:         caps.Domain,
		FocusAreas:     caps.Focus,
	}
}

// MatchResult is the outcome of scoring one candidate against one target
type MatchResult struct {
	UserID            string   `json:"userId"`
	UserName          string   `json:"userName"`
	Score             int      `json:"score"`
	Reasoning         string   `json:"reasoning"`
	MatchedSkills     []string `json:"matchedSkills"`
	MatchedIndustries []string `json:"matchedIndustries"`
}

// Matcher computes match scores
type Matcher struct {
	skills       *SkillTable
	historyLimit int
}

// Option configures a Matcher
type Option func(*Matcher)

// WithSkillTable sets the keyword table used for skill inference
func WithSkillTable(t *SkillTable) Option {
	return func(m *Matcher) {
		if t != nil {
			m.skills = t
		}
	}
}

// WithHistoryLimit sets how many recent performance records are considered
func WithHistoryLimit(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.historyLimit = n
		}
	}
}

// NewMatcher creates a Matcher with the built-in skill table
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		skills:       defaultTable,
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Skills returns the matcher's skill table
func (m *Matcher) Skills() *SkillTable {
	return m.skills
}

// RequiredSkills is the union of skills inferred from the target text and its declared skills
func (m *Matcher) RequiredSkills(t Target) []string {
	text := t.Name
	if t.Description != "" {
		text += " " + t.Description
	}
	return appendUnique(m.skills.Infer(text), t.RequiredSkills...)
}

// Score computes the 0-100 compatibility of a candidate with a target
func (m *Matcher) Score(c Candidate, t Target) MatchResult {
	var score float64
	matchedSkills := []string{}
	matchedIndustries := []string{}
	var reasons []string

	// Skills
	required := m.RequiredSkills(t)
	if len(required) > 0 {
		for _, s := range c.Skills {
			if matchesAny(s, required) {
				matchedSkills = append(matchedSkills, s)
			}
		}
		score += math.Min(maxSkillScore, float64(len(matchedSkills))/float64(len(required))*maxSkillScore)
		if len(matchedSkills) > 0 {
			reasons = append(reasons, fmt.Sprintf(reasonSkills, joinFirst(required, 3), joinFirst(matchedSkills, 3)))
		}
	} else {
		score += flatSkillScore
		if len(c.Skills) > 0 {
			n := min(2, len(c.Skills))
			matchedSkills = append(matchedSkills, c.Skills[:n]...)
			reasons = append(reasons, fmt.Sprintf(reasonGeneralist, joinFirst(c.Skills, 2)))
		}
	}

	// Domain
	if strings.TrimSpace(t.Domain) != "" && len(c.Industries) > 0 {
		for _, ind := range c.Industries {
			if Matches(ind, t.Domain) {
				matchedIndustries = append(matchedIndustries, ind)
			}
		}
		if len(matchedIndustries) > 0 {
			score += domainMatchScore
			reasons = append(reasons, fmt.Sprintf(reasonDomain, t.Domain, strings.Join(matchedIndustries, "、")))
		} else {
			score += domainMissScore
		}
	} else {
		score += domainNeutralScore
	}

	// Status
	if t.IsTask {
		switch t.Status {
		case models.TaskTodo:
			score += todoBonus
			reasons = append(reasons, reasonTodo)
		case models.TaskInProgress:
			score += inProgressBonus
			reasons = append(reasons, reasonInProgress)
		}
	}

	// History
	if bonus := m.historyBonus(c.History, t); bonus > 0 {
		score += bonus
		if bonus > 10 {
			reasons = append(reasons, reasonHistory)
		}
	}

	if len(reasons) == 0 {
		reasons = append(reasons, reasonDefault)
	}

	return MatchResult{
		UserID:            c.ID,
		UserName:          c.Name,
		Score:             clampScore(score),
		Reasoning:         strings.Join(reasons, " "),
		MatchedSkills:     matchedSkills,
		MatchedIndustries: matchedIndustries,
	}
}

// historyBonus returns 0 when there is no history
func (m *Matcher) historyBonus(history []models.PerformanceRecord, t Target) float64 {
	history = truncate(history, m.historyLimit)
	if len(history) == 0 {
		return 0
	}

	var total float64
	for _, r := range history {
		total += float64(r.OverallScore)
	}
	avg := total / float64(len(history))

	var bonus float64
	switch {
	case avg >= 90:
		bonus = 15
	case avg >= 80:
		bonus = 12
	case avg >= 70:
		bonus = 8
	default:
		bonus = 5
	}

	taskType := string(InferTaskType(t.Name))
	for _, r := range history {
		if r.TaskType == taskType {
			bonus += sameTaskTypeBonus
			break
		}
	}
	return bonus
}

// FindBestMatches scores every candidate and returns the top limit results,
// sorted by score descending. Equal scores keep the input order.
func (m *Matcher) FindBestMatches(candidates []Candidate, t Target, limit int) []MatchResult {
	if limit <= 0 {
		limit = DefaultMatchLimit
	}

	results := make([]MatchResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, m.Score(c, t))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// CalculateMatchScore scores a candidate with the default matcher
func CalculateMatchScore(c Candidate, t Target) MatchResult {
	return defaultMatcher.Score(c, t)
}

// FindBestMatches ranks candidates with the default matcher
func FindBestMatches(candidates []Candidate, t Target, limit int) []MatchResult {
	return defaultMatcher.FindBestMatches(candidates, t, limit)
}

var defaultMatcher = NewMatcher()

func clampScore(v float64) int {
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

func joinFirst(values []string, n int) string {
	if len(values) > n {
		values = values[:n]
	}
	return strings.Join(values, "、")
}

func truncate(records []models.PerformanceRecord, n int) []models.PerformanceRecord {
	if n > 0 && len(records) > n {
		return records[:n]
	}
	return records
}
