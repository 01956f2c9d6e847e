package interview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/staffing-engine/internal/matching"
	"github.com/terra-clan/staffing-engine/internal/models"
)

func project(caps models.Capabilities) *models.Project {
	return &models.Project{
		ID:    "p1",
		Name:  "医療ポータル",
		Agent: &models.Agent{Name: "医療ポータルのエージェント", Capabilities: caps},
	}
}

func TestDecideBoundary(t *testing.T) {
	assert.Equal(t, models.InterviewFailed, Decide(69))
	assert.Equal(t, models.InterviewPassed, Decide(70))
	assert.Equal(t, models.InterviewPassed, Decide(100))
	assert.Equal(t, models.InterviewFailed, Decide(0))
}

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		candidate matching.Candidate
		caps      models.Capabilities
		want      int
	}{
		{
			name:      "base only",
			candidate: matching.Candidate{Skills: []string{"COBOL"}},
			caps:      models.Capabilities{RequiredSkills: []string{"Go"}},
			want:      50,
		},
		{
			name:      "required skill and domain",
			candidate: matching.Candidate{Skills: []string{"Go", "React"}, Industries: []string{"医療系"}},
			caps:      models.Capabilities{RequiredSkills: []string{"Go"}, Domain: "医療"},
			want:      80,
		},
		{
			name:      "one candidate skill counts once against required skills",
			candidate: matching.Candidate{Skills: []string{"React"}},
			caps:      models.Capabilities{RequiredSkills: []string{"React", "react native", "React.js"}},
			want:      60,
		},
		{
			name:      "focus areas",
			candidate: matching.Candidate{Skills: []string{"React", "UI/UX"}},
			caps:      models.Capabilities{Focus: []string{"UI/UX", "React"}},
			want:      60,
		},
		{
			name:      "no project domain accepts any industry",
			candidate: matching.Candidate{Skills: []string{"Go"}, Industries: []string{"医療系"}},
			caps:      models.Capabilities{RequiredSkills: []string{"Rust"}},
			want:      70,
		},
		{
			name:      "no project domain and no industries",
			candidate: matching.Candidate{Skills: []string{"Go"}},
			caps:      models.Capabilities{RequiredSkills: []string{"Rust"}},
			want:      50,
		},
		{
			name:      "domain set but unrelated industry",
			candidate: matching.Candidate{Industries: []string{"金融"}},
			caps:      models.Capabilities{Domain: "医療"},
			want:      50,
		},
		{
			name: "clamped to 100",
			candidate: matching.Candidate{
				Skills:     []string{"Go", "Go kit", "gRPC", "Golang", "Go modules", "Go generics"},
				Industries: []string{"金融"},
			},
			caps: models.Capabilities{RequiredSkills: []string{"Go", "gRPC"}, Domain: "金融", Focus: []string{"Go"}},
			want: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.candidate, project(tt.caps)))
		})
	}
}

func TestScore_ProjectWithoutAgent(t *testing.T) {
	c := matching.Candidate{Skills: []string{"Go"}, Industries: []string{"金融"}}
	assert.Equal(t, 70, Score(c, &models.Project{ID: "p1"}))
	assert.Equal(t, 50, Score(matching.Candidate{Skills: []string{"Go"}}, &models.Project{ID: "p1"}))
}

func TestConduct(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	c := matching.Candidate{
		ID:         "u1",
		Name:       "佐藤",
		AgentName:  "佐藤のエージェント",
		Skills:     []string{"Go", "PostgreSQL"},
		Industries: []string{"医療"},
	}
	p := project(models.Capabilities{RequiredSkills: []string{"Go"}, Domain: "医療"})

	passed := Conduct(c, p, now)
	assert.Equal(t, 80, passed.Score)
	assert.True(t, passed.Passed())

	failed := Conduct(matching.Candidate{Name: "鈴木"}, p, now)
	assert.Equal(t, 50, failed.Score)
	assert.False(t, failed.Passed())
}

func TestTranscript_Alternates(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	c := matching.Candidate{
		Name:        "佐藤",
		AgentName:   "佐藤のエージェント",
		Skills:      []string{"Go", "PostgreSQL", "Docker"},
		Industries:  []string{"医療"},
		Preferences: models.Preferences{TeamSize: "小規模"},
	}
	p := project(models.Capabilities{})
	p.RequirementsDoc = "# 要件"

	turns := Transcript(c, p, now)
	require.Len(t, turns, 8)

	for i, turn := range turns {
		if i%2 == 0 {
			assert.Equal(t, "医療ポータルのエージェント", turn.Speaker)
		} else {
			assert.Equal(t, "佐藤のエージェント", turn.Speaker)
		}
		assert.False(t, turn.Timestamp.Before(now))
		assert.NotEmpty(t, turn.Message)
	}

	assert.Contains(t, turns[3].Message, "GoとPostgreSQL")
	assert.Contains(t, turns[4].Message, "要件定義書")
	assert.Contains(t, turns[5].Message, "小規模")
	assert.Contains(t, turns[5].Message, defaultWorkStyle)
}

func TestTranscript_DefaultSpeakers(t *testing.T) {
	turns := Transcript(matching.Candidate{Name: "鈴木"}, &models.Project{Name: "社内ツール"}, time.Now())

	require.Len(t, turns, 8)
	assert.Equal(t, defaultProjectSpeaker, turns[0].Speaker)
	assert.Equal(t, defaultUserSpeaker, turns[1].Speaker)
	assert.NotContains(t, turns[4].Message, "要件定義書")
	assert.Contains(t, turns[5].Message, defaultTeamSize)
}
