// Package interview scores agent-to-agent interviews and renders their transcripts.
package interview

import (
	"strings"
	"time"

	"github.com/terra-clan/staffing-engine/internal/matching"
	"github.com/terra-clan/staffing-engine/internal/models"
)

const (
	// PassThreshold is the minimum score for a PASSED decision
	PassThreshold = 70

	baseScore        = 50
	skillMatchPoints = 10
	domainPoints     = 20
	focusMatchPoints = 5
)

// Outcome is the result of one interview
type Outcome struct {
	Score      int                       `json:"score"`
	Result     models.InterviewResult    `json:"result"`
	Transcript []models.ConversationTurn `json:"conversationLog"`
}

// Passed reports whether the outcome should produce an offer
func (o Outcome) Passed() bool {
	return o.Result == models.InterviewPassed
}

// Score computes the interview score of a candidate for a project.
// Each candidate skill counts at most once against required skills and
// at most once against focus areas. A project without a domain accepts
// any industry, so a candidate with at least one industry earns the
// domain points there.
func Score(c matching.Candidate, p *models.Project) int {
	caps := p.Capabilities()
	score := baseScore

	for _, skill := range c.Skills {
		if anyMatch(skill, caps.RequiredSkills) {
			score += skillMatchPoints
		}
	}

	if domainFits(caps.Domain, c.Industries) {
		score += domainPoints
	}

	for _, skill := range c.Skills {
		if anyMatch(skill, caps.Focus) {
			score += focusMatchPoints
		}
	}

	return min(100, max(0, score))
}

// Decide maps a score onto PASSED or FAILED
func Decide(score int) models.InterviewResult {
	if score >= PassThreshold {
		return models.InterviewPassed
	}
	return models.InterviewFailed
}

// Conduct scores the candidate, decides, and generates the transcript
func Conduct(c matching.Candidate, p *models.Project, now time.Time) Outcome {
	score := Score(c, p)
	return Outcome{
		Score:      score,
		Result:     Decide(score),
		Transcript: Transcript(c, p, now),
	}
}

func domainFits(domain string, industries []string) bool {
	if strings.TrimSpace(domain) == "" {
		return len(industries) > 0
	}
	return anyMatch(domain, industries)
}

func anyMatch(s string, values []string) bool {
	for _, v := range values {
		if matching.Matches(s, v) {
			return true
		}
	}
	return false
}
