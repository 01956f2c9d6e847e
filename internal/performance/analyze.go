package performance

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/terra-clan/staffing-engine/internal/models"
)

const (
	successScore    = 80
	strengthScore   = 80.0
	weaknessScore   = 70.0
	recentRecords   = 5
	noHistoryAdvice = "実績データがまだありません。プロジェクトを完了させると、エージェントの実績が蓄積されます。"
)

// Analyze summarizes an agent's performance records, which are expected newest first
func Analyze(agentID string, records []models.PerformanceRecord) *models.PerformanceAnalysis {
	analysis := &models.PerformanceAnalysis{
		AgentID:          agentID,
		TotalProjects:    len(records),
		Strengths:        []string{},
		Weaknesses:       []string{},
		CategoryAverages: []models.CategoryAverage{},
		Recent:           []models.RecentRecord{},
	}

	if len(records) == 0 {
		analysis.Recommendations = []string{noHistoryAdvice}
		return analysis
	}

	var total float64
	successes := 0
	categoryScores := make(map[string][]int)
	var categoryOrder []string

	for _, r := range records {
		total += float64(r.OverallScore)
		if r.OverallScore >= successScore {
			successes++
		}
		// sorted so category order is stable
		keys := make([]string, 0, len(r.Categories))
		for k := range r.Categories {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, seen := categoryScores[k]; !seen {
				categoryOrder = append(categoryOrder, k)
			}
			categoryScores[k] = append(categoryScores[k], r.Categories[k])
		}
	}

	average := total / float64(len(records))
	successRate := float64(successes) / float64(len(records)) * 100

	averages := make([]models.CategoryAverage, 0, len(categoryOrder))
	for _, k := range categoryOrder {
		var sum float64
		for _, v := range categoryScores[k] {
			sum += float64(v)
		}
		averages = append(averages, models.CategoryAverage{Category: k, Score: sum / float64(len(categoryScores[k]))})
	}
	sort.SliceStable(averages, func(i, j int) bool {
		return averages[i].Score > averages[j].Score
	})

	for _, a := range averages {
		label := fmt.Sprintf("%s: %.1f点", a.Category, a.Score)
		if a.Score >= strengthScore {
			analysis.Strengths = append(analysis.Strengths, label)
		}
		if a.Score < weaknessScore {
			analysis.Weaknesses = append(analysis.Weaknesses, label)
		}
		analysis.CategoryAverages = append(analysis.CategoryAverages, models.CategoryAverage{
			Category: a.Category,
			Score:    round1(a.Score),
		})
	}

	analysis.AverageScore = round1(average)
	analysis.SuccessRate = round1(successRate)
	analysis.Recommendations = recommendations(average, successRate, analysis.Strengths, analysis.Weaknesses)

	for i, r := range records {
		if i == recentRecords {
			break
		}
		analysis.Recent = append(analysis.Recent, models.RecentRecord{
			ProjectID:    r.ProjectID,
			TaskID:       r.TaskID,
			Score:        r.OverallScore,
			RegisteredAt: r.RegisteredAt,
		})
	}

	return analysis
}

func recommendations(average, successRate float64, strengths, weaknesses []string) []string {
	var out []string

	switch {
	case average >= 90:
		out = append(out, "優秀なエージェントです。重要なプロジェクトのリーダー役に適しています。")
	case average >= 80:
		out = append(out, "安定したパフォーマンスを発揮しています。中規模プロジェクトに適しています。")
	case average >= 70:
		out = append(out, "標準的なパフォーマンスです。サポート役として活用するのが良いでしょう。")
	default:
		out = append(out, "改善の余地があります。小規模タスクから始めることをお勧めします。")
	}

	if successRate >= 80 {
		out = append(out, "高い成功率を誇っています。信頼性の高いエージェントです。")
	} else if successRate < 50 {
		out = append(out, "成功率が低めです。適切なタスクアサインとサポートが必要です。")
	}

	if len(strengths) > 0 {
		out = append(out, "強み: "+strings.Join(firstN(strengths, 3), ", "))
	}
	if len(weaknesses) > 0 {
		out = append(out, "改善点: "+strings.Join(firstN(weaknesses, 2), ", "))
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func firstN(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}
