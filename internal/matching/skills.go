package matching

import (
	"strings"
	"sync"
)

// TaskType is the coarse category of a task inferred from its name
type TaskType string

const (
	TaskTypeDesign         TaskType = "design"
	TaskTypeImplementation TaskType = "implementation"
	TaskTypeTesting        TaskType = "testing"
	TaskTypeDeployment     TaskType = "deployment"
	TaskTypeOther          TaskType = "other"
)

// Matches reports whether a and b match case-insensitively in either direction:
// a contains b or b contains a. Blank strings never match, unlike a plain
// substring test where "" is contained in everything.
func Matches(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// matchesAny returns true if s matches at least one of candidates
func matchesAny(s string, candidates []string) bool {
	for _, c := range candidates {
		if Matches(s, c) {
			return true
		}
	}
	return false
}

// KeywordRule associates a keyword with the skills it implies
type KeywordRule struct {
	Keyword string   `yaml:"keyword" json:"keyword"`
	Skills  []string `yaml:"skills" json:"skills"`
}

// SkillTable is an ordered keyword → skills lookup. It is safe for concurrent use.
type SkillTable struct {
	mu    sync.RWMutex
	rules []KeywordRule
}

// NewSkillTable creates a table from the given rules, preserving their order
func NewSkillTable(rules ...KeywordRule) *SkillTable {
	t := &SkillTable{}
	for _, r := range rules {
		t.Extend(r.Keyword, r.Skills...)
	}
	return t
}

// DefaultSkillTable returns a fresh table seeded with the built-in keyword rules
func DefaultSkillTable() *SkillTable {
	return NewSkillTable(defaultRules...)
}

// Extend adds skills for a keyword. Skills for an existing keyword are merged.
func (t *SkillTable) Extend(keyword string, skills ...string) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" || len(skills) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.rules {
		if strings.EqualFold(t.rules[i].Keyword, keyword) {
			t.rules[i].Skills = appendUnique(t.rules[i].Skills, skills...)
			return
		}
	}
	t.rules = append(t.rules, KeywordRule{Keyword: keyword, Skills: appendUnique(nil, skills...)})
}

// Rules returns a copy of the table's rules
func (t *SkillTable) Rules() []KeywordRule {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]KeywordRule, len(t.rules))
	for i, r := range t.rules {
		out[i] = KeywordRule{Keyword: r.Keyword, Skills: append([]string(nil), r.Skills...)}
	}
	return out
}

// Infer unions the skills of every keyword occurring in the lower-cased text.
// Skills appear in first-insertion order; the result is empty, never nil.
func (t *SkillTable) Infer(text string) []string {
	lower := strings.ToLower(text)
	result := []string{}
	if strings.TrimSpace(lower) == "" {
		return result
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, r := range t.rules {
		if strings.Contains(lower, strings.ToLower(r.Keyword)) {
			result = appendUnique(result, r.Skills...)
		}
	}
	return result
}

var defaultTable = DefaultSkillTable()

// InferRequiredSkills infers skills from free text using the built-in table
func InferRequiredSkills(text string) []string {
	return defaultTable.Infer(text)
}

// InferTaskType maps a task name onto a TaskType. Rules are checked in order.
func InferTaskType(name string) TaskType {
	lower := strings.ToLower(name)
	switch {
	case containsAny(lower, "設計", "design"):
		return TaskTypeDesign
	case containsAny(lower, "実装", "開発", "implement", "develop"):
		return TaskTypeImplementation
	case containsAny(lower, "テスト", "test"):
		return TaskTypeTesting
	case containsAny(lower, "デプロイ", "リリース", "deploy", "release"):
		return TaskTypeDeployment
	default:
		return TaskTypeOther
	}
}

// InferFocusAreas derives the focus areas of a personal agent from its skills
func InferFocusAreas(skills []string) []string {
	joined := strings.ToLower(strings.Join(skills, " "))

	var areas []string
	for _, f := range focusRules {
		if containsAny(joined, f.keywords...) {
			areas = append(areas, f.area)
		}
	}
	if len(areas) == 0 {
		areas = append(areas, "フルスタック開発")
	}
	return areas
}

type focusRule struct {
	area     string
	keywords []string
}

var focusRules = []focusRule{
	{area: "セキュリティ", keywords: []string{"security", "セキュリティ"}},
	{area: "UI/UX", keywords: []string{"ui", "ux", "デザイン"}},
	{area: "AI/機械学習", keywords: []string{"ai", "machine learning", "llm"}},
	{area: "データ分析", keywords: []string{"データ", "分析", "data"}},
	{area: "フロントエンド", keywords: []string{"フロントエンド", "react", "frontend"}},
	{area: "バックエンド", keywords: []string{"バックエンド", "api", "backend"}},
}

var defaultRules = []KeywordRule{
	{Keyword: "データベース", Skills: []string{"PostgreSQL", "データ分析", "SQL"}},
	{Keyword: "認証", Skills: []string{"セキュリティ", "Node.js", "Java"}},
	{Keyword: "API", Skills: []string{"Node.js", "FastAPI", "Java", "Spring Boot"}},
	{Keyword: "UI", Skills: []string{"React", "UI/UX", "TypeScript", "デザインシステム"}},
	{Keyword: "フロントエンド", Skills: []string{"React", "TypeScript", "UI/UX"}},
	{Keyword: "バックエンド", Skills: []string{"Node.js", "Java", "Python", "PostgreSQL"}},
	{Keyword: "インフラ", Skills: []string{"AWS", "Docker", "Kubernetes", "インフラ"}},
	{Keyword: "セキュリティ", Skills: []string{"セキュリティ", "コンプライアンス"}},
	{Keyword: "AI", Skills: []string{"AI", "Machine Learning", "LLM", "Python"}},
	{Keyword: "チャット", Skills: []string{"AI", "LLM", "WebSocket", "リアルタイム通信"}},
	{Keyword: "決済", Skills: []string{"セキュリティ", "コンプライアンス", "Node.js"}},
	{Keyword: "テスト", Skills: []string{"テスト", "QA", "品質保証"}},
	{Keyword: "監査", Skills: []string{"セキュリティ", "コンプライアンス", "品質保証"}},

	// English aliases
	{Keyword: "database", Skills: []string{"PostgreSQL", "データ分析", "SQL"}},
	{Keyword: "auth", Skills: []string{"セキュリティ", "Node.js", "Java"}},
	{Keyword: "frontend", Skills: []string{"React", "TypeScript", "UI/UX"}},
	{Keyword: "backend", Skills: []string{"Node.js", "Java", "Python", "PostgreSQL"}},
	{Keyword: "infrastructure", Skills: []string{"AWS", "Docker", "Kubernetes", "インフラ"}},
	{Keyword: "security", Skills: []string{"セキュリティ", "コンプライアンス"}},
	{Keyword: "payment", Skills: []string{"セキュリティ", "コンプライアンス", "Node.js"}},
	{Keyword: "audit", Skills: []string{"セキュリティ", "コンプライアンス", "品質保証"}},
}

func containsAny(s string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
