package models

import (
	"time"
)

// PerformanceRecord is the score snapshot written when a task is completed
// or registered directly. ProjectID and TaskID are empty for records that
// were not tied to one.
type PerformanceRecord struct {
	ID           string                 `json:"id"`
	AgentID      string                 `json:"agentId"`
	UserID       string                 `json:"userId"`
	ProjectID    string                 `json:"projectId,omitempty"`
	TaskID       string                 `json:"taskId,omitempty"`
	OverallScore int                    `json:"overallScore"`
	Categories   map[string]int         `json:"categories"`
	TaskType     string                 `json:"taskType"`
	LearningData map[string]interface{} `json:"learningData,omitempty"`
	RegisteredAt time.Time              `json:"registeredAt"`
}

// PerformanceFilters defines filters for listing performance records
type PerformanceFilters struct {
	AgentID   string
	UserID    string
	ProjectID string
	Limit     int
}

// PerformanceAnalysis summarizes an agent's track record
type PerformanceAnalysis struct {
	AgentID          string            `json:"agentId"`
	TotalProjects    int               `json:"totalProjects"`
	AverageScore     float64           `json:"averageScore"`
	SuccessRate      float64           `json:"successRate"`
	Strengths        []string          `json:"strengths"`
	Weaknesses       []string          `json:"weaknesses"`
	Recommendations  []string          `json:"recommendations"`
	CategoryAverages []CategoryAverage `json:"categoryAverages"`
	Recent           []RecentRecord    `json:"recent"`
}

// CategoryAverage is the mean score of one performance category
type CategoryAverage struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// RecentRecord is a condensed view of a recent performance record
type RecentRecord struct {
	ProjectID    string    `json:"projectId"`
	TaskID       string    `json:"taskId"`
	Score        int       `json:"score"`
	RegisteredAt time.Time `json:"registeredAt"`
}
