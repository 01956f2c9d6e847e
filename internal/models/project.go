package models

import (
	"time"
)

// ProjectStatus represents the lifecycle state of a project
type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "PLANNING"
	ProjectActive    ProjectStatus = "ACTIVE"
	ProjectOnHold    ProjectStatus = "ON_HOLD"
	ProjectCompleted ProjectStatus = "COMPLETED"
)

// Project is a unit of staffed work with its own project agent
type Project struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	RequirementsDoc string        `json:"requirementsDoc,omitempty"`
	Status          ProjectStatus `json:"status"`
	StartDate       *time.Time    `json:"startDate,omitempty"`
	EndDate         *time.Time    `json:"endDate,omitempty"`
	Agent           *Agent        `json:"agent,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// Capabilities returns the project agent capabilities, zero value if no agent
func (p *Project) Capabilities() Capabilities {
	if p == nil || p.Agent == nil {
		return Capabilities{}
	}
	return p.Agent.Capabilities
}

// AgentName returns the project agent name or a generic fallback
func (p *Project) AgentName() string {
	if p.Agent != nil && p.Agent.Name != "" {
		return p.Agent.Name
	}
	return "Project agent"
}

// TeamMember links a user to a project
type TeamMember struct {
	ProjectID string    `json:"projectId"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joinedAt"`
	User      *User     `json:"user,omitempty"`
}

// ProjectFilters defines filters for listing projects
type ProjectFilters struct {
	Status ProjectStatus
	// Member keeps only projects the user belongs to
	Member string
	// ExcludeMember drops projects the user belongs to
	ExcludeMember string
	Limit         int
	Offset        int
}

// ProjectStats summarizes task progress across a project
type ProjectStats struct {
	ProjectID         string           `json:"projectId"`
	ProjectName       string           `json:"projectName"`
	TotalTasks        int              `json:"totalTasks"`
	CompletedTasks    int              `json:"completedTasks"`
	InProgressTasks   int              `json:"inProgressTasks"`
	TodoTasks         int              `json:"todoTasks"`
	OverallProgress   int              `json:"overallProgress"`
	CompletionRate    int              `json:"completionRate"`
	DelayedTasksCount int              `json:"delayedTasksCount"`
	DelayedTasks      []DelayedTask    `json:"delayedTasks"`
	MemberProgress    []MemberProgress `json:"memberProgress"`
	LastUpdated       time.Time        `json:"lastUpdated"`
}

// DelayedTask is a task whose end date has passed without completion
type DelayedTask struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	EndDate      *time.Time `json:"endDate"`
	Progress     int        `json:"progress"`
	AssignedUser string     `json:"assignedUser"`
}

// MemberProgress aggregates task progress per team member
type MemberProgress struct {
	UserID          string `json:"userId"`
	UserName        string `json:"userName"`
	Role            string `json:"role"`
	TotalTasks      int    `json:"totalTasks"`
	CompletedTasks  int    `json:"completedTasks"`
	AverageProgress int    `json:"averageProgress"`
}
