package models

import (
	"time"
)

// UserRole is the platform role of a user
type UserRole string

const (
	RoleMember  UserRole = "MEMBER"
	RoleManager UserRole = "PM"
	RoleAdmin   UserRole = "ADMIN"
)

// User is a registered person; in matching terms, a candidate
type User struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Role        UserRole    `json:"role"`
	Skills      []string    `json:"skills"`
	Industries  []string    `json:"industries"`
	Preferences Preferences `json:"preferences"`
	Agent       *Agent      `json:"agent,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// AgentName returns the personal agent name or a generic fallback
func (u *User) AgentName() string {
	if u.Agent != nil && u.Agent.Name != "" {
		return u.Agent.Name
	}
	return "User agent"
}

// PerformanceHistory returns the agent's records, newest first
func (u *User) PerformanceHistory() []PerformanceRecord {
	if u.Agent == nil {
		return nil
	}
	return u.Agent.PerformanceHistory
}

// UserFilters defines filters for listing users
type UserFilters struct {
	Role   UserRole
	Limit  int
	Offset int
}
