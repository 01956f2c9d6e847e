package models

import (
	"strings"
	"time"
)

// API permissions, written as resource:action
const (
	PermUsersRead          = "users:read"
	PermUsersWrite         = "users:write"
	PermProjectsRead       = "projects:read"
	PermProjectsWrite      = "projects:write"
	PermTasksRead          = "tasks:read"
	PermTasksWrite         = "tasks:write"
	PermTasksExecute       = "tasks:execute"
	PermInterviewsWrite    = "interviews:write"
	PermOffersWrite        = "offers:write"
	PermNotificationsRead  = "notifications:read"
	PermNotificationsWrite = "notifications:write"
	PermPerformanceRead    = "performance:read"
	PermPerformanceWrite   = "performance:write"
)

// ApiClient is a caller of the HTTP API identified by its key
type ApiClient struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	ApiKey      string            `json:"-"`
	IsActive    bool              `json:"isActive"`
	CreatedAt   time.Time         `json:"createdAt"`
	LastUsedAt  *time.Time        `json:"lastUsedAt,omitempty"`
	Permissions []string          `json:"permissions"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// HasPermission checks if the client holds a permission.
// "projects:*" grants every projects action and "*" grants everything.
func (c *ApiClient) HasPermission(required string) bool {
	if c == nil || !c.IsActive {
		return false
	}

	for _, perm := range c.Permissions {
		if perm == "*" || perm == required {
			return true
		}
		if resource, ok := strings.CutSuffix(perm, ":*"); ok {
			if strings.HasPrefix(required, resource+":") {
				return true
			}
		}
	}

	return false
}

// MaskedApiKey returns the first 8 characters of the key for logging
func (c *ApiClient) MaskedApiKey() string {
	if len(c.ApiKey) < 8 {
		return "***"
	}
	return c.ApiKey[:8] + "..."
}
