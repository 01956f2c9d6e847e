package storage

import (
	"context"
	"errors"
	"time"

	"github.com/terra-clan/staffing-engine/internal/models"
)

var (
	// ErrNotFound is returned by mutations that target a missing row.
	// Lookups return (nil, nil) instead.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects a row
	ErrDuplicate = errors.New("duplicate")
	// ErrConflict is returned when a conditional update finds the row in another state
	ErrConflict = errors.New("conflict")
)

// InterviewFilters defines filters for listing interviews
type InterviewFilters struct {
	ProjectID string
	UserID    string
	Limit     int
}

// OfferFilters defines filters for listing offers
type OfferFilters struct {
	UserID string
	Status models.OfferStatus
}

// NotificationFilters defines filters for listing notifications
type NotificationFilters struct {
	UserID     string
	UnreadOnly bool
	Limit      int
}

// Repository defines the interface for staffing persistence
type Repository interface {
	// Users; CreateUser also stores u.Agent
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	// GetUserByAgentID finds the owner of a personal agent
	GetUserByAgentID(ctx context.Context, agentID string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	ListUsers(ctx context.Context, filters models.UserFilters) ([]*models.User, error)

	// Projects; CreateProject also stores p.Agent
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context, filters models.ProjectFilters) ([]*models.Project, error)

	// Team members
	AddTeamMember(ctx context.Context, m *models.TeamMember) error
	ListTeamMembers(ctx context.Context, projectID string) ([]*models.TeamMember, error)

	// Tasks
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	UpdateTask(ctx context.Context, t *models.Task) error
	ListTasks(ctx context.Context, filters models.TaskFilters) ([]*models.Task, error)
	// AssignTaskIfUnassigned sets the assignee only when the task has none.
	// It reports whether the row was updated.
	AssignTaskIfUnassigned(ctx context.Context, taskID, userID string, at time.Time) (bool, error)

	// Interviews and offers. offer may be nil; both are written atomically.
	CreateInterview(ctx context.Context, iv *models.Interview, offer *models.Offer) error
	GetInterviewByPair(ctx context.Context, projectID, userID string) (*models.Interview, error)
	ListInterviews(ctx context.Context, filters InterviewFilters) ([]*models.Interview, error)
	GetOffer(ctx context.Context, id string) (*models.Offer, error)
	ListOffers(ctx context.Context, filters OfferFilters) ([]*models.Offer, error)
	// RespondOffer moves a PENDING offer to status and, when member is set,
	// adds the team member in the same transaction. Returns ErrConflict if
	// the offer is no longer pending.
	RespondOffer(ctx context.Context, offerID string, status models.OfferStatus, at time.Time, member *models.TeamMember) error

	// Notifications
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, filters NotificationFilters) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	DeleteNotification(ctx context.Context, id string) error

	// Performance records. At most one record per task: a second insert
	// for the same task is ignored and reports false. Records without a
	// task are always inserted.
	InsertPerformanceRecord(ctx context.Context, r *models.PerformanceRecord) (bool, error)
	ListPerformanceRecords(ctx context.Context, filters models.PerformanceFilters) ([]models.PerformanceRecord, error)

	// API Clients
	CreateClient(ctx context.Context, c *models.ApiClient) error
	GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
