package models

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// RegisterUserRequest creates a user and their personal agent
type RegisterUserRequest struct {
	Name        string      `json:"name" validate:"required,min=1,max=100"`
	Email       string      `json:"email" validate:"required,email"`
	Role        UserRole    `json:"role,omitempty" validate:"omitempty,oneof=MEMBER PM ADMIN"`
	Skills      []string    `json:"skills,omitempty" validate:"dive,required"`
	Industries  []string    `json:"industries,omitempty" validate:"dive,required"`
	Preferences Preferences `json:"preferences"`
}

// Validate validates the RegisterUserRequest
func (r *RegisterUserRequest) Validate() error {
	return validate.Struct(r)
}

// UpdateUserRequest changes profile fields; nil fields are left as they are
type UpdateUserRequest struct {
	Name        *string      `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Skills      []string     `json:"skills,omitempty" validate:"omitempty,dive,required"`
	Industries  []string     `json:"industries,omitempty" validate:"omitempty,dive,required"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// Validate validates the UpdateUserRequest
func (r *UpdateUserRequest) Validate() error {
	return validate.Struct(r)
}

// CreateProjectRequest creates a project and its project agent
type CreateProjectRequest struct {
	Name            string        `json:"name" validate:"required,min=1,max=200"`
	Description     string        `json:"description,omitempty"`
	RequirementsDoc string        `json:"requirementsDoc,omitempty"`
	Status          ProjectStatus `json:"status,omitempty" validate:"omitempty,oneof=PLANNING ACTIVE ON_HOLD COMPLETED"`
	StartDate       *time.Time    `json:"startDate,omitempty"`
	EndDate         *time.Time    `json:"endDate,omitempty"`
	AgentName       string        `json:"agentName,omitempty"`
	Capabilities    Capabilities  `json:"capabilities"`
	// OwnerID joins the team as PM when set
	OwnerID string `json:"ownerId,omitempty"`
}

// Validate validates the CreateProjectRequest
func (r *CreateProjectRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.StartDate != nil && r.EndDate != nil && r.EndDate.Before(*r.StartDate) {
		return errors.New("endDate must not be before startDate")
	}
	return nil
}

// AddTeamMemberRequest adds a user to a project team
type AddTeamMemberRequest struct {
	UserID string `json:"userId" validate:"required"`
	Role   string `json:"role,omitempty" validate:"max=50"`
}

// Validate validates the AddTeamMemberRequest
func (r *AddTeamMemberRequest) Validate() error {
	return validate.Struct(r)
}

// CreateTaskRequest creates a task inside a project
type CreateTaskRequest struct {
	Name           string     `json:"name" validate:"required,min=1,max=200"`
	Description    string     `json:"description,omitempty"`
	RequiredSkills []string   `json:"requiredSkills,omitempty" validate:"omitempty,dive,required"`
	AssignedUserID *string    `json:"assignedUserId,omitempty"`
	StartDate      *time.Time `json:"startDate,omitempty"`
	EndDate        *time.Time `json:"endDate,omitempty"`
	AutoExecutable bool       `json:"autoExecutable"`
}

// Validate validates the CreateTaskRequest
func (r *CreateTaskRequest) Validate() error {
	return validate.Struct(r)
}

// UpdateProgressRequest updates task progress and/or status
type UpdateProgressRequest struct {
	Progress *int        `json:"progress,omitempty" validate:"omitempty,min=0,max=100"`
	Status   *TaskStatus `json:"status,omitempty" validate:"omitempty,oneof=TODO IN_PROGRESS REVIEW COMPLETED CANCELLED"`
}

// Validate validates the UpdateProgressRequest
func (r *UpdateProgressRequest) Validate() error {
	return validate.Struct(r)
}

// AssignTaskRequest assigns a task to a user
type AssignTaskRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// Validate validates the AssignTaskRequest
func (r *AssignTaskRequest) Validate() error {
	return validate.Struct(r)
}

// InterviewRequest starts an interview for a user
type InterviewRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// Validate validates the InterviewRequest
func (r *InterviewRequest) Validate() error {
	return validate.Struct(r)
}

// Offer responses
const (
	OfferActionAccept = "accept"
	OfferActionReject = "reject"
)

// RespondOfferRequest accepts or rejects an offer
type RespondOfferRequest struct {
	Action string `json:"action" validate:"required,oneof=accept reject"`
}

// Validate validates the RespondOfferRequest
func (r *RespondOfferRequest) Validate() error {
	return validate.Struct(r)
}

// CreateNotificationRequest creates a notification for a user
type CreateNotificationRequest struct {
	UserID    string `json:"userId" validate:"required"`
	ProjectID string `json:"projectId,omitempty"`
	Title     string `json:"title" validate:"required,max=200"`
	Message   string `json:"message" validate:"required"`
	Type      string `json:"type,omitempty" validate:"max=50"`
}

// Validate validates the CreateNotificationRequest
func (r *CreateNotificationRequest) Validate() error {
	return validate.Struct(r)
}

// PerformanceInput is the score part of a registered performance record
type PerformanceInput struct {
	OverallScore *int           `json:"overallScore" validate:"required,min=0,max=100"`
	Categories   map[string]int `json:"categories,omitempty" validate:"omitempty,dive,keys,required,endkeys,min=0,max=100"`
}

// RegisterPerformanceRequest adds a record to an agent's track record
// without completing a task. learningData.taskType, when a string, becomes
// the record's task type.
type RegisterPerformanceRequest struct {
	AgentID      string                 `json:"agentId" validate:"required"`
	ProjectID    string                 `json:"projectId,omitempty"`
	TaskID       string                 `json:"taskId,omitempty"`
	Performance  PerformanceInput       `json:"performance"`
	LearningData map[string]interface{} `json:"learningData,omitempty"`
}

// Validate validates the RegisterPerformanceRequest
func (r *RegisterPerformanceRequest) Validate() error {
	return validate.Struct(r)
}
