package models

import (
	"time"
)

// InterviewResult is the decision of an interview
type InterviewResult string

const (
	InterviewPassed InterviewResult = "PASSED"
	InterviewFailed InterviewResult = "FAILED"
)

// InterviewStatus tracks whether the interview has been held
type InterviewStatus string

const (
	InterviewScheduled InterviewStatus = "SCHEDULED"
	InterviewCompleted InterviewStatus = "COMPLETED"
)

// ConversationTurn is one utterance in a generated interview transcript
type ConversationTurn struct {
	Speaker   string    `json:"speaker"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Interview is the outcome of an agent-to-agent interview for a (user, project) pair
type Interview struct {
	ID              string             `json:"id"`
	ProjectID       string             `json:"projectId"`
	UserID          string             `json:"userId"`
	Status          InterviewStatus    `json:"status"`
	Result          InterviewResult    `json:"result"`
	Score           int                `json:"score"`
	ConversationLog []ConversationTurn `json:"conversationLog"`
	CreatedAt       time.Time          `json:"createdAt"`
}

// OfferStatus is the state of an offer
type OfferStatus string

const (
	OfferPending  OfferStatus = "PENDING"
	OfferAccepted OfferStatus = "ACCEPTED"
	OfferRejected OfferStatus = "REJECTED"
)

// Offer invites a user who passed an interview to join a project
type Offer struct {
	ID          string      `json:"id"`
	InterviewID string      `json:"interviewId"`
	UserID      string      `json:"userId"`
	ProjectID   string      `json:"projectId"`
	Status      OfferStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
	RespondedAt *time.Time  `json:"respondedAt,omitempty"`
	Project     *Project    `json:"project,omitempty"`
}

// IsPending returns true if the offer still awaits an answer
func (o *Offer) IsPending() bool {
	return o.Status == OfferPending
}
