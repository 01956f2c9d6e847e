package models

import (
	"time"
)

// EventType names a progress event emitted by a task execution
type EventType string

const (
	EventStepStart    EventType = "step_start"
	EventStepComplete EventType = "step_complete"
	EventDone         EventType = "done"
	EventError        EventType = "error"
)

// ExecutionEvent is one line of the execution progress stream
type ExecutionEvent struct {
	Type        EventType `json:"type"`
	TaskID      string    `json:"taskId"`
	Step        int       `json:"step,omitempty"`
	Total       int       `json:"total,omitempty"`
	Description string    `json:"description,omitempty"`
	Result      string    `json:"result,omitempty"`
	Progress    int       `json:"progress"`
	Message     string    `json:"message,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Terminal reports whether no further events follow
func (e ExecutionEvent) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}
