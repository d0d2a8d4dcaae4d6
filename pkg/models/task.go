package models

import "time"

// TaskStatus represents the current state of a task. A task lives in
// exactly one status bucket at any time; moving between buckets is the
// only way its status changes.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates the task is being worked on.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Task represents a unit of analysis work in the system.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// ObjectiveID is the objective this task contributes to, if any.
	ObjectiveID string `json:"objective_id,omitempty"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Priority orders scheduling and delivery of related messages.
	Priority Priority `json:"priority"`
	// DependsOn lists task IDs that must complete before this task.
	DependsOn []string `json:"depends_on,omitempty"`
	// AssignedTo is the ID of the agent working on this task.
	AssignedTo string `json:"assigned_to,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when work began, if it has.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// EstimatedDuration is the expected time to completion. Zero means
	// no estimate; delay detection then falls back to a weaker signal.
	EstimatedDuration time.Duration `json:"estimated_duration,omitempty"`
	// CompletedAt is when the task finished, if applicable.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Error contains the error message if the task failed.
	Error string `json:"error,omitempty"`
}

// Objective is a top-level goal assigned by the strategic level,
// decomposed into tasks.
type Objective struct {
	// ID is the unique identifier for this objective.
	ID string `json:"id"`
	// Description states the goal.
	Description string `json:"description"`
	// Priority ranks this objective against the others.
	Priority Priority `json:"priority"`
	// CreatedAt is when the objective was assigned.
	CreatedAt time.Time `json:"created_at"`
}
