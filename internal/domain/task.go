package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// TaskState represents the lifecycle state of a task.
type TaskState string

// Possible task states.
const (
	TaskStatePending TaskState = "pending"
	TaskStateClaimed TaskState = "claimed"
	TaskStateDone    TaskState = "done"
	TaskStateFailed  TaskState = "failed"
)

// Common validation errors for Task
var (
	ErrEmptyTaskKey     = errors.New("task key cannot be empty")
	ErrInvalidTaskState = errors.New("invalid task state")
	ErrInvalidOutcome   = errors.New("report outcome must be done or failed")
)

// MaxErrorMessageLength bounds the failure reason stored on a task.
// Longer messages are truncated before they reach the store.
const MaxErrorMessageLength = 500

// Task is the unit of work for one input domain: fetch the site,
// extract a company profile, and (optionally after approval) persist it.
// The task key is the domain name and is unique within the store.
type Task struct {
	Key          string          `json:"key"`
	State        TaskState       `json:"state"`
	Owner        string          `json:"owner,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	ClaimedAt    *time.Time      `json:"claimed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewTask creates a pending task for the given key.
func NewTask(key string) (*Task, error) {
	if key == "" {
		return nil, ErrEmptyTaskKey
	}

	now := time.Now().UTC()
	return &Task{
		Key:       key,
		State:     TaskStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Terminal reports whether the task has reached a terminal state.
func (t *Task) Terminal() bool {
	return t.State == TaskStateDone || t.State == TaskStateFailed
}

// IsValidTaskState checks if the given state is a valid TaskState.
func IsValidTaskState(state TaskState) bool {
	switch state {
	case TaskStatePending, TaskStateClaimed, TaskStateDone, TaskStateFailed:
		return true
	default:
		return false
	}
}

// TruncateErrorMessage bounds a failure reason to MaxErrorMessageLength bytes.
func TruncateErrorMessage(msg string) string {
	if len(msg) > MaxErrorMessageLength {
		return msg[:MaxErrorMessageLength]
	}
	return msg
}
