package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the aggregated state of a batch of tasks.
type JobStatus string

// Possible job status values. A job's status only ever advances in the
// order pending < processing < awaiting_approval < completed.
const (
	JobStatusPending          JobStatus = "pending"
	JobStatusProcessing       JobStatus = "processing"
	JobStatusAwaitingApproval JobStatus = "awaiting_approval"
	JobStatusCompleted        JobStatus = "completed"
)

// Common validation errors for Job
var (
	ErrEmptyJobID       = errors.New("job ID cannot be empty")
	ErrNoTaskKeys       = errors.New("job must contain at least one task key")
	ErrInvalidJobStatus = errors.New("invalid job status")
)

// Job is a caller-defined batch of tasks tracked as a unit for
// progress reporting. Task keys are deduplicated at creation with
// insertion order preserved.
type Job struct {
	ID          uuid.UUID  `json:"id"`
	TaskKeys    []string   `json:"task_keys"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a pending job over the given normalized task keys.
func NewJob(taskKeys []string) (*Job, error) {
	if len(taskKeys) == 0 {
		return nil, ErrNoTaskKeys
	}

	return &Job{
		ID:        uuid.New(),
		TaskKeys:  taskKeys,
		Status:    JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Rank orders job statuses for the monotonic-advance guard.
func (s JobStatus) Rank() int {
	switch s {
	case JobStatusPending:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusAwaitingApproval:
		return 2
	case JobStatusCompleted:
		return 3
	default:
		return -1
	}
}

// IsValidJobStatus checks if the given status is a valid JobStatus.
func IsValidJobStatus(status JobStatus) bool {
	return status.Rank() >= 0
}

// NormalizeDomains splits raw entries on commas and whitespace, strips
// protocol prefixes and paths, lowercases, and removes duplicates while
// preserving first-seen order.
func NormalizeDomains(raw []string) []string {
	seen := make(map[string]struct{})
	var result []string

	for _, entry := range raw {
		for _, token := range strings.FieldsFunc(entry, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
		}) {
			d := strings.ToLower(strings.TrimSpace(token))
			if d == "" {
				continue
			}
			if i := strings.Index(d, "://"); i >= 0 {
				d = d[i+3:]
			}
			if i := strings.Index(d, "/"); i >= 0 {
				d = d[:i]
			}
			if d == "" {
				continue
			}
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			result = append(result, d)
		}
	}

	return result
}
