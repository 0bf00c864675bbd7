package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ApprovalState represents the resolution state of an approval entry.
type ApprovalState string

// Possible approval states. An entry starts pending and is resolved
// exactly once, by an external caller, to accepted or rejected.
const (
	ApprovalStatePending  ApprovalState = "pending_approval"
	ApprovalStateAccepted ApprovalState = "accepted"
	ApprovalStateRejected ApprovalState = "rejected"
)

// Common validation errors for ApprovalEntry
var (
	ErrEmptyApprovalJobID = errors.New("approval entry job ID cannot be empty")
	ErrEmptyApprovalKey   = errors.New("approval entry key cannot be empty")
	ErrEmptyApprovalBody  = errors.New("approval entry result cannot be empty")
)

// ApprovalEntry holds a produced result between extraction and durable
// persistence, pending an external accept/reject decision. Entries are
// keyed by (job ID, task key).
type ApprovalEntry struct {
	JobID      uuid.UUID       `json:"job_id"`
	Key        string          `json:"key"`
	State      ApprovalState   `json:"state"`
	Result     json.RawMessage `json:"result"`
	CreatedAt  time.Time       `json:"created_at"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
}

// NewApprovalEntry creates a pending approval entry for the given pair.
func NewApprovalEntry(jobID uuid.UUID, key string, result json.RawMessage) (*ApprovalEntry, error) {
	if jobID == uuid.Nil {
		return nil, ErrEmptyApprovalJobID
	}
	if key == "" {
		return nil, ErrEmptyApprovalKey
	}
	if len(result) == 0 {
		return nil, ErrEmptyApprovalBody
	}

	return &ApprovalEntry{
		JobID:     jobID,
		Key:       key,
		State:     ApprovalStatePending,
		Result:    result,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Resolved reports whether the entry has been accepted or rejected.
func (e *ApprovalEntry) Resolved() bool {
	return e.State == ApprovalStateAccepted || e.State == ApprovalStateRejected
}
