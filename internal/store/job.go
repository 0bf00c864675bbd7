package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/kmatteson/domainintel/internal/domain"
)

// JobStore persists job records. Jobs are never deleted by the core;
// expiry is a caller policy.
type JobStore interface {
	// CreateJob persists a new job. Returns ErrDuplicate if a job with
	// the same ID already exists.
	CreateJob(ctx context.Context, job *domain.Job) error

	// GetJob retrieves a job by ID. Returns ErrJobNotFound if absent.
	GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// UpdateJob saves the job's status and phase timestamps.
	// Returns ErrJobNotFound if the job does not exist.
	UpdateJob(ctx context.Context, job *domain.Job) error

	// FindJobsByTaskKey returns the jobs whose key set contains the
	// given task key, in creation order. Registration is idempotent
	// across jobs, so one key can belong to several jobs.
	FindJobsByTaskKey(ctx context.Context, key string) ([]*domain.Job, error)
}
