package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/kmatteson/domainintel/internal/domain"
)

// ApprovalStore persists approval entries keyed by (job ID, task key).
type ApprovalStore interface {
	// CreateEntry adds a pending approval entry. Returns
	// ErrApprovalExists if an entry already exists for the pair.
	CreateEntry(ctx context.Context, entry *domain.ApprovalEntry) error

	// GetPendingEntry retrieves the pending entry for the pair.
	// Returns ErrApprovalNotFound if no pending entry exists, including
	// when the entry was already resolved.
	GetPendingEntry(ctx context.Context, jobID uuid.UUID, key string) (*domain.ApprovalEntry, error)

	// ResolveEntry transitions a pending entry to accepted or rejected.
	// The update is conditional on the entry still being pending:
	// resolving twice returns ErrApprovalNotFound on the second call.
	ResolveEntry(ctx context.Context, jobID uuid.UUID, key string, state domain.ApprovalState) error

	// ListEntriesByJob returns all entries for a job, pending and
	// resolved, in creation order.
	ListEntriesByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.ApprovalEntry, error)
}
