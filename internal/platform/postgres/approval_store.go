package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kmatteson/domainintel/internal/domain"
	"github.com/kmatteson/domainintel/internal/platform/logger"
	"github.com/kmatteson/domainintel/internal/store"
)

// PostgresApprovalStore implements store.ApprovalStore using
// PostgreSQL. Resolution is a conditional UPDATE on the pending state,
// so a second resolve of the same entry affects zero rows and maps to
// ErrApprovalNotFound.
type PostgresApprovalStore struct {
	db store.DBTX
}

// NewPostgresApprovalStore creates a new PostgresApprovalStore.
func NewPostgresApprovalStore(db store.DBTX) *PostgresApprovalStore {
	return &PostgresApprovalStore{db: db}
}

// CreateEntry adds a pending approval entry for the (job, key) pair.
func (s *PostgresApprovalStore) CreateEntry(ctx context.Context, entry *domain.ApprovalEntry) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO approval_entries (job_id, key, state, result, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.JobID,
		entry.Key,
		entry.State,
		[]byte(entry.Result),
		entry.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrApprovalExists
		}
		log.Error("failed to create approval entry",
			"job_id", entry.JobID,
			"task_key", entry.Key,
			"error", err)
		return fmt.Errorf("failed to create approval entry: %w", MapError(err))
	}

	return nil
}

// GetPendingEntry retrieves the pending entry for the pair.
func (s *PostgresApprovalStore) GetPendingEntry(
	ctx context.Context,
	jobID uuid.UUID,
	key string,
) (*domain.ApprovalEntry, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT job_id, key, state, result, created_at, resolved_at
		FROM approval_entries
		WHERE job_id = $1 AND key = $2 AND state = $3
	`

	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, jobID, key, domain.ApprovalStatePending))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrApprovalNotFound
		}
		log.Error("failed to get pending approval entry",
			"job_id", jobID,
			"task_key", key,
			"error", err)
		return nil, fmt.Errorf("failed to get pending approval entry: %w", MapError(err))
	}

	return entry, nil
}

// ResolveEntry transitions a pending entry to accepted or rejected.
func (s *PostgresApprovalStore) ResolveEntry(
	ctx context.Context,
	jobID uuid.UUID,
	key string,
	state domain.ApprovalState,
) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE approval_entries
		SET state = $1, resolved_at = $2
		WHERE job_id = $3 AND key = $4 AND state = $5
	`

	res, err := s.db.ExecContext(ctx, query,
		state,
		time.Now().UTC(),
		jobID,
		key,
		domain.ApprovalStatePending,
	)
	if err != nil {
		log.Error("failed to resolve approval entry",
			"job_id", jobID,
			"task_key", key,
			"error", err)
		return fmt.Errorf("failed to resolve approval entry: %w", MapError(err))
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrApprovalNotFound
	}

	return nil
}

// ListEntriesByJob returns all entries for a job in creation order.
func (s *PostgresApprovalStore) ListEntriesByJob(
	ctx context.Context,
	jobID uuid.UUID,
) ([]*domain.ApprovalEntry, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT job_id, key, state, result, created_at, resolved_at
		FROM approval_entries
		WHERE job_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		log.Error("failed to list approval entries",
			"job_id", jobID,
			"error", err)
		return nil, fmt.Errorf("failed to list approval entries: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var entries []*domain.ApprovalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approval entries: %w", err)
	}

	return entries, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*domain.ApprovalEntry, error) {
	var entry domain.ApprovalEntry
	var result []byte
	var resolvedAt sql.NullTime

	if err := row.Scan(
		&entry.JobID,
		&entry.Key,
		&entry.State,
		&result,
		&entry.CreatedAt,
		&resolvedAt,
	); err != nil {
		return nil, err
	}

	entry.Result = result
	if resolvedAt.Valid {
		t := resolvedAt.Time
		entry.ResolvedAt = &t
	}

	return &entry, nil
}
