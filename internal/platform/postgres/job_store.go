package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kmatteson/domainintel/internal/domain"
	"github.com/kmatteson/domainintel/internal/platform/logger"
	"github.com/kmatteson/domainintel/internal/store"
)

// PostgresJobStore implements store.JobStore using PostgreSQL. Task
// keys are stored as a JSONB array on the job row; ordering matters for
// reporting, so the array, not a join table, is the source of order.
type PostgresJobStore struct {
	db store.DBTX
}

// NewPostgresJobStore creates a new PostgresJobStore.
func NewPostgresJobStore(db store.DBTX) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

// CreateJob persists a new job row.
func (s *PostgresJobStore) CreateJob(ctx context.Context, job *domain.Job) error {
	log := logger.FromContext(ctx)

	taskKeys, err := json.Marshal(job.TaskKeys)
	if err != nil {
		return fmt.Errorf("failed to marshal task keys: %w", err)
	}

	query := `
		INSERT INTO jobs (id, task_keys, status, created_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.db.ExecContext(ctx, query,
		job.ID,
		taskKeys,
		job.Status,
		job.CreatedAt,
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
	)
	if err != nil {
		log.Error("failed to create job",
			"job_id", job.ID,
			"error", err)
		return fmt.Errorf("failed to create job: %w", MapError(err))
	}

	return nil
}

// GetJob retrieves a job by ID.
func (s *PostgresJobStore) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, task_keys, status, created_at, started_at, completed_at
		FROM jobs
		WHERE id = $1
	`

	var job domain.Job
	var taskKeys []byte
	var startedAt, completedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&job.ID,
		&taskKeys,
		&job.Status,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrJobNotFound
		}
		log.Error("failed to get job",
			"job_id", id,
			"error", err)
		return nil, fmt.Errorf("failed to get job: %w", MapError(err))
	}

	if err := json.Unmarshal(taskKeys, &job.TaskKeys); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task keys: %w", err)
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}

	return &job, nil
}

// UpdateJob saves the job's status and phase timestamps.
func (s *PostgresJobStore) UpdateJob(ctx context.Context, job *domain.Job) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE jobs
		SET status = $1, started_at = $2, completed_at = $3
		WHERE id = $4
	`

	res, err := s.db.ExecContext(ctx, query,
		job.Status,
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
		job.ID,
	)
	if err != nil {
		log.Error("failed to update job",
			"job_id", job.ID,
			"error", err)
		return fmt.Errorf("failed to update job: %w", MapError(err))
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrJobNotFound
	}

	return nil
}

// FindJobsByTaskKey returns the jobs whose task_keys array contains the
// key, oldest first. The JSONB containment operator keeps this a single
// indexable query.
func (s *PostgresJobStore) FindJobsByTaskKey(ctx context.Context, key string) ([]*domain.Job, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, task_keys, status, created_at, started_at, completed_at
		FROM jobs
		WHERE task_keys ? $1
		ORDER BY created_at, id
	`

	rows, err := s.db.QueryContext(ctx, query, key)
	if err != nil {
		log.Error("failed to find jobs by task key",
			"task_key", key,
			"error", err)
		return nil, fmt.Errorf("failed to find jobs by task key: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.Job
	for rows.Next() {
		var job domain.Job
		var taskKeys []byte
		var startedAt, completedAt sql.NullTime

		if err := rows.Scan(&job.ID, &taskKeys, &job.Status, &job.CreatedAt, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		if err := json.Unmarshal(taskKeys, &job.TaskKeys); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task keys: %w", err)
		}
		if startedAt.Valid {
			t := startedAt.Time
			job.StartedAt = &t
		}
		if completedAt.Valid {
			t := completedAt.Time
			job.CompletedAt = &t
		}
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}

	return jobs, nil
}

// nullableTime maps a nil timestamp to NULL.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
