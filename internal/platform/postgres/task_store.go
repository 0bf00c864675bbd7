package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kmatteson/domainintel/internal/domain"
	"github.com/kmatteson/domainintel/internal/platform/logger"
	"github.com/kmatteson/domainintel/internal/store"
)

// PostgresTaskStore implements store.TaskStore using PostgreSQL.
// Claim runs in a single transaction with FOR UPDATE SKIP LOCKED, so
// concurrent claimers never receive the same key; report and reclaim
// are single conditional UPDATE statements, which gives per-row mutual
// exclusion between a finishing worker and the supervisor sweep.
type PostgresTaskStore struct {
	db *sql.DB
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db *sql.DB) *PostgresTaskStore {
	return &PostgresTaskStore{db: db}
}

// Register inserts each key as pending if absent. ON CONFLICT DO
// NOTHING leaves keys that already exist, in any state, untouched.
func (s *PostgresTaskStore) Register(ctx context.Context, keys []string) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO tasks (key, state, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (key) DO NOTHING
	`

	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		now := time.Now().UTC()
		for _, key := range keys {
			if key == "" {
				return domain.ErrEmptyTaskKey
			}
			if _, err := tx.ExecContext(ctx, query, key, domain.TaskStatePending, now); err != nil {
				log.Error("failed to register task",
					"task_key", key,
					"error", err)
				return fmt.Errorf("failed to register task: %w", MapError(err))
			}
		}
		return nil
	})
}

// Claim atomically transitions up to limit pending tasks to claimed.
// SKIP LOCKED keeps concurrent claimers from blocking on, or receiving,
// each other's rows.
func (s *PostgresTaskStore) Claim(ctx context.Context, limit int, owner string) ([]*domain.Task, error) {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET state = $1, owner = $2, claimed_at = $3, updated_at = $3
		WHERE key IN (
			SELECT key FROM tasks
			WHERE state = $4
			ORDER BY created_at ASC
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		RETURNING key, state, owner, result, error_message, claimed_at, created_at, updated_at
	`

	now := time.Now().UTC()

	rows, err := s.db.QueryContext(ctx, query,
		domain.TaskStateClaimed,
		owner,
		now,
		domain.TaskStatePending,
		limit,
	)
	if err != nil {
		log.Error("failed to claim tasks",
			"owner", owner,
			"error", err)
		return nil, fmt.Errorf("failed to claim tasks: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	tasks, err := scanTasks(rows)
	if err != nil {
		log.Error("failed to scan claimed tasks",
			"owner", owner,
			"error", err)
		return nil, err
	}

	return tasks, nil
}

// Report transitions a claimed task to done or failed. The WHERE clause
// makes the update conditional on (key, owner, state='claimed'): a
// stale report from a worker that lost its lease affects zero rows.
func (s *PostgresTaskStore) Report(
	ctx context.Context,
	key, owner string,
	outcome domain.TaskState,
	result json.RawMessage,
	errMsg string,
) error {
	log := logger.FromContext(ctx)

	if outcome != domain.TaskStateDone && outcome != domain.TaskStateFailed {
		return domain.ErrInvalidOutcome
	}

	query := `
		UPDATE tasks
		SET state = $1, owner = '', result = $2, error_message = $3, updated_at = $4
		WHERE key = $5 AND owner = $6 AND state = $7
	`

	res, err := s.db.ExecContext(ctx, query,
		outcome,
		nullableJSON(result),
		domain.TruncateErrorMessage(errMsg),
		time.Now().UTC(),
		key,
		owner,
		domain.TaskStateClaimed,
	)
	if err != nil {
		log.Error("failed to report task outcome",
			"task_key", key,
			"outcome", outcome,
			"error", err)
		return fmt.Errorf("failed to report task outcome: %w", MapError(err))
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Stale report: lease expired and the task was reclaimed, or the
		// task already reached a terminal state. No-op per the store
		// contract, but worth surfacing in the logs.
		log.Warn("ignoring stale task report",
			"task_key", key,
			"owner", owner,
			"outcome", outcome)
	}

	return nil
}

// ReclaimExpired resets claimed tasks whose lease is older than the
// timeout back to pending.
func (s *PostgresTaskStore) ReclaimExpired(ctx context.Context, timeout time.Duration) (int, error) {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET state = $1, owner = '', claimed_at = NULL, updated_at = $2
		WHERE state = $3 AND claimed_at < $4
	`

	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, query,
		domain.TaskStatePending,
		now,
		domain.TaskStateClaimed,
		now.Add(-timeout),
	)
	if err != nil {
		log.Error("failed to reclaim expired tasks", "error", err)
		return 0, fmt.Errorf("failed to reclaim expired tasks: %w", MapError(err))
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

// GetByKeys returns the tasks for the given keys, omitting unknown keys.
func (s *PostgresTaskStore) GetByKeys(ctx context.Context, keys []string) ([]*domain.Task, error) {
	log := logger.FromContext(ctx)

	if len(keys) == 0 {
		return nil, nil
	}

	query := `
		SELECT key, state, owner, result, error_message, claimed_at, created_at, updated_at
		FROM tasks
		WHERE key = ANY($1)
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, keys)
	if err != nil {
		log.Error("failed to query tasks by keys", "error", err)
		return nil, fmt.Errorf("failed to query tasks by keys: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	return scanTasks(rows)
}

// CountsByState returns the number of tasks in each state.
func (s *PostgresTaskStore) CountsByState(ctx context.Context) (map[domain.TaskState]int, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT state, COUNT(*)
		FROM tasks
		GROUP BY state
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to count tasks by state", "error", err)
		return nil, fmt.Errorf("failed to count tasks by state: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[domain.TaskState]int)
	for rows.Next() {
		var state domain.TaskState
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan state count: %w", err)
		}
		counts[state] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating state counts: %w", err)
	}

	return counts, nil
}

// scanTasks reads task rows into domain tasks.
func scanTasks(rows *sql.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task

	for rows.Next() {
		var t domain.Task
		var owner sql.NullString
		var result []byte
		var errorMessage sql.NullString
		var claimedAt sql.NullTime

		if err := rows.Scan(
			&t.Key,
			&t.State,
			&owner,
			&result,
			&errorMessage,
			&claimedAt,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}

		t.Owner = owner.String
		t.Result = result
		t.ErrorMessage = errorMessage.String
		if claimedAt.Valid {
			claimed := claimedAt.Time
			t.ClaimedAt = &claimed
		}

		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, nil
}

// nullableJSON maps an empty payload to NULL for JSONB columns.
func nullableJSON(data json.RawMessage) any {
	if len(data) == 0 {
		return nil
	}
	return []byte(data)
}
