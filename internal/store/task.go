package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kmatteson/domainintel/internal/domain"
)

// TaskStore is the durable, key-indexed record of every task's lifecycle
// state. It is the single source of truth for task state: implementations
// must serialize claim, report, and reclaim per task so that no two
// callers ever act on the same transition concurrently.
type TaskStore interface {
	// Register inserts each key as a pending task if absent. Keys already
	// present, in any state, are left untouched, so re-submitting the same
	// batch resumes rather than resets it.
	Register(ctx context.Context, keys []string) error

	// Claim atomically selects up to limit pending tasks, transitions them
	// to claimed with the given owner and a fresh claim timestamp, and
	// returns them. Two concurrent callers never receive the same key.
	// Returns an empty slice without blocking when nothing is pending.
	Claim(ctx context.Context, limit int, owner string) ([]*domain.Task, error)

	// Report transitions a claimed task to done or failed, storing the
	// result payload or failure reason. The update is conditional on the
	// reporting owner still holding the lease: a stale report from a
	// worker whose lease expired and was re-claimed is a no-op.
	Report(ctx context.Context, key, owner string, outcome domain.TaskState, result json.RawMessage, errMsg string) error

	// ReclaimExpired resets claimed tasks whose lease is older than the
	// timeout back to pending, clearing the owner. Returns the number of
	// tasks reclaimed. This is the only crash-recovery mechanism: a dead
	// worker's task becomes claimable again once its lease expires.
	ReclaimExpired(ctx context.Context, timeout time.Duration) (int, error)

	// GetByKeys returns the tasks for the given keys. Unknown keys are
	// omitted from the result.
	GetByKeys(ctx context.Context, keys []string) ([]*domain.Task, error)

	// CountsByState returns the number of tasks in each state, for
	// queue-empty and completion detection.
	CountsByState(ctx context.Context) (map[domain.TaskState]int, error)
}
