package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kmatteson/domainintel/internal/domain"
)

// taskStore holds the task table. The mutex serializes every state
// transition, so claim, report, and reclaim cannot interleave
// destructively on the same task.
type taskStore struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
	order []string
	now   func() time.Time
}

func (s *taskStore) init(now func() time.Time) {
	s.tasks = make(map[string]*domain.Task)
	s.now = now
}

// Register inserts each key as pending if absent; existing keys are
// left untouched in whatever state they are in.
func (s *taskStore) Register(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		if key == "" {
			return domain.ErrEmptyTaskKey
		}
		if _, ok := s.tasks[key]; ok {
			continue
		}
		now := s.now().UTC()
		s.tasks[key] = &domain.Task{
			Key:       key,
			State:     domain.TaskStatePending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.order = append(s.order, key)
	}

	return nil
}

// Claim selects up to limit pending tasks in registration order and
// transitions them to claimed under the store mutex.
func (s *taskStore) Claim(ctx context.Context, limit int, owner string) ([]*domain.Task, error) {
	if owner == "" {
		return nil, fmt.Errorf("claim owner cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []*domain.Task
	now := s.now().UTC()

	for _, key := range s.order {
		if len(claimed) >= limit {
			break
		}
		t := s.tasks[key]
		if t.State != domain.TaskStatePending {
			continue
		}
		claimedAt := now
		t.State = domain.TaskStateClaimed
		t.Owner = owner
		t.ClaimedAt = &claimedAt
		t.UpdatedAt = now
		claimed = append(claimed, copyTask(t))
	}

	return claimed, nil
}

// Report transitions a claimed task to its terminal state. The update
// is conditional on the owner still holding the lease; a mismatched or
// non-claimed task makes the report a no-op.
func (s *taskStore) Report(
	ctx context.Context,
	key, owner string,
	outcome domain.TaskState,
	result json.RawMessage,
	errMsg string,
) error {
	if outcome != domain.TaskStateDone && outcome != domain.TaskStateFailed {
		return domain.ErrInvalidOutcome
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[key]
	if !ok {
		return nil
	}
	if t.State != domain.TaskStateClaimed || t.Owner != owner {
		// Stale report: the lease expired and the task was reclaimed,
		// or the task already reached a terminal state.
		return nil
	}

	t.State = outcome
	t.Owner = ""
	t.Result = result
	t.ErrorMessage = domain.TruncateErrorMessage(errMsg)
	t.UpdatedAt = s.now().UTC()

	return nil
}

// ReclaimExpired resets claimed tasks whose lease is older than the
// timeout back to pending.
func (s *taskStore) ReclaimExpired(ctx context.Context, timeout time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().UTC().Add(-timeout)
	reclaimed := 0

	for _, t := range s.tasks {
		if t.State != domain.TaskStateClaimed || t.ClaimedAt == nil {
			continue
		}
		if t.ClaimedAt.After(cutoff) {
			continue
		}
		t.State = domain.TaskStatePending
		t.Owner = ""
		t.ClaimedAt = nil
		t.UpdatedAt = s.now().UTC()
		reclaimed++
	}

	return reclaimed, nil
}

// GetByKeys returns copies of the tasks for the given keys, omitting
// unknown keys.
func (s *taskStore) GetByKeys(ctx context.Context, keys []string) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]*domain.Task, 0, len(keys))
	for _, key := range keys {
		if t, ok := s.tasks[key]; ok {
			tasks = append(tasks, copyTask(t))
		}
	}

	return tasks, nil
}

// CountsByState returns the number of tasks in each state.
func (s *taskStore) CountsByState(ctx context.Context) (map[domain.TaskState]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[domain.TaskState]int)
	for _, t := range s.tasks {
		counts[t.State]++
	}

	return counts, nil
}

// copyTask returns a shallow copy so callers never share the store's
// internal task pointers.
func copyTask(t *domain.Task) *domain.Task {
	c := *t
	if t.ClaimedAt != nil {
		claimedAt := *t.ClaimedAt
		c.ClaimedAt = &claimedAt
	}
	return &c
}
