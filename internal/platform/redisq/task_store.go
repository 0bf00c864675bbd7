// Package redisq provides a Redis-backed implementation of the task
// store: a pending LIST as the broker queue plus one HASH per task as
// the side table holding lifecycle state. Popping a key from the list
// gives a claimer exclusivity; claim, report and reclaim all guard
// their hash updates with WATCH transactions so concurrent claimers, a
// finishing worker and the supervisor sweep cannot interleave
// destructively on the same task.
//
// The pop and the claimed mark are two Redis operations, so a claimer
// that dies between them leaves the hash pending while the key sits in
// no list. ReclaimExpired repairs that: any pending hash whose key is
// absent from the queue is pushed back, and Claim only transitions
// hashes still in the pending state, so a repaired key that was
// meanwhile claimed elsewhere is skipped rather than double-claimed.
//
// Durability matches the Redis deployment (RDB/AOF settings); for
// stronger guarantees use the postgres backend.
package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kmatteson/domainintel/internal/domain"
	"github.com/kmatteson/domainintel/internal/platform/logger"
)

// Redis key layout.
const (
	pendingQueueKey = "tasks:pending"
	allTasksKey     = "tasks:all"
	taskKeyPrefix   = "task:"
)

// Hash field names.
const (
	fieldState        = "state"
	fieldOwner        = "owner"
	fieldResult       = "result"
	fieldErrorMessage = "error_message"
	fieldClaimedAt    = "claimed_at"
	fieldCreatedAt    = "created_at"
	fieldUpdatedAt    = "updated_at"
)

// RedisTaskStore implements store.TaskStore over a Redis list queue
// with per-task hash records.
type RedisTaskStore struct {
	rdb *redis.Client
}

// NewRedisTaskStore creates a new RedisTaskStore.
func NewRedisTaskStore(rdb *redis.Client) *RedisTaskStore {
	return &RedisTaskStore{rdb: rdb}
}

func taskHashKey(key string) string {
	return taskKeyPrefix + key
}

// Register inserts each key as pending if absent. HSetNX on the state
// field decides insertion atomically, so a key already present in any
// state is left untouched and not re-queued.
func (s *RedisTaskStore) Register(ctx context.Context, keys []string) error {
	log := logger.FromContext(ctx)

	now := time.Now().UTC().Format(time.RFC3339Nano)

	for _, key := range keys {
		if key == "" {
			return domain.ErrEmptyTaskKey
		}

		inserted, err := s.rdb.HSetNX(ctx, taskHashKey(key), fieldState, string(domain.TaskStatePending)).Result()
		if err != nil {
			log.Error("failed to register task",
				"task_key", key,
				"error", err)
			return fmt.Errorf("failed to register task: %w", err)
		}
		if !inserted {
			continue
		}

		pipe := s.rdb.TxPipeline()
		pipe.HSet(ctx, taskHashKey(key), fieldCreatedAt, now, fieldUpdatedAt, now)
		pipe.SAdd(ctx, allTasksKey, key)
		pipe.RPush(ctx, pendingQueueKey, key)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to enqueue task %s: %w", key, err)
		}
	}

	return nil
}

// Claim pops up to limit keys from the pending queue and marks their
// hashes claimed. List pop order is FIFO, matching registration order.
//
// The claimed mark is a WATCH transaction conditional on the hash still
// being pending. That guard matters when the repair sweep re-queued a
// key whose hash had meanwhile moved on: the stale queue entry is
// dropped here instead of stealing the task from its current owner.
func (s *RedisTaskStore) Claim(ctx context.Context, limit int, owner string) ([]*domain.Task, error) {
	log := logger.FromContext(ctx)

	if owner == "" {
		return nil, fmt.Errorf("claim owner cannot be empty")
	}

	keys, err := s.rdb.LPopCount(ctx, pendingQueueKey, limit).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		log.Error("failed to pop pending tasks",
			"owner", owner,
			"error", err)
		return nil, fmt.Errorf("failed to pop pending tasks: %w", err)
	}

	nowStr := time.Now().UTC().Format(time.RFC3339Nano)

	var claimed []*domain.Task
	for _, key := range keys {
		hashKey := taskHashKey(key)

		won := false
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			state, err := tx.HGet(ctx, hashKey, fieldState).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return nil
				}
				return err
			}
			if state != string(domain.TaskStatePending) {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, hashKey,
					fieldState, string(domain.TaskStateClaimed),
					fieldOwner, owner,
					fieldClaimedAt, nowStr,
					fieldUpdatedAt, nowStr,
				)
				return nil
			})
			if err == nil {
				won = true
			}
			return err
		}, hashKey)
		if err != nil {
			if errors.Is(err, redis.TxFailedErr) {
				// Lost the hash to a concurrent writer. If the task is
				// still pending the repair sweep re-queues it.
				log.Warn("claim conflict, skipping task",
					"task_key", key,
					"owner", owner)
				continue
			}
			return claimed, fmt.Errorf("failed to mark task %s claimed: %w", key, err)
		}
		if !won {
			continue
		}

		task, err := s.getTask(ctx, key)
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, task)
	}

	return claimed, nil
}

// Report transitions a claimed task to done or failed. The WATCH
// transaction re-checks (state, owner) before writing, so a stale
// report from a worker that lost its lease is a no-op.
func (s *RedisTaskStore) Report(
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

	hashKey := taskHashKey(key)

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		fields, err := tx.HMGet(ctx, hashKey, fieldState, fieldOwner).Result()
		if err != nil {
			return err
		}

		state, _ := fields[0].(string)
		currentOwner, _ := fields[1].(string)
		if state != string(domain.TaskStateClaimed) || currentOwner != owner {
			log.Warn("ignoring stale task report",
				"task_key", key,
				"owner", owner,
				"outcome", outcome)
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, hashKey,
				fieldState, string(outcome),
				fieldOwner, "",
				fieldResult, string(result),
				fieldErrorMessage, domain.TruncateErrorMessage(errMsg),
				fieldUpdatedAt, time.Now().UTC().Format(time.RFC3339Nano),
			)
			return nil
		})
		return err
	}, hashKey)
	if err != nil {
		log.Error("failed to report task outcome",
			"task_key", key,
			"outcome", outcome,
			"error", err)
		return fmt.Errorf("failed to report task outcome: %w", err)
	}

	return nil
}

// ReclaimExpired scans the task hashes and repairs both stuck shapes:
// claimed tasks whose lease is older than the timeout are reset to
// pending and re-queued, and pending tasks missing from the queue (a
// claimer died between the pop and the claimed mark) are pushed back.
func (s *RedisTaskStore) ReclaimExpired(ctx context.Context, timeout time.Duration) (int, error) {
	log := logger.FromContext(ctx)

	keys, err := s.rdb.SMembers(ctx, allTasksKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	cutoff := time.Now().UTC().Add(-timeout)
	reclaimed := 0

	for _, key := range keys {
		hashKey := taskHashKey(key)

		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			fields, err := tx.HMGet(ctx, hashKey, fieldState, fieldClaimedAt).Result()
			if err != nil {
				return err
			}

			state, _ := fields[0].(string)
			claimedAtStr, _ := fields[1].(string)

			switch state {
			case string(domain.TaskStatePending):
				_, err := tx.LPos(ctx, pendingQueueKey, key, redis.LPosArgs{}).Result()
				if err == nil {
					// Still queued, nothing to repair.
					return nil
				}
				if !errors.Is(err, redis.Nil) {
					return err
				}

				log.Warn("re-queueing orphaned pending task", "task_key", key)
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.RPush(ctx, pendingQueueKey, key)
					return nil
				})
				if err == nil {
					reclaimed++
				}
				return err

			case string(domain.TaskStateClaimed):
				if claimedAtStr == "" {
					return nil
				}
				claimedAt, err := time.Parse(time.RFC3339Nano, claimedAtStr)
				if err != nil || claimedAt.After(cutoff) {
					return nil
				}

				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.HSet(ctx, hashKey,
						fieldState, string(domain.TaskStatePending),
						fieldOwner, "",
						fieldClaimedAt, "",
						fieldUpdatedAt, time.Now().UTC().Format(time.RFC3339Nano),
					)
					pipe.RPush(ctx, pendingQueueKey, key)
					return nil
				})
				if err == nil {
					reclaimed++
				}
				return err

			default:
				return nil
			}
		}, hashKey)
		if err != nil {
			if errors.Is(err, redis.TxFailedErr) {
				// A claimer or worker beat the sweep to this hash; the
				// next sweep sees the settled state.
				continue
			}
			log.Error("failed to reclaim task",
				"task_key", key,
				"error", err)
			return reclaimed, fmt.Errorf("failed to reclaim task %s: %w", key, err)
		}
	}

	return reclaimed, nil
}

// GetByKeys returns the tasks for the given keys, omitting unknown keys.
func (s *RedisTaskStore) GetByKeys(ctx context.Context, keys []string) ([]*domain.Task, error) {
	tasks := make([]*domain.Task, 0, len(keys))

	for _, key := range keys {
		task, err := s.getTask(ctx, key)
		if err != nil {
			return nil, err
		}
		if task == nil {
			continue
		}
		tasks = append(tasks, task)
	}

	return tasks, nil
}

// CountsByState returns the number of tasks in each state.
func (s *RedisTaskStore) CountsByState(ctx context.Context) (map[domain.TaskState]int, error) {
	keys, err := s.rdb.SMembers(ctx, allTasksKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	counts := make(map[domain.TaskState]int)
	for _, key := range keys {
		state, err := s.rdb.HGet(ctx, taskHashKey(key), fieldState).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("failed to read task state: %w", err)
		}
		counts[domain.TaskState(state)]++
	}

	return counts, nil
}

// getTask loads a task hash into a domain task. Returns nil for
// unknown keys.
func (s *RedisTaskStore) getTask(ctx context.Context, key string) (*domain.Task, error) {
	fields, err := s.rdb.HGetAll(ctx, taskHashKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	task := &domain.Task{
		Key:          key,
		State:        domain.TaskState(fields[fieldState]),
		Owner:        fields[fieldOwner],
		ErrorMessage: fields[fieldErrorMessage],
	}
	if result := fields[fieldResult]; result != "" {
		task.Result = json.RawMessage(result)
	}
	if ts := fields[fieldClaimedAt]; ts != "" {
		if claimedAt, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			task.ClaimedAt = &claimedAt
		}
	}
	if ts := fields[fieldCreatedAt]; ts != "" {
		if createdAt, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			task.CreatedAt = createdAt
		}
	}
	if ts := fields[fieldUpdatedAt]; ts != "" {
		if updatedAt, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			task.UpdatedAt = updatedAt
		}
	}

	return task, nil
}
