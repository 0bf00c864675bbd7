package redisq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmatteson/domainintel/internal/domain"
)

func newTestStore(t *testing.T) (*RedisTaskStore, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisTaskStore(rdb), rdb
}

func TestClaimFollowsQueueOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, []string{"a.com", "b.com", "c.com"}))

	claimed, err := s.Claim(ctx, 2, "w1")
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, "a.com", claimed[0].Key)
	assert.Equal(t, "b.com", claimed[1].Key)
	assert.Equal(t, domain.TaskStateClaimed, claimed[0].State)
	assert.Equal(t, "w1", claimed[0].Owner)

	claimed, err = s.Claim(ctx, 2, "w2")
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "c.com", claimed[0].Key)

	claimed, err = s.Claim(ctx, 2, "w1")
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestRegisterIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, []string{"a.com"}))
	claimed, err := s.Claim(ctx, 1, "w1")
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// Re-registering a known key must not re-queue it or reset its state.
	require.NoError(t, s.Register(ctx, []string{"a.com"}))

	claimed, err = s.Claim(ctx, 1, "w2")
	require.NoError(t, err)
	assert.Empty(t, claimed)

	tasks, err := s.GetByKeys(ctx, []string{"a.com"})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.TaskStateClaimed, tasks[0].State)
	assert.Equal(t, "w1", tasks[0].Owner)
}

func TestReportRecordsOutcomeAndIgnoresStaleOwner(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, []string{"a.com"}))
	_, err := s.Claim(ctx, 1, "w1")
	require.NoError(t, err)

	// A report from an owner that does not hold the lease is a no-op.
	require.NoError(t, s.Report(ctx, "a.com", "w2", domain.TaskStateDone, json.RawMessage(`{}`), ""))
	tasks, err := s.GetByKeys(ctx, []string{"a.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateClaimed, tasks[0].State)

	require.NoError(t, s.Report(ctx, "a.com", "w1", domain.TaskStateDone, json.RawMessage(`{"ok":true}`), ""))
	tasks, err = s.GetByKeys(ctx, []string{"a.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateDone, tasks[0].State)
	assert.JSONEq(t, `{"ok":true}`, string(tasks[0].Result))
	assert.Empty(t, tasks[0].Owner)
}

func TestReclaimExpiredResetsOnlyExpiredLeases(t *testing.T) {
	s, rdb := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, []string{"old.com", "fresh.com"}))
	claimed, err := s.Claim(ctx, 2, "w1")
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	// Age old.com's lease past the timeout.
	stale := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339Nano)
	require.NoError(t, rdb.HSet(ctx, taskHashKey("old.com"), fieldClaimedAt, stale).Err())

	reclaimed, err := s.ReclaimExpired(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)

	tasks, err := s.GetByKeys(ctx, []string{"old.com", "fresh.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatePending, tasks[0].State)
	assert.Empty(t, tasks[0].Owner)
	assert.Equal(t, domain.TaskStateClaimed, tasks[1].State)

	// The reclaimed task is claimable again.
	claimed, err = s.Claim(ctx, 1, "w2")
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "old.com", claimed[0].Key)
}

func TestReclaimExpiredRequeuesOrphanedPendingTask(t *testing.T) {
	s, rdb := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, []string{"a.com"}))

	// Simulate a claimer dying between the queue pop and the claimed
	// mark: the key leaves the list while its hash stays pending.
	popped, err := rdb.LPop(ctx, pendingQueueKey).Result()
	require.NoError(t, err)
	require.Equal(t, "a.com", popped)

	claimed, err := s.Claim(ctx, 1, "w1")
	require.NoError(t, err)
	require.Empty(t, claimed, "orphaned task must not be claimable before repair")

	reclaimed, err := s.ReclaimExpired(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)

	claimed, err = s.Claim(ctx, 1, "w1")
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "a.com", claimed[0].Key)

	// Repair is idempotent: a queued task is not duplicated.
	reclaimed, err = s.ReclaimExpired(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, reclaimed)
}

func TestClaimSkipsStaleQueueEntry(t *testing.T) {
	s, rdb := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, []string{"a.com"}))
	claimed, err := s.Claim(ctx, 1, "w1")
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// A repair sweep racing a slow claimer can leave a queue entry for a
	// key that is already claimed. The entry must be dropped, not turned
	// into a second claim.
	require.NoError(t, rdb.RPush(ctx, pendingQueueKey, "a.com").Err())

	claimed, err = s.Claim(ctx, 1, "w2")
	require.NoError(t, err)
	assert.Empty(t, claimed)

	tasks, err := s.GetByKeys(ctx, []string{"a.com"})
	require.NoError(t, err)
	assert.Equal(t, "w1", tasks[0].Owner)
	assert.Equal(t, domain.TaskStateClaimed, tasks[0].State)
}

func TestCountsByState(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, []string{"a.com", "b.com", "c.com"}))
	_, err := s.Claim(ctx, 1, "w1")
	require.NoError(t, err)
	require.NoError(t, s.Report(ctx, "a.com", "w1", domain.TaskStateFailed, nil, "fetch failed"))

	counts, err := s.CountsByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.TaskStatePending])
	assert.Equal(t, 1, counts[domain.TaskStateFailed])
}
