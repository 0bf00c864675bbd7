package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmatteson/domainintel/internal/domain"
	"github.com/kmatteson/domainintel/internal/store"
	"github.com/kmatteson/domainintel/internal/store/memstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newJobServiceFixture(t *testing.T) (JobService, *memstore.Store) {
	t.Helper()
	s := memstore.New()
	return NewJobService(s, s, s, testLogger()), s
}

func TestCreateJobNormalizesAndRegisters(t *testing.T) {
	svc, s := newJobServiceFixture(t)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, []string{"https://Example.COM/about", "other.org, example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "other.org"}, job.TaskKeys)
	assert.Equal(t, domain.JobStatusPending, job.Status)

	counts, err := s.CountsByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.TaskStatePending])
}

func TestCreateJobRejectsEmptyInput(t *testing.T) {
	svc, _ := newJobServiceFixture(t)

	_, err := svc.CreateJob(context.Background(), []string{"", "  ", "://"})
	assert.ErrorIs(t, err, ErrNoValidDomains)
}

func TestCreateJobSharesTasksAcrossJobs(t *testing.T) {
	svc, s := newJobServiceFixture(t)
	ctx := context.Background()

	first, err := svc.CreateJob(ctx, []string{"a.com"})
	require.NoError(t, err)

	// Finish a.com under the first job, then submit it again.
	_, err = s.Claim(ctx, 1, "w1")
	require.NoError(t, err)
	require.NoError(t, s.Report(ctx, "a.com", "w1", domain.TaskStateDone, json.RawMessage(`{}`), ""))

	second, err := svc.CreateJob(ctx, []string{"a.com"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// Registration must not reset the finished task.
	counts, err := s.CountsByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.TaskStateDone])
	assert.Zero(t, counts[domain.TaskStatePending])

	// The second job therefore reads as already completed.
	snap, err := svc.Snapshot(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, snap.Job.Status)
	assert.Equal(t, 1, snap.Completed)
}

func TestSnapshotUnknownJob(t *testing.T) {
	svc, _ := newJobServiceFixture(t)

	_, err := svc.Snapshot(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestSnapshotAggregatesMixedOutcomes(t *testing.T) {
	svc, s := newJobServiceFixture(t)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, []string{"a.com", "b.com"})
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, snap.Job.Status)
	assert.Equal(t, 2, snap.Total)
	assert.Zero(t, snap.Completed)

	// One task claimed: the job is processing.
	claimed, err := s.Claim(ctx, 1, "w1")
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	snap, err = svc.Snapshot(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, snap.Job.Status)
	assert.NotNil(t, snap.Job.StartedAt)

	// a.com succeeds, b.com fails: the job completes with one of each.
	require.NoError(t, s.Report(ctx, claimed[0].Key, "w1", domain.TaskStateDone, json.RawMessage(`{}`), ""))
	claimed, err = s.Claim(ctx, 1, "w1")
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, s.Report(ctx, claimed[0].Key, "w1", domain.TaskStateFailed, nil, "fetch failed"))

	snap, err = svc.Snapshot(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, snap.Job.Status)
	assert.Equal(t, 1, snap.Completed)
	assert.Equal(t, 1, snap.Failed)
	assert.Empty(t, snap.PendingApprovalKeys)
	assert.NotNil(t, snap.Job.CompletedAt)

	// The advanced status was persisted.
	stored, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, stored.Status)
}

func TestSnapshotAwaitsApprovalThenCompletes(t *testing.T) {
	s := memstore.New()
	jobSvc := NewJobService(s, s, s, testLogger())
	approvalSvc := NewApprovalService(s, s, testLogger())
	ctx := context.Background()

	job, err := jobSvc.CreateJob(ctx, []string{"a.com"})
	require.NoError(t, err)

	claimed, err := s.Claim(ctx, 1, "w1")
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	result := json.RawMessage(`{"company_information":{"company_name":"Acme"}}`)
	require.NoError(t, approvalSvc.Enqueue(ctx, job.ID, "a.com", result))
	require.NoError(t, s.Report(ctx, "a.com", "w1", domain.TaskStateDone, json.RawMessage(`{"queued_for_approval":true}`), ""))

	snap, err := jobSvc.Snapshot(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusAwaitingApproval, snap.Job.Status)
	assert.Equal(t, []string{"a.com"}, snap.PendingApprovalKeys)
	assert.Zero(t, snap.Completed)

	require.NoError(t, approvalSvc.Resolve(ctx, job.ID, "a.com", true))

	snap, err = jobSvc.Snapshot(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, snap.Job.Status)
	assert.Equal(t, 1, snap.Completed)
	assert.Empty(t, snap.PendingApprovalKeys)
}

func TestSnapshotCountsRejectedApprovalAsFailed(t *testing.T) {
	s := memstore.New()
	jobSvc := NewJobService(s, s, s, testLogger())
	approvalSvc := NewApprovalService(s, s, testLogger())
	ctx := context.Background()

	job, err := jobSvc.CreateJob(ctx, []string{"a.com"})
	require.NoError(t, err)

	_, err = s.Claim(ctx, 1, "w1")
	require.NoError(t, err)
	require.NoError(t, approvalSvc.Enqueue(ctx, job.ID, "a.com", json.RawMessage(`{}`)))
	require.NoError(t, s.Report(ctx, "a.com", "w1", domain.TaskStateDone, json.RawMessage(`{"queued_for_approval":true}`), ""))

	require.NoError(t, approvalSvc.Resolve(ctx, job.ID, "a.com", false))

	snap, err := jobSvc.Snapshot(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, snap.Job.Status)
	assert.Zero(t, snap.Completed)
	assert.Equal(t, 1, snap.Failed)
}

// reversingTaskStore returns tasks in reverse order, standing in for
// backends that order rows by creation time rather than requested keys.
type reversingTaskStore struct {
	*memstore.Store
}

func (s *reversingTaskStore) GetByKeys(ctx context.Context, keys []string) ([]*domain.Task, error) {
	tasks, err := s.Store.GetByKeys(ctx, keys)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(tasks)-1; i < j; i, j = i+1, j-1 {
		tasks[i], tasks[j] = tasks[j], tasks[i]
	}
	return tasks, nil
}

func TestSnapshotTaskOrderFollowsJob(t *testing.T) {
	s := memstore.New()
	svc := NewJobService(s, &reversingTaskStore{Store: s}, s, testLogger())
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, []string{"alpha.com", "beta.org", "gamma.net"})
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, snap.Tasks, 3)

	keys := make([]string, 0, len(snap.Tasks))
	for _, task := range snap.Tasks {
		keys = append(keys, task.Key)
	}
	assert.Equal(t, job.TaskKeys, keys)
}

func TestSnapshotStatusNeverRegresses(t *testing.T) {
	svc, s := newJobServiceFixture(t)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, []string{"a.com"})
	require.NoError(t, err)

	// Force a state ahead of what the tasks would derive.
	stored, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	stored.Status = domain.JobStatusCompleted
	require.NoError(t, s.UpdateJob(ctx, stored))

	snap, err := svc.Snapshot(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, snap.Job.Status)
}
