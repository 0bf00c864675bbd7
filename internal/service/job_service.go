package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kmatteson/domainintel/internal/domain"
	"github.com/kmatteson/domainintel/internal/store"
)

// JobSnapshot is a read-only view of a job's aggregated progress,
// derived from the task store and the approval entries at the moment of
// the call.
type JobSnapshot struct {
	Job                 *domain.Job
	Total               int
	Completed           int
	Failed              int
	PendingApprovalKeys []string
	Tasks               []*domain.Task
}

// JobService provides job submission and progress aggregation.
type JobService interface {
	// CreateJob normalizes the raw domain entries, registers the
	// resulting task keys, and persists a new pending job. Returns
	// ErrNoValidDomains if nothing survives normalization.
	CreateJob(ctx context.Context, rawDomains []string) (*domain.Job, error)

	// Snapshot returns the job's current aggregated progress, advancing
	// the persisted status monotonically when the derived status has
	// moved ahead. Returns store.ErrJobNotFound for unknown IDs.
	Snapshot(ctx context.Context, jobID uuid.UUID) (*JobSnapshot, error)
}

// jobService is the standard JobService implementation. Counters are
// recomputed from the stores on every snapshot instead of being kept as
// separate mutable state, which keeps them trivially consistent with
// the task outcomes under arbitrary report/resolve interleavings.
type jobService struct {
	jobStore      store.JobStore
	taskStore     store.TaskStore
	approvalStore store.ApprovalStore
	logger        *slog.Logger
}

// NewJobService creates a JobService over the given stores.
func NewJobService(
	jobStore store.JobStore,
	taskStore store.TaskStore,
	approvalStore store.ApprovalStore,
	logger *slog.Logger,
) JobService {
	if logger == nil {
		logger = slog.Default()
	}
	return &jobService{
		jobStore:      jobStore,
		taskStore:     taskStore,
		approvalStore: approvalStore,
		logger:        logger,
	}
}

func (s *jobService) CreateJob(ctx context.Context, rawDomains []string) (*domain.Job, error) {
	keys := domain.NormalizeDomains(rawDomains)
	if len(keys) == 0 {
		return nil, ErrNoValidDomains
	}

	job, err := domain.NewJob(keys)
	if err != nil {
		return nil, NewJobServiceError("create", "invalid job", err)
	}

	// Registration is idempotent, so a key already known from an
	// earlier job is simply shared rather than re-queued.
	if err := s.taskStore.Register(ctx, keys); err != nil {
		return nil, NewJobServiceError("create", "failed to register tasks", err)
	}

	if err := s.jobStore.CreateJob(ctx, job); err != nil {
		return nil, NewJobServiceError("create", "failed to persist job", err)
	}

	s.logger.InfoContext(ctx, "job created",
		"job_id", job.ID.String(),
		"task_count", len(keys))

	return job, nil
}

func (s *jobService) Snapshot(ctx context.Context, jobID uuid.UUID) (*JobSnapshot, error) {
	job, err := s.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.taskStore.GetByKeys(ctx, job.TaskKeys)
	if err != nil {
		return nil, NewJobServiceError("snapshot", "failed to load tasks", err)
	}

	entries, err := s.approvalStore.ListEntriesByJob(ctx, jobID)
	if err != nil {
		return nil, NewJobServiceError("snapshot", "failed to load approval entries", err)
	}

	prevStatus := job.Status
	snapshot := deriveSnapshot(job, tasks, entries)

	s.advanceStatus(ctx, job, prevStatus)

	return snapshot, nil
}

// deriveSnapshot computes the counters and the derived status from the
// task states and approval entries.
//
// A DONE task counts as completed unless its approval entry is still
// pending (not yet settled) or was rejected (counted as failed). A task
// key missing from the task store is treated as pending.
//
// Snapshot tasks follow the job's submission order regardless of the
// order the task store returned them in.
func deriveSnapshot(job *domain.Job, tasks []*domain.Task, entries []*domain.ApprovalEntry) *JobSnapshot {
	entryByKey := make(map[string]*domain.ApprovalEntry, len(entries))
	for _, entry := range entries {
		entryByKey[entry.Key] = entry
	}

	taskByKey := make(map[string]*domain.Task, len(tasks))
	for _, task := range tasks {
		taskByKey[task.Key] = task
	}
	ordered := make([]*domain.Task, 0, len(tasks))
	for _, key := range job.TaskKeys {
		if task, ok := taskByKey[key]; ok {
			ordered = append(ordered, task)
		}
	}

	snapshot := &JobSnapshot{
		Job:   job,
		Total: len(job.TaskKeys),
		Tasks: ordered,
	}

	terminal := 0
	leftPending := 0

	for _, task := range ordered {
		if task.State != domain.TaskStatePending {
			leftPending++
		}

		switch task.State {
		case domain.TaskStateFailed:
			terminal++
			snapshot.Failed++
		case domain.TaskStateDone:
			terminal++
			entry := entryByKey[task.Key]
			switch {
			case entry == nil || entry.State == domain.ApprovalStateAccepted:
				snapshot.Completed++
			case entry.State == domain.ApprovalStateRejected:
				snapshot.Failed++
			default:
				snapshot.PendingApprovalKeys = append(snapshot.PendingApprovalKeys, task.Key)
			}
		}
	}

	allTerminal := terminal == snapshot.Total
	switch {
	case allTerminal && len(snapshot.PendingApprovalKeys) == 0:
		snapshot.Job.Status = advance(job.Status, domain.JobStatusCompleted)
	case allTerminal:
		snapshot.Job.Status = advance(job.Status, domain.JobStatusAwaitingApproval)
	case leftPending > 0:
		snapshot.Job.Status = advance(job.Status, domain.JobStatusProcessing)
	}

	return snapshot
}

// advance applies the monotonic guard: a derived status behind the
// persisted one never regresses it.
func advance(current, derived domain.JobStatus) domain.JobStatus {
	if derived.Rank() > current.Rank() {
		return derived
	}
	return current
}

// advanceStatus persists the status and phase timestamps when the
// derived status moved the job forward. A persistence failure here is
// logged but does not fail the snapshot: the derivation re-runs on the
// next read.
func (s *jobService) advanceStatus(ctx context.Context, job *domain.Job, prevStatus domain.JobStatus) {
	changed := job.Status != prevStatus

	now := time.Now().UTC()
	if job.Status.Rank() >= domain.JobStatusProcessing.Rank() && job.StartedAt == nil {
		job.StartedAt = &now
		changed = true
	}
	if job.Status == domain.JobStatusCompleted && job.CompletedAt == nil {
		job.CompletedAt = &now
		changed = true
	}

	if !changed {
		return
	}

	if err := s.jobStore.UpdateJob(ctx, job); err != nil {
		s.logger.WarnContext(ctx, "failed to persist advanced job status",
			"job_id", job.ID.String(),
			"status", string(job.Status),
			"error", err)
	}
}
