package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kmatteson/domainintel/internal/domain"
	"github.com/kmatteson/domainintel/internal/extract"
	"github.com/kmatteson/domainintel/internal/fetch"
	"github.com/kmatteson/domainintel/internal/service"
	"github.com/kmatteson/domainintel/internal/store"
)

// PoolConfig holds configuration for the worker pool.
type PoolConfig struct {
	// WorkerCount determines how many concurrent workers claim tasks.
	WorkerCount int

	// ClaimBatchSize is how many tasks a worker claims per poll.
	ClaimBatchSize int

	// PollInterval is the backoff between empty claim attempts.
	PollInterval time.Duration

	// FetchTimeout bounds a single content fetch.
	FetchTimeout time.Duration

	// ExtractTimeout bounds a single extraction call.
	ExtractTimeout time.Duration

	// ApprovalEnabled routes successful extractions through the
	// approval gate instead of persisting them directly.
	ApprovalEnabled bool
}

// DefaultPoolConfig returns a PoolConfig with reasonable defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		WorkerCount:    4,
		ClaimBatchSize: 1,
		PollInterval:   2 * time.Second,
		FetchTimeout:   15 * time.Second,
		ExtractTimeout: 120 * time.Second,
	}
}

// queuedMarker is reported as a DONE task's result when the extracted
// profile is held in the approval gate rather than settled.
type queuedMarker struct {
	QueuedForApproval bool `json:"queued_for_approval"`
}

// Pool runs the worker loops. Each worker claims tasks, runs the
// fetch/extract pipeline, and reports the outcome; a pipeline failure
// is converted into a FAILED report and never escapes the loop.
type Pool struct {
	tasks     store.TaskStore
	jobs      store.JobStore
	fetcher   fetch.Fetcher
	extractor extract.Extractor
	sink      store.ProfileSink
	approvals service.ApprovalService
	progress  *Progress

	config     PoolConfig
	logger     *slog.Logger
	poolID     string
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewPool creates a worker pool over the given collaborators. The
// approvals service may be nil when the gate is disabled.
func NewPool(
	tasks store.TaskStore,
	jobs store.JobStore,
	fetcher fetch.Fetcher,
	extractor extract.Extractor,
	sink store.ProfileSink,
	approvals service.ApprovalService,
	progress *Progress,
	config PoolConfig,
	logger *slog.Logger,
) *Pool {
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultPoolConfig().WorkerCount
	}
	if config.ClaimBatchSize <= 0 {
		config.ClaimBatchSize = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPoolConfig().PollInterval
	}
	if progress == nil {
		progress = NewProgress()
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		tasks:      tasks,
		jobs:       jobs,
		fetcher:    fetcher,
		extractor:  extractor,
		sink:       sink,
		approvals:  approvals,
		progress:   progress,
		config:     config,
		logger:     logger,
		poolID:     uuid.New().String()[:8],
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Progress returns the pool's advisory progress tracker.
func (p *Pool) Progress() *Progress {
	return p.progress
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Info("worker pool started",
		"pool_id", p.poolID,
		"worker_count", p.config.WorkerCount)
}

// Stop prevents new claims and waits for in-flight tasks to finish.
// Workers always complete their current task; there is no mid-task
// cancellation.
func (p *Pool) Stop() {
	p.cancelFunc()
	p.wg.Wait()
	p.logger.Info("worker pool stopped", "pool_id", p.poolID)
}

// worker is the claim/process loop for one worker goroutine.
func (p *Pool) worker(id int) {
	defer p.wg.Done()
	defer p.progress.SetStopped(id)

	owner := fmt.Sprintf("%s/worker-%d", p.poolID, id)
	log := p.logger.With("worker_id", id, "owner", owner)

	log.Debug("starting worker")

	for {
		select {
		case <-p.ctx.Done():
			log.Debug("stopping worker")
			return
		default:
		}

		// Claims run under a background-derived context so a shutdown
		// arriving mid-claim cannot orphan a half-claimed batch; the
		// Done check above bounds how long that window stays open.
		tasks, err := p.tasks.Claim(context.Background(), p.config.ClaimBatchSize, owner)
		if err != nil {
			log.Error("claim failed", "error", err)
			p.sleep(p.config.PollInterval)
			continue
		}

		if len(tasks) == 0 {
			p.sleep(p.config.PollInterval)
			continue
		}

		for _, task := range tasks {
			p.processTask(task, id, owner, log)
		}
	}
}

// sleep waits for the given duration or until the pool is stopped.
func (p *Pool) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-p.ctx.Done():
	}
}

// processTask runs the fetch/extract pipeline for one claimed task and
// reports the outcome. Every failure path reports FAILED with a bounded
// error message; nothing here may panic through to the worker loop.
func (p *Pool) processTask(task *domain.Task, workerID int, owner string, log *slog.Logger) {
	// The task context is deliberately not the pool context: a stopping
	// pool finishes its current task instead of cancelling it.
	ctx := context.Background()
	log = log.With("task_key", task.Key)

	p.progress.SetProcessing(workerID, task.Key)

	succeeded := false
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in task pipeline", "panic", r)
			p.reportFailure(ctx, task.Key, owner, fmt.Sprintf("panic: %v", r), log)
		}
		p.progress.SetIdle(workerID, succeeded)
	}()

	log.Info("processing task")
	started := time.Now()

	fetchCtx, cancelFetch := context.WithTimeout(ctx, p.config.FetchTimeout)
	content, err := p.fetcher.Fetch(fetchCtx, task.Key)
	cancelFetch()
	if err != nil {
		log.Warn("fetch failed", "error", err)
		p.reportFailure(ctx, task.Key, owner, err.Error(), log)
		return
	}

	extractCtx, cancelExtract := context.WithTimeout(ctx, p.config.ExtractTimeout)
	profile, err := p.extractor.Extract(extractCtx, content)
	cancelExtract()
	if err != nil {
		log.Warn("extraction failed", "error", err)
		p.reportFailure(ctx, task.Key, owner, err.Error(), log)
		return
	}

	result, err := json.Marshal(profile)
	if err != nil {
		p.reportFailure(ctx, task.Key, owner, fmt.Sprintf("failed to encode profile: %v", err), log)
		return
	}

	if p.config.ApprovalEnabled && p.approvals != nil {
		result = p.queueForApproval(ctx, task.Key, result, log)
	} else if err := p.sink.Persist(ctx, task.Key, profile); err != nil {
		// The extraction succeeded, so the task is DONE with its result
		// retained; persistence can be retried separately.
		log.Error("failed to persist profile", "error", err)
	}

	if err := p.tasks.Report(ctx, task.Key, owner, domain.TaskStateDone, result, ""); err != nil {
		log.Error("failed to report task done", "error", err)
		return
	}

	succeeded = true
	log.Info("task completed", "duration_seconds", time.Since(started).Seconds())
}

// queueForApproval inserts a pending approval entry for every job
// containing the key and returns the marker result to report in place
// of the settled profile.
func (p *Pool) queueForApproval(
	ctx context.Context,
	key string,
	result json.RawMessage,
	log *slog.Logger,
) json.RawMessage {
	jobs, err := p.jobs.FindJobsByTaskKey(ctx, key)
	if err != nil {
		log.Error("failed to find jobs for approval entry", "error", err)
	}

	queued := false
	for _, job := range jobs {
		err := p.approvals.Enqueue(ctx, job.ID, key, result)
		switch {
		case err == nil:
			queued = true
		case errors.Is(err, store.ErrApprovalExists):
			queued = true
			log.Warn("approval entry already exists", "job_id", job.ID.String())
		default:
			log.Error("failed to enqueue approval entry",
				"job_id", job.ID.String(),
				"error", err)
		}
	}

	if !queued {
		// No job references the key (or every enqueue failed): settle
		// the result directly so it is not lost.
		var profile domain.CompanyProfile
		if err := json.Unmarshal(result, &profile); err == nil {
			if err := p.sink.Persist(ctx, key, &profile); err != nil {
				log.Error("failed to persist profile", "error", err)
			}
		}
		return result
	}

	marker, _ := json.Marshal(queuedMarker{QueuedForApproval: true})
	return marker
}

// reportFailure records a FAILED outcome with the error message bounded
// to the store's limit.
func (p *Pool) reportFailure(ctx context.Context, key, owner, message string, log *slog.Logger) {
	err := p.tasks.Report(ctx, key, owner, domain.TaskStateFailed, nil,
		domain.TruncateErrorMessage(message))
	if err != nil {
		log.Error("failed to report task failure", "error", err)
	}
}
