package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kmatteson/domainintel/internal/domain"
	"github.com/kmatteson/domainintel/internal/store"
)

// ApprovalService is the approval gate between extraction and durable
// persistence. Resolution is always caller-driven: the gate never
// auto-resolves entries, so a job with unresolved approvals stays in
// awaiting_approval until every entry is resolved.
type ApprovalService interface {
	// Enqueue holds an extracted result pending an external decision.
	// Returns store.ErrApprovalExists if an entry already exists for
	// the (job, key) pair.
	Enqueue(ctx context.Context, jobID uuid.UUID, key string, result json.RawMessage) error

	// Resolve settles the pending entry for the pair. On accept the
	// result is forwarded to the persistence sink; a sink failure is
	// logged but the entry is still marked accepted, since the
	// extraction itself succeeded and is not retried. On reject the
	// result is discarded. Returns store.ErrApprovalNotFound if no
	// pending entry exists, including when it was already resolved.
	Resolve(ctx context.Context, jobID uuid.UUID, key string, accept bool) error

	// ListEntries returns all approval entries for a job in creation
	// order, pending and resolved.
	ListEntries(ctx context.Context, jobID uuid.UUID) ([]*domain.ApprovalEntry, error)
}

type approvalService struct {
	approvalStore store.ApprovalStore
	sink          store.ProfileSink
	logger        *slog.Logger
}

// NewApprovalService creates an ApprovalService over the given entry
// store and persistence sink.
func NewApprovalService(
	approvalStore store.ApprovalStore,
	sink store.ProfileSink,
	logger *slog.Logger,
) ApprovalService {
	if logger == nil {
		logger = slog.Default()
	}
	return &approvalService{
		approvalStore: approvalStore,
		sink:          sink,
		logger:        logger,
	}
}

func (s *approvalService) Enqueue(
	ctx context.Context,
	jobID uuid.UUID,
	key string,
	result json.RawMessage,
) error {
	entry, err := domain.NewApprovalEntry(jobID, key, result)
	if err != nil {
		return NewApprovalServiceError("enqueue", "invalid entry", err)
	}

	if err := s.approvalStore.CreateEntry(ctx, entry); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "result queued for approval",
		"job_id", jobID.String(),
		"task_key", key)

	return nil
}

func (s *approvalService) Resolve(ctx context.Context, jobID uuid.UUID, key string, accept bool) error {
	entry, err := s.approvalStore.GetPendingEntry(ctx, jobID, key)
	if err != nil {
		return err
	}

	state := domain.ApprovalStateRejected
	if accept {
		state = domain.ApprovalStateAccepted
	}

	// The conditional update is the double-resolve guard: a concurrent
	// resolve between the read above and this write loses and surfaces
	// as ErrApprovalNotFound.
	if err := s.approvalStore.ResolveEntry(ctx, jobID, key, state); err != nil {
		return err
	}

	if !accept {
		s.logger.InfoContext(ctx, "approval entry rejected",
			"job_id", jobID.String(),
			"task_key", key)
		return nil
	}

	s.logger.InfoContext(ctx, "approval entry accepted",
		"job_id", jobID.String(),
		"task_key", key)

	var profile domain.CompanyProfile
	if err := json.Unmarshal(entry.Result, &profile); err != nil {
		s.logger.ErrorContext(ctx, "accepted result is not a valid profile, skipping persistence",
			"job_id", jobID.String(),
			"task_key", key,
			"error", err)
		return nil
	}

	if err := s.sink.Persist(ctx, key, &profile); err != nil {
		// Non-fatal: the entry stays accepted and persistence can be
		// retried separately.
		s.logger.ErrorContext(ctx, "failed to persist accepted result",
			"job_id", jobID.String(),
			"task_key", key,
			"error", err)
	}

	return nil
}

func (s *approvalService) ListEntries(
	ctx context.Context,
	jobID uuid.UUID,
) ([]*domain.ApprovalEntry, error) {
	return s.approvalStore.ListEntriesByJob(ctx, jobID)
}
