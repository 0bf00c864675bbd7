package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kmatteson/domainintel/internal/domain"
	"github.com/kmatteson/domainintel/internal/store"
)

type approvalKey struct {
	jobID uuid.UUID
	key   string
}

type approvalStore struct {
	mu      sync.Mutex
	entries map[approvalKey]*domain.ApprovalEntry
	order   []approvalKey
}

func (s *approvalStore) init() {
	s.entries = make(map[approvalKey]*domain.ApprovalEntry)
}

func (s *approvalStore) CreateEntry(ctx context.Context, entry *domain.ApprovalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := approvalKey{jobID: entry.JobID, key: entry.Key}
	if _, ok := s.entries[k]; ok {
		return store.ErrApprovalExists
	}
	s.entries[k] = copyEntry(entry)
	s.order = append(s.order, k)

	return nil
}

func (s *approvalStore) GetPendingEntry(
	ctx context.Context,
	jobID uuid.UUID,
	key string,
) (*domain.ApprovalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[approvalKey{jobID: jobID, key: key}]
	if !ok || entry.State != domain.ApprovalStatePending {
		return nil, store.ErrApprovalNotFound
	}

	return copyEntry(entry), nil
}

func (s *approvalStore) ResolveEntry(
	ctx context.Context,
	jobID uuid.UUID,
	key string,
	state domain.ApprovalState,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[approvalKey{jobID: jobID, key: key}]
	if !ok || entry.State != domain.ApprovalStatePending {
		return store.ErrApprovalNotFound
	}

	resolvedAt := time.Now().UTC()
	entry.State = state
	entry.ResolvedAt = &resolvedAt

	return nil
}

func (s *approvalStore) ListEntriesByJob(
	ctx context.Context,
	jobID uuid.UUID,
) ([]*domain.ApprovalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []*domain.ApprovalEntry
	for _, k := range s.order {
		if k.jobID != jobID {
			continue
		}
		entries = append(entries, copyEntry(s.entries[k]))
	}

	return entries, nil
}

func copyEntry(e *domain.ApprovalEntry) *domain.ApprovalEntry {
	c := *e
	if e.ResolvedAt != nil {
		resolvedAt := *e.ResolvedAt
		c.ResolvedAt = &resolvedAt
	}
	return &c
}
