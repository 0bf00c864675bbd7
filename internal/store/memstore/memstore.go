// Package memstore provides in-memory implementations of the store
// contracts, guarded by a single mutex. It backs local development runs
// without external infrastructure and the coordination-layer tests.
// State lives only for the life of the process; it is created explicitly
// at startup and injected, never shared through package-level globals.
package memstore

import (
	"time"
)

// Store is an in-memory implementation of store.TaskStore,
// store.JobStore, store.ApprovalStore, and store.ProfileStore.
// All operations serialize on one mutex, which gives the claim/report/
// reclaim mutual exclusion the coordination layer requires.
type Store struct {
	taskStore
	jobStore
	approvalStore
	profileStore
}

// New creates an empty in-memory store.
func New() *Store {
	s := &Store{}
	s.taskStore.init(time.Now)
	s.jobStore.init()
	s.approvalStore.init()
	s.profileStore.init()
	return s
}

// SetClock overrides the task store's time source. Test seam for
// lease-expiry behavior; production code never calls it.
func (s *Store) SetClock(now func() time.Time) {
	s.taskStore.mu.Lock()
	defer s.taskStore.mu.Unlock()
	s.taskStore.now = now
}
