package worker

import (
	"sort"
	"sync"
	"time"
)

// WorkerState is the advisory state of a single worker.
type WorkerState string

// Worker states as reported to observers.
const (
	WorkerStateIdle       WorkerState = "idle"
	WorkerStateProcessing WorkerState = "processing"
	WorkerStateStopped    WorkerState = "stopped"
)

// WorkerStatus is a point-in-time view of one worker.
type WorkerStatus struct {
	WorkerID   int         `json:"worker_id"`
	State      WorkerState `json:"state"`
	CurrentKey string      `json:"current_key,omitempty"`
	Processed  int         `json:"processed"`
	Failed     int         `json:"failed"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Progress tracks per-worker activity for observability. The data is
// advisory only: the coordination logic never reads it, so a stale
// entry can mislead an operator but never corrupt task state.
type Progress struct {
	mu      sync.Mutex
	workers map[int]*WorkerStatus
}

// NewProgress creates an empty progress tracker.
func NewProgress() *Progress {
	return &Progress{workers: make(map[int]*WorkerStatus)}
}

func (p *Progress) status(workerID int) *WorkerStatus {
	st, ok := p.workers[workerID]
	if !ok {
		st = &WorkerStatus{WorkerID: workerID, State: WorkerStateIdle}
		p.workers[workerID] = st
	}
	return st
}

// SetProcessing records that the worker started on a task key.
func (p *Progress) SetProcessing(workerID int, key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.status(workerID)
	st.State = WorkerStateProcessing
	st.CurrentKey = key
	st.UpdatedAt = time.Now().UTC()
}

// SetIdle records that the worker finished its task, counting the
// outcome.
func (p *Progress) SetIdle(workerID int, succeeded bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.status(workerID)
	st.State = WorkerStateIdle
	st.CurrentKey = ""
	if succeeded {
		st.Processed++
	} else {
		st.Failed++
	}
	st.UpdatedAt = time.Now().UTC()
}

// SetStopped marks the worker as exited.
func (p *Progress) SetStopped(workerID int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.status(workerID)
	st.State = WorkerStateStopped
	st.CurrentKey = ""
	st.UpdatedAt = time.Now().UTC()
}

// Snapshot returns a copy of every worker's status, ordered by worker
// ID.
func (p *Progress) Snapshot() []WorkerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]WorkerStatus, 0, len(p.workers))
	for _, st := range p.workers {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID < out[j].WorkerID })
	return out
}
