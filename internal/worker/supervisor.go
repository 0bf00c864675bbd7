package worker

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/kmatteson/domainintel/internal/domain"
	"github.com/kmatteson/domainintel/internal/store"
)

// SupervisorConfig holds configuration for the supervisor sweep.
type SupervisorConfig struct {
	// SweepInterval is how often the supervisor runs. If zero,
	// defaults to 5 seconds.
	SweepInterval time.Duration

	// LeaseTimeout defines how long a task can stay claimed before it
	// is considered stuck and reset to pending. Long enough that a
	// slow extraction is not mistaken for a dead worker.
	LeaseTimeout time.Duration

	// StopFile, when non-empty, names a sentinel file whose presence
	// triggers a stop signal on the next sweep.
	StopFile string

	// ShutdownWhenIdle signals a stop once every registered task is
	// terminal. Meant for batch runs; a long-lived server leaves it
	// off so an empty queue just waits for the next submission.
	ShutdownWhenIdle bool
}

// DefaultSupervisorConfig returns a SupervisorConfig with reasonable
// defaults.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		SweepInterval: 5 * time.Second,
		LeaseTimeout:  15 * time.Minute,
	}
}

// Supervisor periodically reclaims expired task leases and raises the
// stop signal on queue drain or an operator-placed stop file.
type Supervisor struct {
	tasks      store.TaskStore
	config     SupervisorConfig
	logger     *slog.Logger
	onStop     func(reason string)
	stopOnce   sync.Once
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewSupervisor creates a supervisor over the given task store. onStop
// is invoked at most once, from the sweep goroutine, when a stop
// condition is observed; it must not block.
func NewSupervisor(
	tasks store.TaskStore,
	config SupervisorConfig,
	onStop func(reason string),
	logger *slog.Logger,
) *Supervisor {
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultSupervisorConfig().SweepInterval
	}
	if config.LeaseTimeout <= 0 {
		config.LeaseTimeout = DefaultSupervisorConfig().LeaseTimeout
	}
	if onStop == nil {
		onStop = func(string) {}
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Supervisor{
		tasks:      tasks,
		config:     config,
		logger:     logger,
		onStop:     onStop,
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the sweep goroutine.
func (s *Supervisor) Start() {
	s.wg.Add(1)
	go s.run()

	s.logger.Info("supervisor started",
		"sweep_interval", s.config.SweepInterval.String(),
		"lease_timeout", s.config.LeaseTimeout.String())
}

// Stop halts the sweep goroutine.
func (s *Supervisor) Stop() {
	s.cancelFunc()
	s.wg.Wait()
}

func (s *Supervisor) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep performs one supervisor pass: reclaim expired leases, check the
// stop file, and detect queue drain.
func (s *Supervisor) sweep() {
	ctx := s.ctx

	reclaimed, err := s.tasks.ReclaimExpired(ctx, s.config.LeaseTimeout)
	if err != nil {
		s.logger.Error("failed to reclaim expired leases", "error", err)
	} else if reclaimed > 0 {
		s.logger.Info("reclaimed expired task leases", "count", reclaimed)
	}

	if s.stopFilePresent() {
		s.signalStop("stop file present")
		return
	}

	if s.config.ShutdownWhenIdle && s.queueDrained(ctx) {
		s.signalStop("task queue drained")
	}
}

func (s *Supervisor) stopFilePresent() bool {
	if s.config.StopFile == "" {
		return false
	}
	_, err := os.Stat(s.config.StopFile)
	return err == nil
}

// queueDrained reports whether at least one task exists and none is
// pending or claimed. The existence requirement keeps a freshly started
// process from stopping before its first submission arrives.
func (s *Supervisor) queueDrained(ctx context.Context) bool {
	counts, err := s.tasks.CountsByState(ctx)
	if err != nil {
		s.logger.Error("failed to count tasks", "error", err)
		return false
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	active := counts[domain.TaskStatePending] + counts[domain.TaskStateClaimed]
	return total > 0 && active == 0
}

func (s *Supervisor) signalStop(reason string) {
	s.stopOnce.Do(func() {
		s.logger.Info("supervisor raising stop signal", "reason", reason)
		s.onStop(reason)
	})
}
