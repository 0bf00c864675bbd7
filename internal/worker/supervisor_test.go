package worker

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmatteson/domainintel/internal/domain"
	"github.com/kmatteson/domainintel/internal/store/memstore"
)

type stopRecorder struct {
	mu      sync.Mutex
	reasons []string
}

func (r *stopRecorder) record(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *stopRecorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reasons...)
}

func TestSweepReclaimsExpiredLeases(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return current })

	require.NoError(t, s.Register(ctx, []string{"stuck.com"}))
	_, err := s.Claim(ctx, 1, "dead-worker")
	require.NoError(t, err)

	sup := NewSupervisor(s, SupervisorConfig{LeaseTimeout: 15 * time.Minute}, nil, testLogger())

	// Within the lease window nothing happens.
	current = current.Add(10 * time.Minute)
	sup.sweep()
	tasks, err := s.GetByKeys(ctx, []string{"stuck.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateClaimed, tasks[0].State)

	current = current.Add(10 * time.Minute)
	sup.sweep()
	tasks, err = s.GetByKeys(ctx, []string{"stuck.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatePending, tasks[0].State)
	assert.Empty(t, tasks[0].Owner)
}

func TestSweepSignalsStopOnStopFile(t *testing.T) {
	s := memstore.New()
	recorder := &stopRecorder{}
	stopFile := filepath.Join(t.TempDir(), "stop")

	sup := NewSupervisor(s, SupervisorConfig{StopFile: stopFile}, recorder.record, testLogger())

	sup.sweep()
	assert.Empty(t, recorder.calls())

	require.NoError(t, os.WriteFile(stopFile, nil, 0o600))
	sup.sweep()
	require.Len(t, recorder.calls(), 1)
	assert.Equal(t, "stop file present", recorder.calls()[0])

	// The signal fires at most once.
	sup.sweep()
	assert.Len(t, recorder.calls(), 1)
}

func TestSweepSignalsStopWhenQueueDrained(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	recorder := &stopRecorder{}

	sup := NewSupervisor(s, SupervisorConfig{ShutdownWhenIdle: true}, recorder.record, testLogger())

	// An empty store is not a drained queue.
	sup.sweep()
	assert.Empty(t, recorder.calls())

	require.NoError(t, s.Register(ctx, []string{"a.com"}))
	sup.sweep()
	assert.Empty(t, recorder.calls())

	_, err := s.Claim(ctx, 1, "w1")
	require.NoError(t, err)
	sup.sweep()
	assert.Empty(t, recorder.calls())

	require.NoError(t, s.Report(ctx, "a.com", "w1", domain.TaskStateDone, nil, ""))
	sup.sweep()
	require.Len(t, recorder.calls(), 1)
	assert.Equal(t, "task queue drained", recorder.calls()[0])
}

func TestSweepIgnoresDrainWhenIdleShutdownDisabled(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	recorder := &stopRecorder{}

	require.NoError(t, s.Register(ctx, []string{"a.com"}))
	_, err := s.Claim(ctx, 1, "w1")
	require.NoError(t, err)
	require.NoError(t, s.Report(ctx, "a.com", "w1", domain.TaskStateDone, nil, ""))

	sup := NewSupervisor(s, SupervisorConfig{}, recorder.record, testLogger())
	sup.sweep()
	assert.Empty(t, recorder.calls())
}

func TestSupervisorRunLoop(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	recorder := &stopRecorder{}

	require.NoError(t, s.Register(ctx, []string{"a.com"}))
	_, err := s.Claim(ctx, 1, "w1")
	require.NoError(t, err)
	require.NoError(t, s.Report(ctx, "a.com", "w1", domain.TaskStateDone, nil, ""))

	sup := NewSupervisor(s, SupervisorConfig{
		SweepInterval:    5 * time.Millisecond,
		ShutdownWhenIdle: true,
	}, recorder.record, testLogger())

	sup.Start()
	defer sup.Stop()

	require.Eventually(t, func() bool {
		return len(recorder.calls()) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDefaultSupervisorConfig(t *testing.T) {
	cfg := DefaultSupervisorConfig()
	assert.Equal(t, 5*time.Second, cfg.SweepInterval)
	assert.Equal(t, 15*time.Minute, cfg.LeaseTimeout)
	assert.False(t, cfg.ShutdownWhenIdle)
}
