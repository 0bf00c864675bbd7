package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kmatteson/domainintel/internal/domain"
	"github.com/kmatteson/domainintel/internal/store"
)

type jobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.Job
}

func (s *jobStore) init() {
	s.jobs = make(map[uuid.UUID]*domain.Job)
}

func (s *jobStore) CreateJob(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return store.ErrDuplicate
	}
	s.jobs[job.ID] = copyJob(job)

	return nil
}

func (s *jobStore) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}

	return copyJob(job), nil
}

func (s *jobStore) UpdateJob(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return store.ErrJobNotFound
	}
	s.jobs[job.ID] = copyJob(job)

	return nil
}

func (s *jobStore) FindJobsByTaskKey(ctx context.Context, key string) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jobs []*domain.Job
	for _, job := range s.jobs {
		for _, taskKey := range job.TaskKeys {
			if taskKey == key {
				jobs = append(jobs, copyJob(job))
				break
			}
		}
	}

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID.String() < jobs[j].ID.String()
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})

	return jobs, nil
}

func copyJob(j *domain.Job) *domain.Job {
	c := *j
	c.TaskKeys = append([]string(nil), j.TaskKeys...)
	if j.StartedAt != nil {
		startedAt := *j.StartedAt
		c.StartedAt = &startedAt
	}
	if j.CompletedAt != nil {
		completedAt := *j.CompletedAt
		c.CompletedAt = &completedAt
	}
	return &c
}
