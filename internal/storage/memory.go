package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/utanutan/youtube-comment-analyzer/internal/domain"
)

// Memory keeps jobs in a process-local map. It backs tests and single-node
// development runs where a database is overkill.
type Memory struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		jobs: make(map[string]*domain.Job),
		now:  time.Now,
	}
}

func (m *Memory) Create(_ context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrConflict, job.ID)
	}

	m.jobs[job.ID] = cloneJob(job)

	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok || job.Expired(m.now()) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	return cloneJob(job), nil
}

func (m *Memory) Update(_ context.Context, id string, patch Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	if patch.Status != nil && *patch.Status != job.Status {
		if !job.Status.CanTransition(*patch.Status) {
			if job.Status.Terminal() {
				return fmt.Errorf("%w: %s", domain.ErrTerminalState, id)
			}

			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, job.Status, *patch.Status)
		}

		job.Status = *patch.Status
	}

	if patch.Progress != nil {
		job.Progress = *patch.Progress
	}

	if patch.Result != nil {
		job.Result = patch.Result
	}

	if patch.Error != nil {
		job.Error = patch.Error
	}

	job.UpdatedAt = m.now().UTC()

	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	delete(m.jobs, id)

	return nil
}

func (m *Memory) DeleteExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	var removed int64

	for id, job := range m.jobs {
		if job.Expired(now) {
			delete(m.jobs, id)
			removed++
		}
	}

	return removed, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() {}

func cloneJob(job *domain.Job) *domain.Job {
	clone := *job

	if job.Result != nil {
		result := *job.Result
		clone.Result = &result
	}

	if job.Error != nil {
		jobErr := *job.Error
		clone.Error = &jobErr
	}

	return &clone
}
