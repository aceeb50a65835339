// Package storage provides the durable job store. The postgres
// implementation backs the deployed service; the memory implementation backs
// tests and local development.
package storage

import (
	"context"

	"github.com/utanutan/youtube-comment-analyzer/internal/domain"
)

// Patch is the fixed, enumerated set of mutable job fields. Update merges
// only the fields that are set; everything else is left untouched. UpdatedAt
// is always stamped by the store.
type Patch struct {
	Status   *domain.Status
	Progress *domain.Progress
	Result   *domain.Result
	Error    *domain.JobError
}

// Store is the keyed create/read/partial-update surface over job records.
// There is no optimistic-concurrency check: last writer wins, which is
// acceptable while exactly one worker owns a job at a time.
type Store interface {
	// Create inserts a new job; fails with domain.ErrConflict if the id exists.
	Create(ctx context.Context, job *domain.Job) error
	// Get returns a snapshot of the job; fails with domain.ErrNotFound if the
	// id is unknown or the job is past its retention deadline.
	Get(ctx context.Context, id string) (*domain.Job, error)
	// Update merges the patch into the job record; fails with
	// domain.ErrNotFound if the id is unknown. A status patch must be a legal
	// forward step per domain.Status.CanTransition (setting the current status
	// again is a no-op); otherwise Update fails with domain.ErrTerminalState
	// or domain.ErrInvalidTransition and writes nothing.
	Update(ctx context.Context, id string, patch Patch) error
	// Delete removes a job record; fails with domain.ErrNotFound if the id is
	// unknown. Used to roll back an intake whose enqueue failed.
	Delete(ctx context.Context, id string) error
	// DeleteExpired purges jobs past their retention deadline and reports how
	// many were removed.
	DeleteExpired(ctx context.Context) (int64, error)
	// Ping reports store liveness.
	Ping(ctx context.Context) error
	// Close releases the store's resources.
	Close()
}
