package job

import (
	"context"
	"sync"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps jobs in a map for the lifetime of the process.
// Runs are reported back to the document backend, so nothing here needs
// to survive a restart.
type MemoryRepository struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryRepository creates a new in-memory job repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{jobs: make(map[string]*Job)}
}

// Save stores a clone of job.
func (r *MemoryRepository) Save(_ context.Context, job *Job) error {
	c := job.Clone()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[c.ID] = c
	return nil
}

// FindByID returns a clone of the stored job.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

