package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores jobs in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu      sync.RWMutex
	byID    map[string]AnalysisJob
	byOwner map[string][]string
	now     func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:    make(map[string]AnalysisJob),
		byOwner: make(map[string][]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create stores the job.
func (r *MemoryRepo) Create(ctx context.Context, job AnalysisJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[job.ID] = job
	r.byOwner[job.OwnerID] = append(r.byOwner[job.OwnerID], job.ID)
	return nil
}

// GetByID returns a job by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, jobID string) (AnalysisJob, error) {
	if err := ctx.Err(); err != nil {
		return AnalysisJob{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.byID[jobID]
	if !ok {
		return AnalysisJob{}, ErrNotFound
	}
	return job, nil
}

// UpdateStatus applies a state-machine transition. Illegal transitions leave
// the row untouched.
func (r *MemoryRepo) UpdateStatus(ctx context.Context, jobID, status string, result map[string]any, errorDetail *ErrorDetail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	if !CanTransition(job.Status, status) {
		return ErrStaleTransition
	}

	job.Status = status
	if result != nil {
		job.Result = result
	}
	if errorDetail != nil {
		job.ErrorDetail = errorDetail
	}
	now := r.now()
	job.UpdatedAt = now
	if IsTerminal(status) && job.CompletedAt == nil {
		job.CompletedAt = &now
	}
	r.byID[jobID] = job
	return nil
}

// ListByOwner returns an owner's jobs, newest first, with limit/offset.
func (r *MemoryRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]AnalysisJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 20
	}

	r.mu.RLock()
	ids := r.byOwner[ownerID]
	out := make([]AnalysisJob, 0, len(ids))
	for _, id := range ids {
		if job, ok := r.byID[id]; ok {
			out = append(out, job)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if offset >= len(out) {
		return []AnalysisJob{}, nil
	}
	end := len(out)
	if offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

var _ Repo = (*MemoryRepo)(nil)
