package jobs

import "context"

// Repo defines persistence operations for analysis jobs.
//
// UpdateStatus enforces the state machine: the stored status must permit a
// direct transition to the new status, otherwise ErrStaleTransition is
// returned and nothing is written. Terminal rows are therefore immutable.
type Repo interface {
	Create(ctx context.Context, job AnalysisJob) error
	GetByID(ctx context.Context, jobID string) (AnalysisJob, error)
	UpdateStatus(ctx context.Context, jobID, status string, result map[string]any, errorDetail *ErrorDetail) error
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]AnalysisJob, error)
}
