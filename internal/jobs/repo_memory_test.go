package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedJob(t *testing.T, repo *MemoryRepo, id, ownerID string, createdAt time.Time) AnalysisJob {
	t.Helper()
	job := AnalysisJob{
		ID:            id,
		OwnerID:       ownerID,
		DocumentClass: ClassLease,
		Jurisdiction:  "CA",
		Status:        StatusQueued,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("create job %s: %v", id, err)
	}
	return job
}

func TestMemoryRepoUpdateStatusEnforcesStateMachine(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	seedJob(t, repo, "job-1", "user-1", time.Now().UTC())

	if err := repo.UpdateStatus(ctx, "job-1", StatusComplete, nil, nil); !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("expected skipping states to fail, got %v", err)
	}

	for _, status := range []string{StatusExtracting, StatusAnalyzing, StatusInsightsPending, StatusComplete} {
		if err := repo.UpdateStatus(ctx, "job-1", status, nil, nil); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	// Terminal rows are immutable.
	if err := repo.UpdateStatus(ctx, "job-1", StatusFailed, nil, nil); !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("expected terminal row to reject writes, got %v", err)
	}

	job, err := repo.GetByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != StatusComplete {
		t.Fatalf("unexpected status %q", job.Status)
	}
	if job.CompletedAt == nil {
		t.Fatalf("expected completedAt on terminal job")
	}
}

func TestMemoryRepoUpdateStatusStoresResultAndError(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	seedJob(t, repo, "job-1", "user-1", time.Now().UTC())

	detail := &ErrorDetail{Code: ErrorCodeValidation, Message: "empty text", Phase: PhaseExtract}
	if err := repo.UpdateStatus(ctx, "job-1", StatusExtracting, nil, nil); err != nil {
		t.Fatalf("to extracting: %v", err)
	}
	if err := repo.UpdateStatus(ctx, "job-1", StatusFailed, nil, detail); err != nil {
		t.Fatalf("to failed: %v", err)
	}

	job, _ := repo.GetByID(ctx, "job-1")
	if job.ErrorDetail == nil || job.ErrorDetail.Code != ErrorCodeValidation {
		t.Fatalf("error detail not stored: %+v", job.ErrorDetail)
	}
	if job.Result != nil {
		t.Fatalf("failed job must not carry a result")
	}
}

func TestMemoryRepoGetByIDUnknown(t *testing.T) {
	repo := NewMemoryRepo()
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepoListByOwnerNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	base := time.Now().UTC()
	seedJob(t, repo, "old", "user-1", base.Add(-2*time.Hour))
	seedJob(t, repo, "new", "user-1", base)
	seedJob(t, repo, "other", "user-2", base)

	listed, err := repo.ListByOwner(ctx, "user-1", 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "new" || listed[1].ID != "old" {
		t.Fatalf("unexpected listing: %+v", listed)
	}

	page, err := repo.ListByOwner(ctx, "user-1", 1, 1)
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 1 || page[0].ID != "old" {
		t.Fatalf("unexpected page: %+v", page)
	}
}
