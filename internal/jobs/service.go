package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tenantarmor-backend/internal/queue"
	"tenantarmor-backend/internal/shared/metrics"
	"tenantarmor-backend/internal/shared/telemetry"
)

// PollPolicy tells clients how to poll the status endpoint.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPollPolicy mirrors the web client's 2-second poll with a 3-minute cap.
var DefaultPollPolicy = PollPolicy{
	Interval:    2 * time.Second,
	MaxAttempts: 90,
}

// SubmitInput is everything needed to dispatch a new job.
type SubmitInput struct {
	OwnerID       string
	DocumentClass string
	Jurisdiction  string
	ExtractedText string
	Document      DocumentRef
	RequestID     string
}

// Service contains the dispatch and polling logic for analysis jobs.
type Service struct {
	Repo  Repo
	Queue queue.Client
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// ValidateSubmit checks a submission before any record is created.
func ValidateSubmit(input SubmitInput) error {
	if strings.TrimSpace(input.OwnerID) == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidSubmission)
	}
	if input.DocumentClass != ClassLease && input.DocumentClass != ClassEviction {
		return fmt.Errorf("%w: documentClass must be %q or %q", ErrInvalidSubmission, ClassLease, ClassEviction)
	}
	if strings.TrimSpace(input.ExtractedText) == "" {
		return fmt.Errorf("%w: document text is empty", ErrInvalidSubmission)
	}
	return nil
}

// Submit creates a QUEUED job record and enqueues the dispatch message.
// When the enqueue fails the record is failed in place and returned anyway,
// so the caller still gets a job ID whose status tells the truth.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (AnalysisJob, error) {
	if err := ValidateSubmit(input); err != nil {
		return AnalysisJob{}, err
	}
	if s.Queue == nil {
		return AnalysisJob{}, ErrQueueUnavailable
	}

	requestID := input.RequestID
	if requestID == "" {
		requestID = requestIDFromContext(ctx)
	}

	now := s.now()
	job := AnalysisJob{
		ID:            uuid.NewString(),
		OwnerID:       input.OwnerID,
		DocumentClass: input.DocumentClass,
		Jurisdiction:  strings.TrimSpace(input.Jurisdiction),
		Document:      input.Document,
		Status:        StatusQueued,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.Repo.Create(ctx, job); err != nil {
		return AnalysisJob{}, fmt.Errorf("create job: %w", err)
	}
	metrics.IncJobDispatched()

	msg := queue.Message{
		JobID:         job.ID,
		ExtractedText: input.ExtractedText,
		Jurisdiction:  job.Jurisdiction,
		DocumentClass: job.DocumentClass,
		OwnerID:       job.OwnerID,
		RequestID:     requestID,
		EnqueuedAt:    now.Format(time.RFC3339),
	}
	if err := s.Queue.Send(ctx, msg); err != nil {
		detail := &ErrorDetail{
			Code:    ErrorCodeQueue,
			Message: sanitizeError(err),
		}
		if updateErr := s.Repo.UpdateStatus(ctx, job.ID, StatusFailed, nil, detail); updateErr != nil {
			telemetry.Error("job.enqueue_compensation", map[string]any{
				"request_id": requestID,
				"job_id":     job.ID,
				"error":      updateErr.Error(),
			})
		}
		job.Status = StatusFailed
		job.ErrorDetail = detail
		metrics.IncJobFailed()
		telemetry.Error("job.enqueue", map[string]any{
			"request_id": requestID,
			"owner_id":   job.OwnerID,
			"job_id":     job.ID,
			"error":      sanitizeError(err),
		})
		return job, nil
	}

	telemetry.Info("job.dispatched", map[string]any{
		"request_id":     requestID,
		"owner_id":       job.OwnerID,
		"job_id":         job.ID,
		"document_class": job.DocumentClass,
		"jurisdiction":   job.Jurisdiction,
	})
	return job, nil
}

// Get returns a job scoped to its owner. Jobs belonging to someone else are
// indistinguishable from missing ones.
func (s *Service) Get(ctx context.Context, ownerID, jobID string) (AnalysisJob, error) {
	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		return AnalysisJob{}, err
	}
	if job.OwnerID != ownerID {
		return AnalysisJob{}, ErrNotFound
	}
	return job, nil
}

// List returns an owner's jobs, newest first.
func (s *Service) List(ctx context.Context, ownerID string, limit, offset int) ([]AnalysisJob, error) {
	return s.Repo.ListByOwner(ctx, ownerID, limit, offset)
}
