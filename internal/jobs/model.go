package jobs

import "time"

// Document classes accepted for analysis.
const (
	ClassLease    = "lease"
	ClassEviction = "eviction"
)

// DocumentRef points at the stored source document.
type DocumentRef struct {
	Bucket    string `json:"bucket,omitempty"`
	Key       string `json:"key,omitempty"`
	FileName  string `json:"fileName,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
}

// ErrorDetail describes why a job failed, or which phase degraded a
// PARTIAL_COMPLETE job.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Phase   string `json:"phase,omitempty"`
}

// AnalysisJob represents one asynchronous document analysis.
//
// Result is set only when Status is COMPLETE or PARTIAL_COMPLETE.
// ErrorDetail is set only when Status is FAILED or PARTIAL_COMPLETE.
type AnalysisJob struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"ownerId"`
	DocumentClass string         `json:"documentClass"`
	Jurisdiction  string         `json:"jurisdiction"`
	Document      DocumentRef    `json:"document,omitempty"`
	Status        string         `json:"status"`
	Result        map[string]any `json:"result,omitempty"`
	ErrorDetail   *ErrorDetail   `json:"errorDetail,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	CompletedAt   *time.Time     `json:"completedAt,omitempty"`
}
