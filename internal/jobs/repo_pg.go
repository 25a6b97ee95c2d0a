package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new job.
func (r *PGRepo) Create(ctx context.Context, job AnalysisJob) error {
	const query = `
INSERT INTO analysis_jobs (
	id, owner_id, document_class, jurisdiction,
	doc_bucket, doc_key, doc_file_name, doc_media_type,
	status, result, error_detail, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	resultPayload, err := marshalJSONB(job.Result)
	if err != nil {
		return err
	}
	errorPayload, err := marshalJSONB(job.ErrorDetail)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(ctx, query,
		job.ID,
		job.OwnerID,
		job.DocumentClass,
		job.Jurisdiction,
		job.Document.Bucket,
		job.Document.Key,
		job.Document.FileName,
		job.Document.MediaType,
		job.Status,
		resultPayload,
		errorPayload,
		job.CreatedAt,
		job.CreatedAt,
	)
	return err
}

const jobColumns = `
id, owner_id, document_class, jurisdiction,
doc_bucket, doc_key, doc_file_name, doc_media_type,
status, result, error_detail, created_at, updated_at, completed_at`

// GetByID returns a job by ID.
func (r *PGRepo) GetByID(ctx context.Context, jobID string) (AnalysisJob, error) {
	query := `SELECT ` + jobColumns + `
FROM analysis_jobs
WHERE id = $1
LIMIT 1`

	row := r.DB.QueryRowContext(ctx, query, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AnalysisJob{}, ErrNotFound
		}
		return AnalysisJob{}, err
	}
	return job, nil
}

// UpdateStatus applies a state-machine transition. The update is guarded on
// the previously read status so concurrent writers cannot skip states or
// resurrect a terminal row.
func (r *PGRepo) UpdateStatus(ctx context.Context, jobID, status string, result map[string]any, errorDetail *ErrorDetail) error {
	var current string
	err := r.DB.QueryRowContext(ctx, `SELECT status FROM analysis_jobs WHERE id = $1 LIMIT 1`, jobID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if !CanTransition(current, status) {
		return ErrStaleTransition
	}

	const query = `
UPDATE analysis_jobs
SET status = $1,
    result = COALESCE($2::jsonb, result),
    error_detail = COALESCE($3::jsonb, error_detail),
    completed_at = CASE
        WHEN $4::boolean AND completed_at IS NULL THEN now()
        ELSE completed_at
    END,
    updated_at = now()
WHERE id = $5 AND status = $6`

	var resultPayload any
	if result != nil {
		resultPayload, err = json.Marshal(result)
		if err != nil {
			return err
		}
	}
	var errorPayload any
	if errorDetail != nil {
		errorPayload, err = json.Marshal(errorDetail)
		if err != nil {
			return err
		}
	}

	res, err := r.DB.ExecContext(ctx, query, status, resultPayload, errorPayload, IsTerminal(status), jobID, current)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStaleTransition
	}
	return nil
}

// ListByOwner lists an owner's jobs, newest first.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]AnalysisJob, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + jobColumns + `
FROM analysis_jobs
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AnalysisJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (AnalysisJob, error) {
	var job AnalysisJob
	var bucket, key, fileName, mediaType sql.NullString
	var result, errorDetail sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.DocumentClass,
		&job.Jurisdiction,
		&bucket,
		&key,
		&fileName,
		&mediaType,
		&job.Status,
		&result,
		&errorDetail,
		&job.CreatedAt,
		&job.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return AnalysisJob{}, err
	}

	job.Document = DocumentRef{
		Bucket:    bucket.String,
		Key:       key.String,
		FileName:  fileName.String,
		MediaType: mediaType.String,
	}
	if result.Valid && result.String != "" && result.String != "{}" {
		job.Result = map[string]any{}
		if err := json.Unmarshal([]byte(result.String), &job.Result); err != nil {
			job.Result = nil
		}
	}
	if errorDetail.Valid && errorDetail.String != "" && errorDetail.String != "{}" {
		var detail ErrorDetail
		if err := json.Unmarshal([]byte(errorDetail.String), &detail); err == nil && detail.Code != "" {
			job.ErrorDetail = &detail
		}
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return job, nil
}

func marshalJSONB(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return []byte("{}"), nil
	case map[string]any:
		if v == nil {
			return []byte("{}"), nil
		}
	case *ErrorDetail:
		if v == nil {
			return []byte("{}"), nil
		}
	}
	return json.Marshal(value)
}

var _ Repo = (*PGRepo)(nil)
