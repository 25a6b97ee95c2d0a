package uploads

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tenantarmor-backend/internal/extract"
	"tenantarmor-backend/internal/jobs"
	"tenantarmor-backend/internal/shared/server/middleware"
	"tenantarmor-backend/internal/shared/server/respond"
	"tenantarmor-backend/internal/shared/storage/object"
	"tenantarmor-backend/internal/shared/telemetry"
)

const maxUploadBytes = 10 << 20

// Handler accepts a document upload, stores it, extracts its text, and
// dispatches the analysis job in one request.
type Handler struct {
	Store object.ObjectStore
	Jobs  *jobs.Service
	Poll  jobs.PollPolicy
}

// NewHandler constructs a Handler with the default poll policy.
func NewHandler(store object.ObjectStore, jobsSvc *jobs.Service) *Handler {
	return &Handler{Store: store, Jobs: jobsSvc, Poll: jobs.DefaultPollPolicy}
}

// RegisterRoutes attaches upload routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.upload)
}

func (h *Handler) upload(c *gin.Context) {
	ownerID := middleware.OwnerIDFromContext(c)
	requestID := middleware.RequestIDFromContext(c)

	documentClass := strings.TrimSpace(c.PostForm("documentClass"))
	jurisdiction := strings.TrimSpace(c.PostForm("jurisdiction"))

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	if fileHeader.Size <= 0 || fileHeader.Size > maxUploadBytes {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file size exceeds limit", nil)
		return
	}

	mediaType := fileHeader.Header.Get("Content-Type")
	if !extract.SupportedMediaType(mediaType, fileHeader.Filename) {
		respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "only PDF, Word, and plain text documents are supported", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read upload", nil)
		return
	}
	defer file.Close()

	ctx := c.Request.Context()
	storageKey, sizeBytes, detectedType, err := h.Store.Save(ctx, ownerID, fileHeader.Filename, file)
	if err != nil {
		telemetry.Error("upload.store", map[string]any{
			"request_id": requestID,
			"owner_id":   ownerID,
			"error":      err.Error(),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store document", nil)
		return
	}
	if detectedType != "" {
		mediaType = detectedType
	}

	text, err := extract.ExtractText(ctx, h.Store, storageKey, mediaType, fileHeader.Filename)
	if err != nil {
		telemetry.Error("upload.extract", map[string]any{
			"request_id":  requestID,
			"owner_id":    ownerID,
			"storage_key": storageKey,
			"error":       err.Error(),
		})
		respond.Error(c, http.StatusUnprocessableEntity, "extraction_failed", "could not extract text from the document", nil)
		return
	}

	job, err := h.Jobs.Submit(jobs.WithRequestID(ctx, requestID), jobs.SubmitInput{
		OwnerID:       ownerID,
		DocumentClass: documentClass,
		Jurisdiction:  jurisdiction,
		ExtractedText: text,
		Document: jobs.DocumentRef{
			Key:       storageKey,
			FileName:  fileHeader.Filename,
			MediaType: mediaType,
		},
		RequestID: requestID,
	})
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrInvalidSubmission):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit analysis", nil)
		}
		return
	}

	telemetry.Info("upload.accepted", map[string]any{
		"request_id":     requestID,
		"owner_id":       ownerID,
		"job_id":         job.ID,
		"document_class": job.DocumentClass,
		"size_bytes":     sizeBytes,
	})

	respond.JSON(c, http.StatusAccepted, gin.H{
		"jobId":  job.ID,
		"status": job.Status,
		"polling": gin.H{
			"statusUrl":      "/api/v1/analyses/" + job.ID + "/status",
			"pollIntervalMs": h.Poll.Interval.Milliseconds(),
			"maxAttempts":    h.Poll.MaxAttempts,
		},
	})
}
