package jobs

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tenantarmor-backend/internal/shared/server/middleware"
	"tenantarmor-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the jobs service.
type Handler struct {
	Svc         *Service
	Poll        PollPolicy
	pollLimiter *pollLimiter
}

// NewHandler constructs a Handler with the default poll policy.
func NewHandler(svc *Service) *Handler {
	return &Handler{
		Svc:         svc,
		Poll:        DefaultPollPolicy,
		pollLimiter: newPollLimiter(pollLimitWindow, nil),
	}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.submit)
	rg.GET("/analyses", h.list)
	rg.GET("/analyses/:id/status", h.status)
}

type submitRequest struct {
	DocumentClass string `json:"documentClass"`
	Jurisdiction  string `json:"jurisdiction"`
	Text          string `json:"text"`
}

func (h *Handler) submit(c *gin.Context) {
	ownerID := middleware.OwnerIDFromContext(c)

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	job, err := h.Svc.Submit(ctx, SubmitInput{
		OwnerID:       ownerID,
		DocumentClass: req.DocumentClass,
		Jurisdiction:  req.Jurisdiction,
		ExtractedText: req.Text,
		RequestID:     middleware.RequestIDFromContext(c),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSubmission):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrQueueUnavailable):
			respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "analysis queue is not available", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit analysis", nil)
		}
		return
	}

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

func (h *Handler) status(c *gin.Context) {
	ownerID := middleware.OwnerIDFromContext(c)
	jobID := c.Param("id")
	if jobID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "job id is required", nil)
		return
	}

	if !h.pollLimiter.Allow(ownerID, jobID) {
		c.Header("Retry-After", strconv.Itoa(h.pollLimiter.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "poll_too_fast", "polling too frequently", nil)
		return
	}

	job, err := h.Svc.Get(c.Request.Context(), ownerID, jobID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}

	resp := gin.H{
		"jobId":     job.ID,
		"status":    job.Status,
		"updatedAt": job.UpdatedAt,
	}
	if (job.Status == StatusComplete || job.Status == StatusPartialComplete) && job.Result != nil {
		resp["result"] = job.Result
	}
	if (job.Status == StatusFailed || job.Status == StatusPartialComplete) && job.ErrorDetail != nil {
		resp["errorDetail"] = job.ErrorDetail
	}
	if !IsTerminal(job.Status) {
		resp["polling"] = gin.H{
			"pollIntervalMs": h.Poll.Interval.Milliseconds(),
			"maxAttempts":    h.Poll.MaxAttempts,
		}
	}

	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) list(c *gin.Context) {
	ownerID := middleware.OwnerIDFromContext(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	listed, err := h.Svc.List(c.Request.Context(), ownerID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	items := make([]gin.H, 0, len(listed))
	for _, job := range listed {
		item := gin.H{
			"jobId":         job.ID,
			"documentClass": job.DocumentClass,
			"jurisdiction":  job.Jurisdiction,
			"status":        job.Status,
			"createdAt":     job.CreatedAt,
		}
		if job.Document.FileName != "" {
			item["fileName"] = job.Document.FileName
		}
		items = append(items, item)
	}

	respond.JSON(c, http.StatusOK, gin.H{"analyses": items})
}
