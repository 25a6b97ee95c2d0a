package chat

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tenantarmor-backend/internal/jobs"
	"tenantarmor-backend/internal/llm"
	"tenantarmor-backend/internal/shared/metrics"
	"tenantarmor-backend/internal/shared/server/middleware"
	"tenantarmor-backend/internal/shared/server/respond"
	"tenantarmor-backend/internal/shared/telemetry"
)

const maxHistoryTurns = 20

// Handler streams chat answers about a finished analysis over SSE.
type Handler struct {
	Jobs      *jobs.Service
	Assembler *Assembler
	LLM       llm.Client
}

// NewHandler constructs a Handler.
func NewHandler(jobsSvc *jobs.Service, assembler *Assembler, client llm.Client) *Handler {
	return &Handler{Jobs: jobsSvc, Assembler: assembler, LLM: client}
}

// RegisterRoutes attaches chat routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses/:id/chat", h.chat)
}

type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Message string     `json:"message"`
	History []chatTurn `json:"history"`
}

func (h *Handler) chat(c *gin.Context) {
	started := time.Now()
	ownerID := middleware.OwnerIDFromContext(c)
	jobID := c.Param("id")

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "message is required", nil)
		return
	}

	job, err := h.Jobs.Get(c.Request.Context(), ownerID, jobID)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load analysis", nil)
		}
		return
	}
	if job.Result == nil {
		respond.Error(c, http.StatusConflict, "analysis_not_ready", "analysis has no result to chat about yet", nil)
		return
	}

	metrics.IncChatRequest()

	contextBlock, err := h.Assembler.BuildContext(c.Request.Context(), job, req.Message)
	if err != nil {
		// Embedding failure: the chat cannot ground the answer, fail loud.
		telemetry.Error("chat.context", map[string]any{
			"owner_id": ownerID,
			"job_id":   job.ID,
			"error":    err.Error(),
		})
		respond.Error(c, http.StatusBadGateway, "context_unavailable", "failed to assemble chat context", nil)
		return
	}

	messages := make([]llm.ChatMessage, 0, len(req.History)+1)
	history := req.History
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	for _, turn := range history {
		if turn.Role != "user" && turn.Role != "assistant" {
			continue
		}
		messages = append(messages, llm.ChatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.ChatMessage{Role: "user", Content: req.Message})

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.Flush()

	streamErr := h.LLM.StreamChat(c.Request.Context(), llm.ChatInput{
		System:   llm.ChatSystemPrompt(contextBlock),
		Messages: messages,
	}, func(chunk string) error {
		writeFrame(c, gin.H{"delta": chunk})
		return nil
	})
	if streamErr != nil {
		// The stream is already open, so the error travels as its own frame.
		telemetry.Error("chat.stream", map[string]any{
			"owner_id": ownerID,
			"job_id":   job.ID,
			"error":    streamErr.Error(),
		})
		writeFrame(c, gin.H{"error": "chat stream failed"})
	}
	writeDone(c)
	metrics.ObserveChatDurationMs(float64(time.Since(started).Microseconds()) / 1000.0)
}

func writeFrame(c *gin.Context, payload any) {
	c.SSEvent("", payload)
	c.Writer.Flush()
}

func writeDone(c *gin.Context) {
	c.Writer.WriteString("data: [DONE]\n\n")
	c.Writer.Flush()
}
