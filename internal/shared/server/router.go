package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tenantarmor-backend/internal/chat"
	"tenantarmor-backend/internal/jobs"
	"tenantarmor-backend/internal/shared/config"
	"tenantarmor-backend/internal/shared/metrics"
	"tenantarmor-backend/internal/shared/server/middleware"
	"tenantarmor-backend/internal/shared/server/respond"
	"tenantarmor-backend/internal/uploads"
)

// RouterDeps carries the handlers wired into the HTTP surface.
type RouterDeps struct {
	Config         config.Config
	JobsHandler    *jobs.Handler
	UploadsHandler *uploads.Handler
	ChatHandler    *chat.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.Use(
		middleware.Identity(),
		middleware.RateLimit(rateLimitConfig()),
	)

	if deps.UploadsHandler != nil {
		deps.UploadsHandler.RegisterRoutes(api)
	}
	if deps.JobsHandler != nil {
		deps.JobsHandler.RegisterRoutes(api)
	}
	if deps.ChatHandler != nil {
		deps.ChatHandler.RegisterRoutes(api)
	}

	return r
}

// rateLimitConfig allows a high polling rate on the status endpoint while
// keeping uploads and chat on tighter budgets. The per-job poll limiter in the
// jobs handler enforces the one-second floor on top of this.
func rateLimitConfig() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		DefaultGroup: "DEFAULT",
		GroupFor: func(c *gin.Context) string {
			switch {
			case c.Request.Method == http.MethodGet && c.FullPath() == "/api/v1/analyses/:id/status":
				return "POLLING"
			case c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/analyses/:id/chat":
				return "CHAT"
			}
			return "DEFAULT"
		},
		Rules: map[string]middleware.RateLimitRule{
			"DEFAULT": {Rate: 2, Burst: 10},
			"POLLING": {Rate: 5, Burst: 15},
			"CHAT":    {Rate: 0.5, Burst: 3},
		},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
