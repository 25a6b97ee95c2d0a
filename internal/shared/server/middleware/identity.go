package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tenantarmor-backend/internal/shared/server/respond"
)

const ownerIDKey = "ownerId"

// Identity resolves the caller identity from trusted headers set by the
// upstream auth proxy. Authentication itself happens outside this service.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		ownerID := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if ownerID != "" {
			c.Set(ownerIDKey, ownerID)
			c.Next()
			return
		}

		guestID := strings.TrimSpace(c.GetHeader("X-Guest-Id"))
		if guestID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}

		c.Set(ownerIDKey, "guest:"+guestID)
		c.Next()
	}
}

// OwnerIDFromContext fetches the owner ID set by the identity middleware.
func OwnerIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(ownerIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
