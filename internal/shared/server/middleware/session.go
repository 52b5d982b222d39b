package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pcos-backend/internal/shared/server/respond"
)

const (
	userIDKey = "userId"

	// SessionHeader carries the opaque session identifier on every
	// authenticated request.
	SessionHeader = "X-Session-Id"
)

// SessionResolver maps a session identifier to its owner identity.
type SessionResolver interface {
	Owner(ctx context.Context, sessionID string) (string, error)
}

// SessionAuth validates the session header and stores identity in context.
func SessionAuth(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		sessionID := strings.TrimSpace(c.GetHeader(SessionHeader))
		if sessionID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Session ID missing", nil)
			return
		}

		owner, err := resolver.Owner(c.Request.Context(), sessionID)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Session expired", nil)
			return
		}

		c.Set(userIDKey, owner)
		c.Set("sessionId", sessionID)
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the session middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// SessionIDFromContext fetches the session ID set by the session middleware.
func SessionIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get("sessionId")
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
