package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"emergency-dispatch/internal/auth"
	"emergency-dispatch/internal/logging"
	"emergency-dispatch/internal/ratelimit"
)

const identityKey = "identity"

func RequestLoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		logger.Infof("Request: %s %s, Status: %d, Latency: %v", method, path, status, latency)
	}
}

// IdentityMiddleware resolves the caller once per request from the gateway
// headers.
func IdentityMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := auth.FromHeaders(c.Request.Header)
		if err != nil {
			logger.Warnf("Rejected request to %s: %v", c.Request.URL.Path, err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication credentials were not provided or are invalid."})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireRole lets through callers holding one of roles.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identity(c)
		for _, r := range roles {
			if id.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to perform this action."})
	}
}

// ThrottleMiddleware applies limiter per user under scope.
func ThrottleMiddleware(limiter *ratelimit.Limiter, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:user:%d", scope, identity(c).UserID)
		if !limiter.Allow(c.Request.Context(), key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Request was throttled."})
			return
		}
		c.Next()
	}
}

func identity(c *gin.Context) auth.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(auth.Identity); ok {
			return id
		}
	}
	return auth.Identity{}
}
