package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	obscontext "github.com/assemblee/assemblee/internal/observability/context"
)

const (
	// HeaderUser carries the authenticated user identity, set by the
	// upstream gateway after it validates the caller's credentials.
	HeaderUser = "X-User-Id"

	contextUserIDKey = "user_id"
)

// AuthRequired resolves the caller identity from the gateway header.
// Authorization decisions stay in the service layer; this middleware
// only establishes who is calling.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUser))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		userID, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextUserIDKey, userID.String())
		ctx := obscontext.WithActor(c.Request.Context(), "user", userID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// WriteRateLimit throttles mutating endpoints per user. Disabled
// limiters pass everything through.
func (s *Server) WriteRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.writeLimiter.Enabled() {
			c.Next()
			return
		}

		userID, ok := s.userIDFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		result, err := s.writeLimiter.AllowUser(c.Request.Context(), userID.String())
		if err != nil {
			// Redis trouble must not take writes down with it.
			c.Next()
			return
		}
		if !result.Allowed {
			if result.RetryAfter > 0 {
				c.Header("Retry-After", result.RetryAfter.Round(1e9).String())
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"code": "rateLimited", "message": "too many requests"},
			})
			return
		}
		c.Next()
	}
}

func (s *Server) userIDFromContext(c *gin.Context) (snowflake.ID, bool) {
	value, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0, false
	}
	raw, ok := value.(string)
	if !ok {
		return 0, false
	}
	userID, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return userID, true
}
