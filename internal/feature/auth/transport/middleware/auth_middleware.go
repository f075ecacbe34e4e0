// Package middleware provides gin middleware for the auth feature.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"snote_backend/internal/feature/auth/domain"
	"snote_backend/internal/feature/auth/transport/http/dto"
	"snote_backend/internal/shared/ratelimiter"
)

// ContextUserID is the gin context key holding the authenticated user ID.
const ContextUserID = "userID"

const bearerPrefix = "Bearer "

// SessionValidator resolves a bearer token to a user ID.
type SessionValidator interface {
	ValidateRequest(ctx context.Context, token string) (string, error)
}

// RequestObserver records per-request latency.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, d time.Duration)
}

// BearerToken extracts the token from an `Authorization: Bearer <token>` header.
// The scheme is matched case-sensitively.
func BearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, bearerPrefix) {
		return "", false
	}
	token := strings.TrimPrefix(auth, bearerPrefix)
	if token == "" {
		return "", false
	}
	return token, true
}

// AuthRequired returns a middleware that lets a request through only when it
// carries an active session token. It answers 401 for missing, malformed,
// unknown or expired tokens and 503 when the session store cannot be reached.
func AuthRequired(v SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorRes{Error: "missing bearer token"})
			return
		}

		userID, err := v.ValidateRequest(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthenticated) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorRes{Error: "invalid token"})
				return
			}
			slog.Error("session validation failed", "error", err, "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.ErrorRes{Error: "service unavailable"})
			return
		}

		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// UserID returns the user ID stored by AuthRequired.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// RateLimit rejects requests with 429 once the client IP exceeds its budget.
func RateLimit(l ratelimiter.RateLimiterInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			slog.Warn("rate limit exceeded", "remote_addr", c.ClientIP(), "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorRes{Error: "too many requests"})
			return
		}
		c.Next()
	}
}

// Metrics records the latency of each request under its route template.
func Metrics(obs RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		obs.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
