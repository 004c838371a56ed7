package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	rateLimitPrefix = "ratelimit:"
)

// RequestIDMiddleware tags every request with an ID, reusing a well-formed
// X-Request-ID from the client and minting a UUID otherwise.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLoggingMiddleware logs one line per request once the handler chain
// has run. Scan routes also carry the scan ID.
func RequestLoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		attrs := []any{
			"request_id", c.GetString(requestIDKey),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"route", route,
			"status_code", status,
			"latency_ms", float64(time.Since(start))/float64(time.Millisecond),
		}
		if scanID := c.Param("id"); scanID != "" {
			attrs = append(attrs, "scan_id", scanID)
		}
		logger.Log(c.Request.Context(), level, "request completed", attrs...)
	}
}

// AuthMiddleware requires "Authorization: Bearer <key>" matching apiKey.
func AuthMiddleware(apiKey string, logger *slog.Logger) gin.HandlerFunc {
	expected := []byte(apiKey)
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), expected) != 1 {
			logger.Warn("scan api request rejected",
				"request_id", c.GetString(requestIDKey),
				"client_ip", c.ClientIP(),
				"bearer", ok,
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}
		c.Next()
	}
}

// RateLimitMiddleware allows each client IP at most limit requests per fixed
// window. The window opens with the client's first request and is not
// extended by later ones.
func RateLimitMiddleware(client *redis.Client, limit int64, window time.Duration, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := rateLimitPrefix + c.ClientIP()

		pipe := client.TxPipeline()
		hits := pipe.Incr(ctx, key)
		ttl := pipe.TTL(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Error("rate limiter redis error", "request_id", c.GetString(requestIDKey), "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}

		// A negative TTL means the counter has no expiry yet: either it was
		// just created or an earlier Expire never landed.
		if ttl.Val() < 0 {
			if err := client.Expire(ctx, key, window).Err(); err != nil {
				logger.Error("rate limiter redis error", "request_id", c.GetString(requestIDKey), "error", err)
			}
		}

		if hits.Val() > limit {
			logger.Warn("rate limit exceeded",
				"request_id", c.GetString(requestIDKey),
				"client_ip", c.ClientIP(),
				"count", hits.Val(),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// SecurityHeadersMiddleware sets the response headers shared by every route.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		headers := c.Writer.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'")
		c.Next()
	}
}
