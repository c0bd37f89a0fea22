package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"web-dlp/dto"
	"web-dlp/pkg/ratelimit"
)

const requestIdHeader = "X-Request-Id"

// RequestLogger puts a request scoped logger into the request context and
// logs every completed request.
func RequestLogger(base *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestId := c.GetHeader(requestIdHeader)
		if requestId == "" {
			requestId = uuid.NewString()
		}
		c.Header(requestIdHeader, requestId)

		logger := base.With().Str("request_id", requestId).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			event = logger.Error()
		case status >= http.StatusBadRequest:
			event = logger.Warn()
		default:
			event = logger.Info()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request completed")
	}
}

// RateLimit rejects callers that exceeded their per-IP quota.
func RateLimit(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			zerolog.Ctx(c.Request.Context()).Warn().Str("client_ip", c.ClientIP()).Msg("rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{Error: "rate_limited"})
			return
		}
		c.Next()
	}
}

// Throttle caps the request rate of the whole process. A nil throttle lets
// everything through.
func Throttle(throttle *ratelimit.Throttle) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !throttle.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{Error: "rate_limited"})
			return
		}
		c.Next()
	}
}
