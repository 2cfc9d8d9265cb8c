package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"broker-copilot/internal/shared/telemetry"
)

// Context keys handlers set so the request log can correlate them.
const (
	SessionIDKey       = "sessionId"
	StateTransitionKey = "stateTransition"
	QuoteRequestIDKey  = "quoteRequestId"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if id := c.GetString(SessionIDKey); id != "" {
			fields["session_id"] = id
		}
		if transition := c.GetString(StateTransitionKey); transition != "" {
			fields["state_transition"] = transition
		}
		if id := c.GetString(QuoteRequestIDKey); id != "" {
			fields["quote_request_id"] = id
		}

		telemetry.Info("request.complete", fields)
	}
}
