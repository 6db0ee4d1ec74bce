package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentbridge/devtools-bridge/internal/logging"
)

// StructuredLoggerConfig controls which fields StructuredLogger emits.
type StructuredLoggerConfig struct {
	SkipPaths    []string
	LogQuery     bool
	LogUserAgent bool
}

func DefaultStructuredLoggerConfig() StructuredLoggerConfig {
	return StructuredLoggerConfig{
		SkipPaths:    []string{"/health"},
		LogQuery:     true,
		LogUserAgent: true,
	}
}

// StructuredLogger logs every request through logging.HTTP(), the way
// streamspace's structured_logger.go does with Go's log package, retargeted
// at zerolog so every log line carries the same component/service fields
// as the rest of the process.
func StructuredLogger() gin.HandlerFunc {
	return StructuredLoggerWithConfig(DefaultStructuredLoggerConfig())
}

func StructuredLoggerWithConfig(config StructuredLoggerConfig) gin.HandlerFunc {
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if skip[path] {
			c.Next()
			return
		}

		start := time.Now()
		raw := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		evt := logging.HTTP().Info()
		if status >= 500 {
			evt = logging.HTTP().Error()
		} else if status >= 400 {
			evt = logging.HTTP().Warn()
		}

		evt = evt.
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP())

		if config.LogQuery && raw != "" {
			evt = evt.Str("query", raw)
		}
		if config.LogUserAgent {
			evt = evt.Str("user_agent", c.Request.UserAgent())
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}
		evt.Msg("request handled")
	}
}
