package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// TimeoutConfig bounds the duration of a client HTTP request. The
// WebSocket upgrade endpoint must be excluded — it is a single long-lived
// connection, not a bounded request/response cycle (spec §4.E).
type TimeoutConfig struct {
	Timeout       time.Duration
	ErrorMessage  string
	ExcludedPaths []string
}

func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Timeout:       30 * time.Second,
		ErrorMessage:  "request timeout",
		ExcludedPaths: []string{"/ws"},
	}
}

// Timeout enforces config.Timeout on every request whose path is not in
// ExcludedPaths, running the handler chain in a goroutine and racing it
// against ctx.Done().
func Timeout(config TimeoutConfig) gin.HandlerFunc {
	excluded := make(map[string]bool, len(config.ExcludedPaths))
	for _, p := range config.ExcludedPaths {
		excluded[p] = true
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for excludedPath := range excluded {
			if strings.HasPrefix(path, excludedPath) {
				c.Next()
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), config.Timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		finished := make(chan struct{})
		go func() {
			c.Next()
			close(finished)
		}()

		select {
		case <-finished:
		case <-ctx.Done():
			c.AbortWithStatusJSON(http.StatusRequestTimeout, gin.H{
				"error":   config.ErrorMessage,
				"timeout": config.Timeout.String(),
			})
		}
	}
}

func TimeoutWithDuration(timeout time.Duration) gin.HandlerFunc {
	config := DefaultTimeoutConfig()
	config.Timeout = timeout
	return Timeout(config)
}
