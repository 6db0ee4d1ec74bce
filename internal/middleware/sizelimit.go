package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MaxRequestBodySize bounds a single POST /mcp JSON-RPC request body.
// Screenshots and large accessibility trees flow server->client, not
// client->server, so this stays conservative (spec §6.3 has no inbound
// payload larger than a tool-call params object).
const MaxRequestBodySize int64 = 2 * 1024 * 1024

// RequestSizeLimiter rejects a request whose Content-Length exceeds
// maxSize and wraps the body in http.MaxBytesReader so a lying or absent
// Content-Length cannot bypass the limit.
func RequestSizeLimiter(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		if c.Request.ContentLength > maxSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":      "request entity too large",
				"maxSizeMB": float64(maxSize) / (1024 * 1024),
			})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// DefaultSizeLimiter applies MaxRequestBodySize.
func DefaultSizeLimiter() gin.HandlerFunc {
	return RequestSizeLimiter(MaxRequestBodySize)
}
