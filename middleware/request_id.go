package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = "requestId"

	slowRequest = 500 * time.Millisecond
)

// RequestID tags every request with an id (reusing the caller's if sent)
// and logs only slow or failed requests.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		start := time.Now()
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		if status >= 400 || latency >= slowRequest {
			log.Printf("[%s] %d | %v | %s %s", id, status, latency, c.Request.Method, c.Request.URL.Path)
		}
	}
}
