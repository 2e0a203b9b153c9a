package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestObserver records one completed HTTP request.
type RequestObserver interface {
	ObserveRequest(method, path string, status int, elapsed time.Duration)
}

// Metrics records request latency and counts per route. The route template
// (c.FullPath) is used instead of the raw URL to keep label cardinality
// bounded.
func Metrics(observer RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		observer.ObserveRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
