package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		// Process request
		c.Next()

		// Route template keeps label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		metrics.RecordHTTPRequest(method, path, status, time.Since(start))
	}
}

// Timer measures operation duration
type Timer struct {
	start     time.Time
	metrics   *Metrics
	operation string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, operation string) *Timer {
	return &Timer{
		start:     time.Now(),
		metrics:   metrics,
		operation: operation,
	}
}

// Stop stops the timer and records the duration
func (t *Timer) Stop(status string) time.Duration {
	duration := time.Since(t.start)
	if t.metrics != nil {
		t.metrics.RecordOperation(t.operation, status, duration)
	}
	return duration
}
