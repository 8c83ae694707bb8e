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
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		// Get request size
		reqSize := c.Request.ContentLength
		if reqSize < 0 {
			reqSize = 0
		}

		// Process request
		c.Next()

		// Get response data
		duration := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())
		respSize := int64(c.Writer.Size())

		// Record metrics
		metrics.RecordHTTPRequest(method, path, status, duration, reqSize, respSize)
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
func (t *Timer) Stop(status string) {
	t.metrics.RecordOperation(t.operation, status, time.Since(t.start))
}

// StopErr records "success" for a nil error and "error" otherwise
func (t *Timer) StopErr(err error) {
	if err != nil {
		t.Stop("error")
		return
	}
	t.Stop("success")
}
