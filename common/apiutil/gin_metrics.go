package apiutil

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Aidin1998/crowdfund/pkg/metrics"
)

// MetricsMiddleware records HTTP request counts and durations for Prometheus
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// route template, so ids do not explode label cardinality
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		metrics.HTTPRequestsTotal.WithLabelValues(path, method, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(path, method).Observe(time.Since(start).Seconds())
	}
}
