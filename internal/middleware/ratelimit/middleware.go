package ratelimit

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Aidin1998/crowdfund/common/apiutil"
	"github.com/Aidin1998/crowdfund/pkg/errors"
	"github.com/Aidin1998/crowdfund/pkg/metrics"
)

// Middleware throttles each client IP per route. Limiter failures let the
// request through.
func Middleware(l Limiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		key := route + ":" + c.ClientIP()

		d, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn("Rate limiter unavailable", zap.String("route", route), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			metrics.RateLimited.WithLabelValues(route).Inc()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
			apiutil.Problem(c, errors.TooManyRequests.Explain("Too many requests, try again later"))
			return
		}
		c.Next()
	}
}
