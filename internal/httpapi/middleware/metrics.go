package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/benchfabric/benchfabric/internal/metrics"
)

// Metrics records each request's latency into HTTPRequestDuration, labeled
// by the matched route template (not the raw path, to keep cardinality
// bounded) and status code.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
