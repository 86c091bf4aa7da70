package middleware

import (
	"strconv"

	"rps_arena/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics counts requests per route template and status class.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		class := strconv.Itoa(c.Writer.Status()/100) + "xx"
		metrics.HTTPRequests.WithLabelValues(route, class).Inc()
	}
}
