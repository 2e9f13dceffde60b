package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/roadmap-service/pkg/metrics"
)

// HTTPMetrics records in-flight requests and request duration by route
// pattern. Unmatched paths share one label to bound cardinality.
func HTTPMetrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		m.IncrementHTTPRequestsInFlight()
		defer m.DecrementHTTPRequestsInFlight()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// MetricsHandler exposes the Prometheus registry
func MetricsHandler(m *metrics.Metrics) gin.HandlerFunc {
	return gin.WrapH(m.Handler())
}
