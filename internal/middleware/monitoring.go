package middleware

import (
	"strconv"
	"time"

	"fitstake_miniapp/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Monitoring records request counts, latencies and auth rejections. Paths
// are labelled with the route template so ids do not explode cardinality.
func Monitoring() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()

		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())

		switch status {
		case 401:
			metrics.AuthRejections.WithLabelValues("401_unauthorized").Inc()
		case 403:
			metrics.AuthRejections.WithLabelValues("403_forbidden").Inc()
		}
	}
}

// MetricsAuth protects the scrape endpoint with basic auth. An empty user
// leaves the endpoint open.
func MetricsAuth(user, pass string) gin.HandlerFunc {
	if user == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return gin.BasicAuthForRealm(gin.Accounts{user: pass}, "Metrics")
}
