package api

import (
	"context"
	"net/http"
	"time"

	"fitstake_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// NewSystemRoutes registers the liveness probe and the Prometheus scrape
// endpoint.
func NewSystemRoutes(router gin.IRoutes, db Pinger, metricsAuth gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			logger.Logger().Error("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics/prometheus", metricsAuth, gin.WrapH(promhttp.Handler()))
}
