package api

import (
	"net/http"

	"fitstake_miniapp/internal/model"
	"fitstake_miniapp/internal/service"
	"fitstake_miniapp/pkg/auth"
	"fitstake_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

type healthMetricsRoutes struct {
	hs service.HealthServiceI
}

func NewHealthMetricsRoutes(handler *gin.RouterGroup, hs service.HealthServiceI, a *auth.TelegramAuth, limiter gin.HandlerFunc) {
	r := &healthMetricsRoutes{hs: hs}
	h := handler.Group("/metrics")
	h.Use(a.TelegramAuthMiddleware())
	if limiter != nil {
		h.Use(limiter)
	}

	h.POST("", r.RecordMetrics)
}

type RecordMetricsRequest struct {
	Steps         float64 `json:"steps"`
	ActiveMinutes float64 `json:"active_minutes"`
}

func (r *healthMetricsRoutes) RecordMetrics(c *gin.Context) {
	user, ok := telegramUser(c)
	if !ok {
		return
	}

	var req RecordMetricsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Logger().Info("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	metrics := &model.HealthMetrics{
		UserTelegramID: user.ID,
		Steps:          req.Steps,
		ActiveMinutes:  req.ActiveMinutes,
	}
	if err := r.hs.RecordMetrics(c.Request.Context(), metrics); err != nil {
		respondError(c, "record health metrics", err)
		return
	}

	c.Status(http.StatusNoContent)
}
