package api

import (
	"net/http"

	"fitstake_miniapp/pkg/auth"
	"fitstake_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

type EventStream interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID int64) error
}

type wsRoutes struct {
	stream EventStream
}

func NewWSRoutes(handler *gin.RouterGroup, stream EventStream, a *auth.TelegramAuth) {
	r := &wsRoutes{stream: stream}
	h := handler.Group("/ws")
	h.Use(a.TelegramAuthMiddleware())

	h.GET("", r.handleWebSocket)
}

func (r *wsRoutes) handleWebSocket(c *gin.Context) {
	user, ok := telegramUser(c)
	if !ok {
		return
	}

	if err := r.stream.ServeWS(c.Writer, c.Request, user.ID); err != nil {
		logger.Logger().Error("websocket upgrade failed", zap.Int64("telegram_id", user.ID), zap.Error(err))
	}
}
