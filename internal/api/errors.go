package api

import (
	"errors"
	"net/http"

	"fitstake_miniapp/internal/service"
	"fitstake_miniapp/pkg/auth"
	"fitstake_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

var errorStatuses = []struct {
	kind   error
	status int
}{
	{service.ErrValidation, http.StatusBadRequest},
	{service.ErrUnauthenticated, http.StatusUnauthorized},
	{service.ErrInsufficientFunds, http.StatusPaymentRequired},
	{service.ErrNotFound, http.StatusNotFound},
	{service.ErrConflict, http.StatusConflict},
	{service.ErrUnsupportedType, http.StatusUnprocessableEntity},
	{service.ErrBatchInFlight, http.StatusTooManyRequests},
	{service.ErrExternalService, http.StatusBadGateway},
}

func statusFor(err error) int {
	for _, s := range errorStatuses {
		if errors.Is(err, s.kind) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, operation string, err error) {
	status := statusFor(err)

	log := logger.Logger()
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("operation", operation), zap.Error(err))
	} else {
		log.Info("request rejected", zap.String("operation", operation), zap.Int("status", status), zap.Error(err))
	}

	body := gin.H{"error": service.UserMessage(err)}

	var serviceErr *service.Error
	if errors.As(err, &serviceErr) && len(serviceErr.Violations) > 0 {
		body["violations"] = serviceErr.Violations
	}

	c.AbortWithStatusJSON(status, body)
}

// telegramUser returns the authenticated caller or aborts the request.
func telegramUser(c *gin.Context) (*auth.TelegramUserData, bool) {
	user, ok := auth.UserFromContext(c)
	if !ok {
		logger.Logger().Error("telegram user data not found in context")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	return user, true
}
