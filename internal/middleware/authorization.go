package middleware

import (
	"context"
	"net/http"

	"fitstake_miniapp/internal/model"
	"fitstake_miniapp/pkg/auth"
	"fitstake_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

type UserLookup interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
}

type Authorization struct {
	userService UserLookup
}

func NewAuthorization(userService UserLookup) *Authorization {
	return &Authorization{
		userService: userService,
	}
}

func (a *Authorization) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Logger()

		telegramUser, ok := auth.UserFromContext(c)
		if !ok {
			log.Error("telegram user data not found in context")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		user, err := a.userService.GetUserByTelegramID(c.Request.Context(), telegramUser.ID)
		if err != nil {
			log.Error("failed to get user data", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		if !user.IsAdmin {
			log.Info("unauthorized access attempt to admin endpoint",
				zap.Int64("telegram_id", telegramUser.ID))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}

		c.Set("is_admin", true)
		c.Next()
	}
}
