package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"fitstake_miniapp/internal/model"
	"fitstake_miniapp/internal/service"
	"fitstake_miniapp/pkg/auth"
	"fitstake_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// AvatarSource is the part of *tgbotapi.BotAPI used to look up profile
// photos.
type AvatarSource interface {
	GetUserProfilePhotos(config tgbotapi.UserProfilePhotosConfig) (tgbotapi.UserProfilePhotos, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
}

type userRoutes struct {
	us      service.UserServiceI
	avatars AvatarSource
}

func NewUserRoutes(handler *gin.RouterGroup, us service.UserServiceI, a *auth.TelegramAuth, avatars AvatarSource) {
	r := &userRoutes{us: us, avatars: avatars}
	h := handler.Group("/users")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.POST("", r.RegisterUser)
		h.GET("/me", r.GetCurrentUser)
		h.PATCH("/me/wallet", r.UpdateWalletAddress)
		h.GET("/me/avatar", r.GetUserAvatar)
		h.GET("/leaderboard", r.GetLeaderboard)
	}
}

type RegisterUserRequest struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
}

type UserResponse struct {
	TelegramID       int64     `json:"telegram_id"`
	Handle           string    `json:"handle"`
	Username         string    `json:"username"`
	DisplayName      string    `json:"display_name"`
	TokenBalance     int64     `json:"token_balance"`
	WalletAddress    *string   `json:"wallet_address,omitempty"`
	RegistrationDate time.Time `json:"registration_date"`
}

func newUserResponse(u *model.User) UserResponse {
	return UserResponse{
		TelegramID:       u.TelegramID,
		Handle:           u.Handle,
		Username:         u.Username,
		DisplayName:      u.Name(),
		TokenBalance:     u.TokenBalance,
		WalletAddress:    u.WalletAddress,
		RegistrationDate: u.RegistrationDate,
	}
}

func (r *userRoutes) RegisterUser(c *gin.Context) {
	log := logger.Logger()

	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, ok := telegramUser(c)
	if !ok {
		return
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = user.FirstName
	}

	u := &model.User{
		TelegramID:       user.ID,
		Handle:           req.Handle,
		Username:         user.Username,
		DisplayName:      displayName,
		RegistrationDate: user.AuthDate,
		AuthDate:         user.AuthDate,
	}

	err := r.us.RegisterUser(c.Request.Context(), u)
	if err != nil {
		log.Error("failed to register user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register user"})
		return
	}

	c.JSON(http.StatusCreated, newUserResponse(u))
}

func (r *userRoutes) GetCurrentUser(c *gin.Context) {
	user, ok := telegramUser(c)
	if !ok {
		return
	}

	u, err := r.us.GetUserByTelegramID(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, "get user", err)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(u))
}

type UpdateWalletRequest struct {
	WalletAddress string `json:"wallet_address"`
}

func (r *userRoutes) UpdateWalletAddress(c *gin.Context) {
	user, ok := telegramUser(c)
	if !ok {
		return
	}

	var req UpdateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Logger().Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := r.us.UpdateWalletAddress(c.Request.Context(), user.ID, req.WalletAddress); err != nil {
		respondError(c, "update wallet address", err)
		return
	}

	c.Status(http.StatusNoContent)
}

type leaderboardEntry struct {
	Rank         int    `json:"rank"`
	TelegramID   int64  `json:"telegram_id"`
	DisplayName  string `json:"display_name"`
	TokenBalance int64  `json:"token_balance"`
}

func (r *userRoutes) GetLeaderboard(c *gin.Context) {
	log := logger.Logger()

	limit, _ := strconv.Atoi(c.Query("limit"))

	users, err := r.us.GetLeaderboard(c.Request.Context(), limit)
	if err != nil {
		log.Error("failed to get leaderboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get leaderboard"})
		return
	}

	response := make([]leaderboardEntry, len(users))
	for i, user := range users {
		response[i] = leaderboardEntry{
			Rank:         i + 1,
			TelegramID:   user.TelegramID,
			DisplayName:  user.Name(),
			TokenBalance: user.TokenBalance,
		}
	}

	c.JSON(http.StatusOK, response)
}

func (r *userRoutes) GetUserAvatar(c *gin.Context) {
	log := logger.Logger()

	user, ok := telegramUser(c)
	if !ok {
		return
	}

	if r.avatars == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no avatar found"})
		return
	}

	avatarFilePath, err := r.getUserAvatarPath(user.ID)
	if err != nil {
		log.Error("failed to get user avatar",
			zap.Error(err),
			zap.Int64("telegram_id", user.ID))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch avatar"})
		return
	}

	if avatarFilePath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no avatar found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"avatar_file_path": avatarFilePath,
	})
}

func (r *userRoutes) getUserAvatarPath(userID int64) (string, error) {
	photos, err := r.avatars.GetUserProfilePhotos(tgbotapi.UserProfilePhotosConfig{
		UserID: userID,
		Limit:  1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get user photos: %w", err)
	}

	if len(photos.Photos) == 0 || len(photos.Photos[0]) == 0 {
		return "", nil
	}

	file, err := r.avatars.GetFile(tgbotapi.FileConfig{
		FileID: photos.Photos[0][0].FileID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get file: %w", err)
	}

	return file.FilePath, nil
}
