package api

import (
	"net/http"
	"strconv"

	"fitstake_miniapp/internal/model"
	"fitstake_miniapp/internal/service"
	"fitstake_miniapp/pkg/auth"
	"fitstake_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type challengeRoutes struct {
	cs service.ChallengeServiceI
}

func NewChallengeRoutes(handler *gin.RouterGroup, cs service.ChallengeServiceI, a *auth.TelegramAuth, limiter gin.HandlerFunc) {
	r := &challengeRoutes{cs: cs}
	h := handler.Group("/challenges")
	h.Use(a.TelegramAuthMiddleware())
	if limiter != nil {
		h.Use(limiter)
	}
	{
		h.POST("", r.CreateChallenge)
		h.GET("", r.GetAllChallenges)
		h.GET("/available", r.GetAvailableChallenges)
		h.GET("/public", r.GetPublicChallenges)
		h.GET("/mine", r.GetUserChallenges)
		h.GET("/joined", r.GetJoinedChallenges)
		h.POST("/progress/refresh", r.RefreshProgress)

		h.GET("/:id", r.GetChallenge)
		h.PATCH("/:id", r.UpdateChallenge)
		h.POST("/:id/join", r.JoinChallenge)
		h.POST("/:id/leave", r.LeaveChallenge)
		h.POST("/:id/check", r.CheckCompletion)
		h.GET("/:id/progress", r.GetProgress)
	}
}

func challengeID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		logger.Logger().Info("failed to parse challenge id", zap.String("id", c.Param("id")), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid challenge id"})
		return uuid.Nil, false
	}
	return id, true
}

func (r *challengeRoutes) CreateChallenge(c *gin.Context) {
	user, ok := telegramUser(c)
	if !ok {
		return
	}

	var req CreateChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Logger().Info("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	challenge, err := r.cs.CreateChallenge(c.Request.Context(), user.ID, req.toParams())
	if err != nil {
		respondError(c, "create challenge", err)
		return
	}

	c.JSON(http.StatusCreated, newChallengeResponse(challenge))
}

func (r *challengeRoutes) GetChallenge(c *gin.Context) {
	id, ok := challengeID(c)
	if !ok {
		return
	}

	challenge, err := r.cs.GetChallenge(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get challenge", err)
		return
	}
	if challenge == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "challenge not found"})
		return
	}

	c.JSON(http.StatusOK, newChallengeResponse(challenge))
}

func (r *challengeRoutes) UpdateChallenge(c *gin.Context) {
	user, ok := telegramUser(c)
	if !ok {
		return
	}
	id, ok := challengeID(c)
	if !ok {
		return
	}

	var req UpdateChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Logger().Info("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := r.cs.UpdateChallenge(c.Request.Context(), user.ID, id, req.toModel()); err != nil {
		respondError(c, "update challenge", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (r *challengeRoutes) JoinChallenge(c *gin.Context) {
	user, ok := telegramUser(c)
	if !ok {
		return
	}
	id, ok := challengeID(c)
	if !ok {
		return
	}

	if err := r.cs.JoinChallenge(c.Request.Context(), user.ID, id); err != nil {
		respondError(c, "join challenge", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"challenge_id": id, "joined": true})
}

func (r *challengeRoutes) LeaveChallenge(c *gin.Context) {
	user, ok := telegramUser(c)
	if !ok {
		return
	}
	id, ok := challengeID(c)
	if !ok {
		return
	}

	if err := r.cs.LeaveChallenge(c.Request.Context(), user.ID, id); err != nil {
		respondError(c, "leave challenge", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"challenge_id": id, "joined": false})
}

func (r *challengeRoutes) CheckCompletion(c *gin.Context) {
	user, ok := telegramUser(c)
	if !ok {
		return
	}
	id, ok := challengeID(c)
	if !ok {
		return
	}

	if err := r.cs.CheckChallengeCompletion(c.Request.Context(), user.ID, id); err != nil {
		respondError(c, "check challenge completion", err)
		return
	}

	progress, err := r.cs.GetParticipationProgress(c.Request.Context(), user.ID, id)
	if err != nil {
		respondError(c, "get participation progress", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"challenge_id": id, "progress": progress, "completed": progress >= 100})
}

func (r *challengeRoutes) GetProgress(c *gin.Context) {
	user, ok := telegramUser(c)
	if !ok {
		return
	}
	id, ok := challengeID(c)
	if !ok {
		return
	}

	progress, err := r.cs.GetParticipationProgress(c.Request.Context(), user.ID, id)
	if err != nil {
		respondError(c, "get participation progress", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"challenge_id": id, "progress": progress})
}

func (r *challengeRoutes) RefreshProgress(c *gin.Context) {
	user, ok := telegramUser(c)
	if !ok {
		return
	}

	report, err := r.cs.UpdateAllChallengesProgress(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, "refresh progress", err)
		return
	}

	c.JSON(http.StatusOK, newProgressReportResponse(report))
}

func (r *challengeRoutes) GetUserChallenges(c *gin.Context) {
	user, ok := telegramUser(c)
	if !ok {
		return
	}

	list, err := r.cs.GetUserChallenges(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, "list user challenges", err)
		return
	}

	out := make([]UserChallengeResponse, len(list))
	for i, uc := range list {
		out[i] = newUserChallengeResponse(uc)
	}
	c.JSON(http.StatusOK, out)
}

func (r *challengeRoutes) GetJoinedChallenges(c *gin.Context) {
	user, ok := telegramUser(c)
	if !ok {
		return
	}

	list, err := r.cs.GetJoinedChallenges(c.Request.Context(), user.ID, model.ChallengeStatus(c.Query("status")))
	if err != nil {
		respondError(c, "list joined challenges", err)
		return
	}

	c.JSON(http.StatusOK, newChallengeResponses(list))
}

func (r *challengeRoutes) GetAvailableChallenges(c *gin.Context) {
	list, err := r.cs.GetAvailableChallenges(c.Request.Context())
	if err != nil {
		respondError(c, "list available challenges", err)
		return
	}

	c.JSON(http.StatusOK, newChallengeResponses(list))
}

func (r *challengeRoutes) GetPublicChallenges(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		var err error
		limit, err = strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
	}

	list, err := r.cs.GetPublicChallenges(c.Request.Context(), limit)
	if err != nil {
		respondError(c, "list public challenges", err)
		return
	}

	c.JSON(http.StatusOK, newChallengeResponses(list))
}

func (r *challengeRoutes) GetAllChallenges(c *gin.Context) {
	user, ok := telegramUser(c)
	if !ok {
		return
	}

	items, err := r.cs.GetAllChallenges(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, "list all challenges", err)
		return
	}

	out := make([]ChallengeListItemResponse, len(items))
	for i, item := range items {
		out[i] = newListItemResponse(item)
	}
	c.JSON(http.StatusOK, out)
}
