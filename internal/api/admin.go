package api

import (
	"net/http"
	"time"

	"fitstake_miniapp/internal/middleware"
	"fitstake_miniapp/internal/service"
	"fitstake_miniapp/pkg/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type adminRoutes struct {
	reconciler service.ReconcilerI
}

func NewAdminRoutes(handler *gin.RouterGroup, reconciler service.ReconcilerI, a *auth.TelegramAuth, authz *middleware.Authorization) {
	r := &adminRoutes{reconciler: reconciler}
	h := handler.Group("/admin")
	h.Use(a.TelegramAuthMiddleware(), authz.AdminOnly())

	h.GET("/intents/stuck", r.GetStuckIntents)
	h.GET("/ledger/balance", r.GetLedgerBalance)
}

type IntentResponse struct {
	ID             uuid.UUID `json:"id"`
	Key            string    `json:"key"`
	Kind           string    `json:"kind"`
	ChallengeID    uuid.UUID `json:"challenge_id"`
	UserTelegramID int64     `json:"user_telegram_id"`
	Amount         int64     `json:"amount"`
	Status         string    `json:"status"`
	Attempts       int       `json:"attempts"`
	LastError      *string   `json:"last_error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (r *adminRoutes) GetStuckIntents(c *gin.Context) {
	intents, err := r.reconciler.StuckIntents(c.Request.Context())
	if err != nil {
		respondError(c, "list stuck intents", err)
		return
	}

	out := make([]IntentResponse, len(intents))
	for i, in := range intents {
		out[i] = IntentResponse{
			ID:             in.ID,
			Key:            in.Key,
			Kind:           string(in.Kind),
			ChallengeID:    in.ChallengeID,
			UserTelegramID: in.UserTelegramID,
			Amount:         in.Amount,
			Status:         string(in.Status),
			Attempts:       in.Attempts,
			LastError:      in.LastError,
			CreatedAt:      in.CreatedAt,
			UpdatedAt:      in.UpdatedAt,
		}
	}

	c.JSON(http.StatusOK, out)
}

func (r *adminRoutes) GetLedgerBalance(c *gin.Context) {
	balance, err := r.reconciler.LedgerBalance(c.Request.Context())
	if err != nil {
		respondError(c, "get ledger balance", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": balance})
}
