package service

import (
	"context"
	"math"

	"fitstake_miniapp/internal/model"
	"fitstake_miniapp/pkg/logger"

	"go.uber.org/zap"
)

type HealthService struct {
	repo  HealthRepository
	clock Clock
}

func NewHealthService(repo HealthRepository, clock Clock) *HealthService {
	if clock == nil {
		clock = SystemClock{}
	}

	return &HealthService{
		repo:  repo,
		clock: clock,
	}
}

// RecordMetrics stores the activity the user's device reported for today.
func (s *HealthService) RecordMetrics(ctx context.Context, metrics *model.HealthMetrics) error {
	var violations []string
	if metrics.Steps < 0 || math.IsNaN(metrics.Steps) || math.IsInf(metrics.Steps, 0) {
		violations = append(violations, "steps must be a non-negative number")
	}
	if metrics.ActiveMinutes < 0 || math.IsNaN(metrics.ActiveMinutes) || math.IsInf(metrics.ActiveMinutes, 0) {
		violations = append(violations, "active minutes must be a non-negative number")
	}
	if len(violations) > 0 {
		return validationError(violations)
	}

	metrics.Day = s.clock.Now()
	if err := s.repo.UpsertHealthMetrics(ctx, metrics); err != nil {
		logger.Named("health").Error("failed to store health metrics",
			zap.Int64("telegram_id", metrics.UserTelegramID), zap.Error(err))
		return externalError("store health metrics", err)
	}

	return nil
}
