package service

import (
	"context"
	"errors"
	"time"

	"fitstake_miniapp/internal/metrics"
	"fitstake_miniapp/internal/model"
	"fitstake_miniapp/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GetChallengeProgress turns today's reported metric into a percentage of
// goal clamped to [0, 100]. Missing metrics count as no progress.
func (s *ChallengeService) GetChallengeProgress(ctx context.Context, telegramID int64, challengeType model.ChallengeType, goal float64) (float64, error) {
	switch challengeType {
	case model.ChallengeTypeSteps, model.ChallengeTypeActiveMinutes:
	default:
		return 0, newError(ErrUnsupportedType, "", "no progress formula for %q", challengeType)
	}
	if goal <= 0 {
		return 0, validationError([]string{"goal must be greater than 0"})
	}

	today, err := s.progress.TodayMetrics(ctx, telegramID)
	if err != nil {
		logger.Named("progress").Error("failed to read progress source",
			zap.Int64("telegram_id", telegramID), zap.Error(err))
		return 0, externalError("read progress source", err)
	}
	if today == nil {
		return 0, nil
	}

	value := today.Steps
	if challengeType == model.ChallengeTypeActiveMinutes {
		value = today.ActiveMinutes
	}

	return clampPercent(value / goal * 100), nil
}

// GetParticipationProgress reports the caller's progress on one challenge,
// never lower than what was already recorded.
func (s *ChallengeService) GetParticipationProgress(ctx context.Context, telegramID int64, challengeID uuid.UUID) (float64, error) {
	participation, err := s.challenges.GetUserChallenge(ctx, challengeID, telegramID)
	if err != nil {
		return 0, externalError("get participation", err)
	}
	if participation == nil {
		return 0, newError(ErrNotFound, "You haven't joined this challenge.", "no participation in %s for %d", challengeID, telegramID)
	}
	if participation.Status != model.ChallengeStatusActive {
		return participation.Progress, nil
	}

	progress, err := s.GetChallengeProgress(ctx, telegramID, participation.Type, participation.Goal)
	if err != nil {
		return 0, err
	}

	return maxProgress(participation.Progress, progress), nil
}

// UpdateAllChallengesProgress refreshes every active participation of the
// user. Expired ones are settled instead of progressed, and a failure on
// one participation does not stop the others. All progress writes of one
// pass are committed together.
func (s *ChallengeService) UpdateAllChallengesProgress(ctx context.Context, telegramID int64) (*model.ProgressReport, error) {
	if !s.acquire(telegramID) {
		return nil, newError(ErrBatchInFlight, "", "user %d", telegramID)
	}
	defer s.release(telegramID)

	log := logger.Named("progress").With(zap.Int64("telegram_id", telegramID))
	start := time.Now()
	defer func() {
		metrics.ProgressBatchDuration.Observe(time.Since(start).Seconds())
	}()

	status := model.ChallengeStatusActive
	participations, err := s.challenges.ListUserChallenges(ctx, telegramID, &status)
	if err != nil {
		log.Error("failed to list active participations", zap.Error(err))
		return nil, externalError("list active participations", err)
	}

	report := &model.ProgressReport{
		UserTelegramID: telegramID,
		Failures:       make(map[uuid.UUID]string),
	}
	skip := func(uc *model.UserChallenge, err error) {
		log.Warn("skipping participation",
			zap.String("challenge_id", uc.ChallengeID.String()),
			zap.Error(err))
		report.Skipped++
		report.Failures[uc.ChallengeID] = err.Error()
		metrics.ProgressItems.WithLabelValues("skipped").Inc()
	}

	now := s.clock.Now()
	var updates []model.ProgressUpdate
	for _, uc := range participations {
		if !now.Before(uc.EndDate) {
			if err := s.CheckChallengeCompletion(ctx, telegramID, uc.ChallengeID); err != nil {
				skip(uc, err)
				continue
			}
			report.Resolved++
			metrics.ProgressItems.WithLabelValues("resolved").Inc()
			continue
		}

		progress, err := s.GetChallengeProgress(ctx, telegramID, uc.Type, uc.Goal)
		if err != nil {
			skip(uc, err)
			continue
		}
		if progress <= uc.Progress {
			continue
		}

		updates = append(updates, model.ProgressUpdate{
			ChallengeID: uc.ChallengeID,
			UserID:      telegramID,
			Progress:    progress,
		})
	}

	if len(updates) > 0 {
		if err := s.challenges.UpdateProgressBatch(ctx, updates); err != nil {
			log.Error("failed to write progress batch", zap.Int("updates", len(updates)), zap.Error(err))
			return nil, externalError("write progress batch", err)
		}
	}
	report.Updated = len(updates)
	metrics.ProgressItems.WithLabelValues("updated").Add(float64(len(updates)))

	for _, u := range updates {
		s.notifier.Notify(ctx, model.Event{
			Type:           model.EventProgressUpdated,
			ChallengeID:    u.ChallengeID,
			UserTelegramID: telegramID,
			Recipients:     []int64{telegramID},
			Progress:       u.Progress,
			At:             now,
		})
	}

	log.Debug("progress pass finished",
		zap.Int("updated", report.Updated),
		zap.Int("resolved", report.Resolved),
		zap.Int("skipped", report.Skipped))

	return report, nil
}

// RefreshAllUsers runs the progress pass for every user that has an active
// participation. Users whose pass is already running are skipped.
func (s *ChallengeService) RefreshAllUsers(ctx context.Context) error {
	log := logger.Named("progress")

	users, err := s.challenges.ListUsersWithActiveChallenges(ctx)
	if err != nil {
		log.Error("failed to list users with active challenges", zap.Error(err))
		return externalError("list users with active challenges", err)
	}

	for _, telegramID := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if _, err := s.UpdateAllChallengesProgress(ctx, telegramID); err != nil {
			if errors.Is(err, ErrBatchInFlight) {
				log.Debug("progress pass already running", zap.Int64("telegram_id", telegramID))
				continue
			}
			log.Error("progress pass failed", zap.Int64("telegram_id", telegramID), zap.Error(err))
		}
	}

	return nil
}

func (s *ChallengeService) acquire(telegramID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[telegramID]; busy {
		return false
	}
	s.inFlight[telegramID] = struct{}{}
	return true
}

func (s *ChallengeService) release(telegramID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, telegramID)
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func maxProgress(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
