package service

import (
	"context"
	"errors"
	"time"

	"fitstake_miniapp/internal/metrics"
	"fitstake_miniapp/internal/model"
	"fitstake_miniapp/internal/repository"
	"fitstake_miniapp/pkg/logger"

	"go.uber.org/zap"
)

const DefaultStuckIntentAge = 10 * time.Minute

var errAlreadySettled = errors.New("settlement intent already exists")

// settle records intent, runs call against the ledger and marks the intent
// with the outcome. Ledger failures are not retried.
func (s *ChallengeService) settle(ctx context.Context, intent *model.SettlementIntent, call func(ctx context.Context) error) error {
	log := logger.Named("settlement").With(
		zap.String("intent_key", intent.Key),
		zap.String("challenge_id", intent.ChallengeID.String()),
		zap.Int64("telegram_id", intent.UserTelegramID))

	if err := s.intents.CreateIntent(ctx, intent); err != nil {
		if errors.Is(err, repository.ErrIntentExists) {
			return errAlreadySettled
		}
		log.Error("failed to record settlement intent", zap.Error(err))
		return externalError("record settlement intent", err)
	}

	callErr := call(ctx)
	metrics.LedgerCalls.WithLabelValues(string(intent.Kind), metrics.Outcome(callErr)).Inc()

	if callErr != nil {
		log.Error("ledger call failed", zap.Error(callErr))
		if err := s.intents.FailIntent(ctx, intent.ID, callErr.Error()); err != nil {
			log.Error("failed to mark settlement intent failed", zap.Error(err))
		}
		return externalError("ledger "+string(intent.Kind), callErr)
	}

	// The ledger call went through; a pending intent left behind here is
	// reported by the reconciler.
	if err := s.intents.CompleteIntent(ctx, intent.ID); err != nil {
		log.Warn("failed to mark settlement intent completed", zap.Error(err))
	}

	return nil
}

// Reconciler reports settlement intents that never left the pending state.
// It does not repair them.
type Reconciler struct {
	intents  IntentRepository
	ledger   Ledger
	clock    Clock
	stuckAge time.Duration
}

func NewReconciler(intents IntentRepository, ledger Ledger, clock Clock, stuckAge time.Duration) *Reconciler {
	if clock == nil {
		clock = SystemClock{}
	}
	if stuckAge <= 0 {
		stuckAge = DefaultStuckIntentAge
	}

	return &Reconciler{
		intents:  intents,
		ledger:   ledger,
		clock:    clock,
		stuckAge: stuckAge,
	}
}

func (r *Reconciler) StuckIntents(ctx context.Context) ([]*model.SettlementIntent, error) {
	intents, err := r.intents.ListStuckIntents(ctx, r.clock.Now().Add(-r.stuckAge))
	if err != nil {
		return nil, externalError("list stuck intents", err)
	}
	return intents, nil
}

// LedgerBalance reports the token balance of the ledger authority wallet
// that funds every challenge account.
func (r *Reconciler) LedgerBalance(ctx context.Context) (int64, error) {
	balance, err := r.ledger.GetBalance(ctx)
	metrics.LedgerCalls.WithLabelValues("getBalance", metrics.Outcome(err)).Inc()
	if err != nil {
		logger.Named("reconciler").Error("failed to read ledger balance", zap.Error(err))
		return 0, externalError("ledger balance", err)
	}
	return balance, nil
}

// Sweep logs every stuck intent and publishes their count.
func (r *Reconciler) Sweep(ctx context.Context) error {
	log := logger.Named("reconciler")

	intents, err := r.StuckIntents(ctx)
	if err != nil {
		log.Error("failed to list stuck settlement intents", zap.Error(err))
		return err
	}

	metrics.StuckIntents.Set(float64(len(intents)))
	for _, intent := range intents {
		log.Warn("settlement intent stuck",
			zap.String("intent_key", intent.Key),
			zap.String("kind", string(intent.Kind)),
			zap.String("challenge_id", intent.ChallengeID.String()),
			zap.Int64("telegram_id", intent.UserTelegramID),
			zap.Int64("amount", intent.Amount),
			zap.Int("attempts", intent.Attempts),
			zap.Time("updated_at", intent.UpdatedAt))
	}

	return nil
}
