package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"fitstake_miniapp/internal/cache"
	"fitstake_miniapp/internal/metrics"
	"fitstake_miniapp/internal/model"
	"fitstake_miniapp/internal/repository"
	"fitstake_miniapp/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPublicLimit = 10
	MaxPublicLimit     = 100

	availableCacheKey = "available"
)

type ChallengeDeps struct {
	Challenges ChallengeRepository
	Users      UserRepository
	Intents    IntentRepository
	Progress   ProgressSource
	Ledger     Ledger
	Clock      Clock
	Notifier   Notifier
	Available  *cache.TTL[[]*model.Challenge]
}

type ChallengeService struct {
	challenges ChallengeRepository
	users      UserRepository
	intents    IntentRepository
	progress   ProgressSource
	ledger     Ledger
	clock      Clock
	notifier   Notifier
	available  *cache.TTL[[]*model.Challenge]

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

func NewChallengeService(deps ChallengeDeps) *ChallengeService {
	s := &ChallengeService{
		challenges: deps.Challenges,
		users:      deps.Users,
		intents:    deps.Intents,
		progress:   deps.Progress,
		ledger:     deps.Ledger,
		clock:      deps.Clock,
		notifier:   deps.Notifier,
		available:  deps.Available,
		inFlight:   make(map[int64]struct{}),
	}

	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.available == nil {
		s.available = cache.New[[]*model.Challenge](cache.DefaultTTL, s.clock.Now)
	}

	return s
}

func (s *ChallengeService) CreateChallenge(ctx context.Context, telegramID int64, params model.CreateChallengeParams) (*model.Challenge, error) {
	log := logger.Named("challenges")

	if params.Visibility == "" {
		params.Visibility = model.VisibilityPublic
	}

	now := s.clock.Now()
	if err := validateCreate(params, now); err != nil {
		return nil, err
	}

	user, err := s.currentUser(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if user.TokenBalance < params.Stake {
		return nil, insufficientFunds(user.TokenBalance, params.Stake)
	}

	if err := s.initWallet(ctx); err != nil {
		return nil, err
	}

	challenge := &model.Challenge{
		Title:        params.Title,
		Description:  params.Description,
		Type:         params.Type,
		Goal:         params.Goal,
		Stake:        params.Stake,
		StartDate:    params.StartDate,
		EndDate:      params.EndDate,
		CreatedBy:    telegramID,
		Participants: []int64{telegramID},
		Status:       model.ChallengeStatusActive,
		Visibility:   params.Visibility,
		GroupID:      params.GroupID,
		PrizePool:    params.Stake,
		Rules:        params.Rules,
	}
	creator := model.NewUserChallenge(challenge, telegramID, user.Name(), now)

	if _, err := s.challenges.CreateChallenge(ctx, challenge, creator); err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return nil, insufficientFunds(user.TokenBalance, params.Stake)
		}
		log.Error("failed to store challenge", zap.Int64("telegram_id", telegramID), zap.Error(err))
		metrics.LifecycleOperations.WithLabelValues("create", "error").Inc()
		return nil, externalError("store challenge", err)
	}
	metrics.StakedTokens.Add(float64(challenge.Stake))

	address, err := s.openLedgerAccount(ctx, challenge)
	if err != nil {
		log.Error("challenge stored without ledger account",
			zap.String("challenge_id", challenge.ID.String()),
			zap.Error(err))
		metrics.LifecycleOperations.WithLabelValues("create", "error").Inc()
		return nil, err
	}
	challenge.LedgerAddress = &address

	metrics.LifecycleOperations.WithLabelValues("create", "ok").Inc()
	log.Info("challenge created",
		zap.String("challenge_id", challenge.ID.String()),
		zap.Int64("telegram_id", telegramID),
		zap.Int64("stake", challenge.Stake))

	s.notifier.Notify(ctx, model.Event{
		Type:           model.EventChallengeCreated,
		ChallengeID:    challenge.ID,
		ChallengeTitle: challenge.Title,
		UserTelegramID: telegramID,
		Recipients:     []int64{telegramID},
		Amount:         challenge.Stake,
		At:             now,
	})

	return challenge, nil
}

func (s *ChallengeService) openLedgerAccount(ctx context.Context, challenge *model.Challenge) (string, error) {
	var address string

	err := s.settle(ctx, &model.SettlementIntent{
		Key:            "account:" + challenge.ID.String(),
		Kind:           model.IntentCreateAccount,
		ChallengeID:    challenge.ID,
		UserTelegramID: challenge.CreatedBy,
		Amount:         challenge.Stake,
	}, func(ctx context.Context) error {
		var err error
		address, err = s.ledger.CreateAccount(ctx, challenge.ID.String(), challenge.Stake)
		return err
	})
	if err != nil {
		return "", err
	}

	if err := s.challenges.SetLedgerAddress(ctx, challenge.ID, address); err != nil {
		return "", externalError("store ledger address", err)
	}

	return address, nil
}

func (s *ChallengeService) JoinChallenge(ctx context.Context, telegramID int64, challengeID uuid.UUID) error {
	log := logger.Named("challenges")

	user, err := s.currentUser(ctx, telegramID)
	if err != nil {
		return err
	}

	challenge, err := s.loadChallenge(ctx, challengeID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	switch {
	case challenge.HasParticipant(telegramID):
		return conflictError("You have already joined this challenge.")
	case challenge.Status != model.ChallengeStatusActive:
		return conflictError("This challenge is no longer active.")
	case !now.Before(challenge.EndDate):
		return conflictError("This challenge has already ended.")
	case challenge.Rules.DisallowLateJoin && now.After(challenge.StartDate):
		return conflictError("This challenge has already started.")
	case challenge.Rules.MaxParticipants > 0 && len(challenge.Participants) >= challenge.Rules.MaxParticipants:
		return conflictError("This challenge is full.")
	case user.TokenBalance < challenge.Stake:
		return insufficientFunds(user.TokenBalance, challenge.Stake)
	}

	if err := s.initWallet(ctx); err != nil {
		return err
	}

	if challenge.LedgerAddress != nil {
		address := *challenge.LedgerAddress
		err := s.settle(ctx, &model.SettlementIntent{
			Key:            fmt.Sprintf("stake:%s:%d:%s", challengeID, telegramID, uuid.New()),
			Kind:           model.IntentStake,
			ChallengeID:    challengeID,
			UserTelegramID: telegramID,
			Amount:         challenge.Stake,
		}, func(ctx context.Context) error {
			return s.ledger.AddStake(ctx, address, challenge.Stake)
		})
		if err != nil {
			metrics.LifecycleOperations.WithLabelValues("join", "error").Inc()
			return err
		}
	}

	participation := model.NewUserChallenge(challenge, telegramID, user.Name(), now)
	if err := s.challenges.AddParticipant(ctx, challengeID, participation); err != nil {
		metrics.LifecycleOperations.WithLabelValues("join", "error").Inc()
		if mapped := participationError(err, user.TokenBalance, challenge.Stake); mapped != nil {
			return mapped
		}
		log.Error("failed to add participant",
			zap.String("challenge_id", challengeID.String()),
			zap.Int64("telegram_id", telegramID),
			zap.Error(err))
		return externalError("add participant", err)
	}

	metrics.LifecycleOperations.WithLabelValues("join", "ok").Inc()
	metrics.StakedTokens.Add(float64(challenge.Stake))
	log.Info("challenge joined",
		zap.String("challenge_id", challengeID.String()),
		zap.Int64("telegram_id", telegramID))

	s.notifier.Notify(ctx, model.Event{
		Type:           model.EventChallengeJoined,
		ChallengeID:    challengeID,
		ChallengeTitle: challenge.Title,
		UserTelegramID: telegramID,
		Recipients:     append([]int64{telegramID}, challenge.Participants...),
		Amount:         challenge.Stake,
		At:             now,
	})

	return nil
}

// LeaveChallenge refunds the stake to the token balance only. The ledger
// account keeps the stake.
func (s *ChallengeService) LeaveChallenge(ctx context.Context, telegramID int64, challengeID uuid.UUID) error {
	log := logger.Named("challenges")

	if _, err := s.currentUser(ctx, telegramID); err != nil {
		return err
	}

	challenge, err := s.challenges.RemoveParticipant(ctx, challengeID, telegramID)
	if err != nil {
		metrics.LifecycleOperations.WithLabelValues("leave", "error").Inc()
		if mapped := participationError(err, 0, 0); mapped != nil {
			return mapped
		}
		log.Error("failed to remove participant",
			zap.String("challenge_id", challengeID.String()),
			zap.Int64("telegram_id", telegramID),
			zap.Error(err))
		return externalError("remove participant", err)
	}

	metrics.LifecycleOperations.WithLabelValues("leave", "ok").Inc()
	log.Info("challenge left",
		zap.String("challenge_id", challengeID.String()),
		zap.Int64("telegram_id", telegramID))

	s.notifier.Notify(ctx, model.Event{
		Type:           model.EventChallengeLeft,
		ChallengeID:    challengeID,
		ChallengeTitle: challenge.Title,
		UserTelegramID: telegramID,
		Recipients:     append([]int64{telegramID}, challenge.Participants...),
		Amount:         challenge.Stake,
		At:             s.clock.Now(),
	})

	return nil
}

// CheckChallengeCompletion completes the challenge once the caller's
// progress reaches 100 and pays their stake back. Only the first participant
// to get there is paid; later calls, from anyone, do nothing.
func (s *ChallengeService) CheckChallengeCompletion(ctx context.Context, telegramID int64, challengeID uuid.UUID) error {
	log := logger.Named("challenges")

	user, err := s.currentUser(ctx, telegramID)
	if err != nil {
		return err
	}

	challenge, err := s.loadChallenge(ctx, challengeID)
	if err != nil {
		return err
	}
	if !challenge.HasParticipant(telegramID) {
		return conflictError("You are not a participant in this challenge.")
	}

	participation, err := s.challenges.GetUserChallenge(ctx, challengeID, telegramID)
	if err != nil {
		return externalError("get participation", err)
	}
	if participation == nil {
		return conflictError("You are not a participant in this challenge.")
	}
	if participation.Status != model.ChallengeStatusActive || challenge.Status != model.ChallengeStatusActive {
		return nil
	}

	progress, err := s.GetChallengeProgress(ctx, telegramID, challenge.Type, challenge.Goal)
	if err != nil {
		return err
	}
	if progress < participation.Progress {
		progress = participation.Progress
	}
	if progress < 100 {
		return nil
	}

	if err := s.initWallet(ctx); err != nil {
		return err
	}

	if challenge.LedgerAddress != nil {
		address := *challenge.LedgerAddress
		recipient := payoutRecipient(user)
		err := s.settle(ctx, &model.SettlementIntent{
			Key:            "reward:" + challengeID.String(),
			Kind:           model.IntentReward,
			ChallengeID:    challengeID,
			UserTelegramID: telegramID,
			Amount:         challenge.Stake,
		}, func(ctx context.Context) error {
			return s.ledger.Payout(ctx, address, recipient, challenge.Stake)
		})
		switch {
		case errors.Is(err, errAlreadySettled):
			log.Warn("reward already submitted, skipping payout",
				zap.String("challenge_id", challengeID.String()),
				zap.Int64("telegram_id", telegramID))
		case err != nil:
			metrics.LifecycleOperations.WithLabelValues("complete", "error").Inc()
			return err
		}
	}

	transitioned, err := s.challenges.MarkChallengeCompleted(ctx, challengeID, telegramID)
	if err != nil {
		log.Error("failed to mark challenge completed",
			zap.String("challenge_id", challengeID.String()),
			zap.Int64("telegram_id", telegramID),
			zap.Error(err))
		metrics.LifecycleOperations.WithLabelValues("complete", "error").Inc()
		return externalError("mark challenge completed", err)
	}
	if !transitioned {
		log.Info("challenge already completed by another participant",
			zap.String("challenge_id", challengeID.String()),
			zap.Int64("telegram_id", telegramID))
		return nil
	}

	// The completer gets their own stake back; the pool is not split.
	if _, err := s.users.AdjustTokenBalance(ctx, telegramID, challenge.Stake); err != nil {
		log.Error("failed to credit stake after completion",
			zap.String("challenge_id", challengeID.String()),
			zap.Int64("telegram_id", telegramID),
			zap.Error(err))
		metrics.LifecycleOperations.WithLabelValues("complete", "error").Inc()
		return externalError("credit stake", err)
	}

	metrics.LifecycleOperations.WithLabelValues("complete", "ok").Inc()
	metrics.PaidOutTokens.Add(float64(challenge.Stake))
	log.Info("challenge completed",
		zap.String("challenge_id", challengeID.String()),
		zap.Int64("telegram_id", telegramID),
		zap.Int64("reward", challenge.Stake))

	s.notifier.Notify(ctx, model.Event{
		Type:           model.EventChallengeCompleted,
		ChallengeID:    challengeID,
		ChallengeTitle: challenge.Title,
		UserTelegramID: telegramID,
		Recipients:     challenge.Participants,
		Amount:         challenge.Stake,
		Progress:       100,
		At:             s.clock.Now(),
	})

	return nil
}

// GetChallenge returns nil when the challenge does not exist.
func (s *ChallengeService) GetChallenge(ctx context.Context, challengeID uuid.UUID) (*model.Challenge, error) {
	challenge, err := s.challenges.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, externalError("get challenge", err)
	}
	return challenge, nil
}

func (s *ChallengeService) UpdateChallenge(ctx context.Context, telegramID int64, challengeID uuid.UUID, update model.ChallengeUpdate) error {
	if _, err := s.currentUser(ctx, telegramID); err != nil {
		return err
	}

	challenge, err := s.loadChallenge(ctx, challengeID)
	if err != nil {
		return err
	}
	if challenge.CreatedBy != telegramID {
		return conflictError("Only the creator can edit this challenge.")
	}
	if challenge.Status != model.ChallengeStatusActive {
		return conflictError("This challenge is no longer active.")
	}

	if err := validateUpdate(challenge, update, s.clock.Now()); err != nil {
		return err
	}

	if err := s.challenges.UpdateChallenge(ctx, challengeID, update); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return challengeNotFound(challengeID)
		}
		return externalError("update challenge", err)
	}

	return nil
}

func (s *ChallengeService) GetUserChallenges(ctx context.Context, telegramID int64) ([]*model.UserChallenge, error) {
	list, err := s.challenges.ListUserChallenges(ctx, telegramID, nil)
	if err != nil {
		return nil, externalError("list user challenges", err)
	}
	return list, nil
}

// GetJoinedChallenges lists the challenges the caller participates in with
// the given status; an empty status means active.
func (s *ChallengeService) GetJoinedChallenges(ctx context.Context, telegramID int64, status model.ChallengeStatus) ([]*model.Challenge, error) {
	switch status {
	case "":
		status = model.ChallengeStatusActive
	case model.ChallengeStatusActive, model.ChallengeStatusCompleted, model.ChallengeStatusCancelled:
	default:
		return nil, validationError([]string{fmt.Sprintf("status %q is not one of active, completed, cancelled", status)})
	}

	list, err := s.challenges.ListChallengesByParticipant(ctx, telegramID, status)
	if err != nil {
		return nil, externalError("list joined challenges", err)
	}
	return list, nil
}

// GetAvailableChallenges serves public, active, unexpired challenges from
// the cache while the cached list is fresh.
func (s *ChallengeService) GetAvailableChallenges(ctx context.Context) ([]*model.Challenge, error) {
	if cached, ok := s.available.Get(availableCacheKey); ok {
		return cached, nil
	}

	list, err := s.challenges.ListAvailableChallenges(ctx, s.clock.Now())
	if err != nil {
		return nil, externalError("list available challenges", err)
	}

	s.available.Set(availableCacheKey, list)
	return list, nil
}

// GetAllChallenges lists the caller's active participations followed by
// the available challenges they have not joined.
func (s *ChallengeService) GetAllChallenges(ctx context.Context, telegramID int64) ([]model.ChallengeListItem, error) {
	participations, err := s.GetUserChallenges(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	available, err := s.GetAvailableChallenges(ctx)
	if err != nil {
		return nil, err
	}

	joined := make(map[uuid.UUID]struct{}, len(participations))
	items := make([]model.ChallengeListItem, 0, len(participations)+len(available))
	for _, uc := range participations {
		joined[uc.ChallengeID] = struct{}{}
		if uc.Status == model.ChallengeStatusActive {
			items = append(items, model.ChallengeListItem{Kind: model.ListItemOwned, UserChallenge: uc})
		}
	}

	for _, c := range available {
		if _, ok := joined[c.ID]; ok {
			continue
		}
		items = append(items, model.ChallengeListItem{Kind: model.ListItemAvailable, Challenge: c})
	}

	return items, nil
}

func (s *ChallengeService) GetPublicChallenges(ctx context.Context, limit int) ([]*model.Challenge, error) {
	switch {
	case limit <= 0:
		limit = DefaultPublicLimit
	case limit > MaxPublicLimit:
		limit = MaxPublicLimit
	}

	list, err := s.challenges.ListPublicChallenges(ctx, limit)
	if err != nil {
		return nil, externalError("list public challenges", err)
	}
	return list, nil
}

func (s *ChallengeService) currentUser(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := s.users.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrUnauthenticated, "Please sign in again.", "user %d is not registered", telegramID)
		}
		return nil, externalError("get user", err)
	}
	return user, nil
}

func (s *ChallengeService) loadChallenge(ctx context.Context, challengeID uuid.UUID) (*model.Challenge, error) {
	challenge, err := s.challenges.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, externalError("get challenge", err)
	}
	if challenge == nil {
		return nil, challengeNotFound(challengeID)
	}
	return challenge, nil
}

func (s *ChallengeService) initWallet(ctx context.Context) error {
	err := s.ledger.InitWallet(ctx)
	metrics.LedgerCalls.WithLabelValues("initWallet", metrics.Outcome(err)).Inc()
	if err != nil {
		logger.Named("ledger").Error("failed to initialize ledger wallet", zap.Error(err))
		return externalError("init ledger wallet", err)
	}
	return nil
}

func payoutRecipient(user *model.User) string {
	if user.WalletAddress != nil && *user.WalletAddress != "" {
		return *user.WalletAddress
	}
	return strconv.FormatInt(user.TelegramID, 10)
}

func challengeNotFound(id uuid.UUID) *Error {
	return newError(ErrNotFound, "We couldn't find that challenge.", "challenge %s", id)
}

func insufficientFunds(balance, stake int64) *Error {
	return newError(ErrInsufficientFunds,
		fmt.Sprintf("You need %d tokens to stake but have %d.", stake, balance),
		"balance %d is below stake %d", balance, stake)
}

// participationError maps repository participation errors to service
// errors. It returns nil for errors it does not recognise.
func participationError(err error, balance, stake int64) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return newError(ErrNotFound, "We couldn't find that challenge.", "%v", err)
	case errors.Is(err, repository.ErrAlreadyParticipant):
		return conflictError("You have already joined this challenge.")
	case errors.Is(err, repository.ErrChallengeNotActive):
		return conflictError("This challenge is no longer active.")
	case errors.Is(err, repository.ErrChallengeFull):
		return conflictError("This challenge is full.")
	case errors.Is(err, repository.ErrNotParticipant):
		return conflictError("You are not a participant in this challenge.")
	case errors.Is(err, repository.ErrInsufficientBalance):
		return insufficientFunds(balance, stake)
	}
	return nil
}
