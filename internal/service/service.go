package service

import (
	"context"
	"time"

	"fitstake_miniapp/internal/model"

	"github.com/google/uuid"
)

type Service struct {
	*UserService
	*ChallengeService
	*HealthService
	*Reconciler
}

func NewService(userService *UserService, challengeService *ChallengeService, healthService *HealthService, reconciler *Reconciler) *Service {
	return &Service{
		UserService:      userService,
		ChallengeService: challengeService,
		HealthService:    healthService,
		Reconciler:       reconciler,
	}
}

type UserServiceI interface {
	RegisterUser(ctx context.Context, user *model.User) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	UpdateWalletAddress(ctx context.Context, telegramID int64, address string) error
	GetLeaderboard(ctx context.Context, limit int) ([]*model.User, error)
}

type ChallengeServiceI interface {
	CreateChallenge(ctx context.Context, telegramID int64, params model.CreateChallengeParams) (*model.Challenge, error)
	JoinChallenge(ctx context.Context, telegramID int64, challengeID uuid.UUID) error
	LeaveChallenge(ctx context.Context, telegramID int64, challengeID uuid.UUID) error
	GetChallenge(ctx context.Context, challengeID uuid.UUID) (*model.Challenge, error)
	UpdateChallenge(ctx context.Context, telegramID int64, challengeID uuid.UUID, update model.ChallengeUpdate) error
	GetUserChallenges(ctx context.Context, telegramID int64) ([]*model.UserChallenge, error)
	GetJoinedChallenges(ctx context.Context, telegramID int64, status model.ChallengeStatus) ([]*model.Challenge, error)
	GetAvailableChallenges(ctx context.Context) ([]*model.Challenge, error)
	GetAllChallenges(ctx context.Context, telegramID int64) ([]model.ChallengeListItem, error)
	GetPublicChallenges(ctx context.Context, limit int) ([]*model.Challenge, error)
	CheckChallengeCompletion(ctx context.Context, telegramID int64, challengeID uuid.UUID) error
	GetParticipationProgress(ctx context.Context, telegramID int64, challengeID uuid.UUID) (float64, error)
	UpdateAllChallengesProgress(ctx context.Context, telegramID int64) (*model.ProgressReport, error)
}

type HealthServiceI interface {
	RecordMetrics(ctx context.Context, metrics *model.HealthMetrics) error
}

type ReconcilerI interface {
	StuckIntents(ctx context.Context) ([]*model.SettlementIntent, error)
	LedgerBalance(ctx context.Context) (int64, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	AdjustTokenBalance(ctx context.Context, telegramID int64, delta int64) (int64, error)
	UpdateWalletAddress(ctx context.Context, telegramID int64, address string) error
	GetTopUsers(ctx context.Context, limit int) ([]*model.User, error)
}

type ChallengeRepository interface {
	CreateChallenge(ctx context.Context, challenge *model.Challenge, creator *model.UserChallenge) (uuid.UUID, error)
	GetChallenge(ctx context.Context, id uuid.UUID) (*model.Challenge, error)
	UpdateChallenge(ctx context.Context, id uuid.UUID, update model.ChallengeUpdate) error
	SetLedgerAddress(ctx context.Context, id uuid.UUID, address string) error
	ListChallengesByParticipant(ctx context.Context, telegramID int64, status model.ChallengeStatus) ([]*model.Challenge, error)
	ListPublicChallenges(ctx context.Context, limit int) ([]*model.Challenge, error)
	ListAvailableChallenges(ctx context.Context, now time.Time) ([]*model.Challenge, error)
	GetUserChallenge(ctx context.Context, challengeID uuid.UUID, telegramID int64) (*model.UserChallenge, error)
	ListUserChallenges(ctx context.Context, telegramID int64, status *model.ChallengeStatus) ([]*model.UserChallenge, error)
	AddParticipant(ctx context.Context, challengeID uuid.UUID, participation *model.UserChallenge) error
	RemoveParticipant(ctx context.Context, challengeID uuid.UUID, telegramID int64) (*model.Challenge, error)
	MarkChallengeCompleted(ctx context.Context, challengeID uuid.UUID, telegramID int64) (bool, error)
	UpdateProgressBatch(ctx context.Context, updates []model.ProgressUpdate) error
	ListUsersWithActiveChallenges(ctx context.Context) ([]int64, error)
}

type IntentRepository interface {
	CreateIntent(ctx context.Context, intent *model.SettlementIntent) error
	CompleteIntent(ctx context.Context, id uuid.UUID) error
	FailIntent(ctx context.Context, id uuid.UUID, reason string) error
	ListStuckIntents(ctx context.Context, olderThan time.Time) ([]*model.SettlementIntent, error)
}

type HealthRepository interface {
	UpsertHealthMetrics(ctx context.Context, metrics *model.HealthMetrics) error
}

// ProgressSource returns nil metrics when nothing was reported today.
type ProgressSource interface {
	TodayMetrics(ctx context.Context, telegramID int64) (*model.HealthMetrics, error)
}

type Ledger interface {
	InitWallet(ctx context.Context) error
	CreateAccount(ctx context.Context, externalID string, initialStake int64) (string, error)
	AddStake(ctx context.Context, address string, amount int64) error
	Payout(ctx context.Context, address, recipient string, amount int64) error
	GetBalance(ctx context.Context) (int64, error)
}

type Notifier interface {
	Notify(ctx context.Context, event model.Event)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, model.Event) {}
