package mocks

import (
	"context"
	"time"

	"fitstake_miniapp/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) AdjustTokenBalance(ctx context.Context, telegramID int64, delta int64) (int64, error) {
	args := m.Called(ctx, telegramID, delta)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) UpdateWalletAddress(ctx context.Context, telegramID int64, address string) error {
	args := m.Called(ctx, telegramID, address)
	return args.Error(0)
}

func (m *MockUserRepository) GetTopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.User), args.Error(1)
}

type MockChallengeRepository struct {
	mock.Mock
}

func (m *MockChallengeRepository) CreateChallenge(ctx context.Context, challenge *model.Challenge, creator *model.UserChallenge) (uuid.UUID, error) {
	args := m.Called(ctx, challenge, creator)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockChallengeRepository) GetChallenge(ctx context.Context, id uuid.UUID) (*model.Challenge, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Challenge), args.Error(1)
}

func (m *MockChallengeRepository) UpdateChallenge(ctx context.Context, id uuid.UUID, update model.ChallengeUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}

func (m *MockChallengeRepository) SetLedgerAddress(ctx context.Context, id uuid.UUID, address string) error {
	args := m.Called(ctx, id, address)
	return args.Error(0)
}

func (m *MockChallengeRepository) ListChallengesByParticipant(ctx context.Context, telegramID int64, status model.ChallengeStatus) ([]*model.Challenge, error) {
	args := m.Called(ctx, telegramID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Challenge), args.Error(1)
}

func (m *MockChallengeRepository) ListPublicChallenges(ctx context.Context, limit int) ([]*model.Challenge, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Challenge), args.Error(1)
}

func (m *MockChallengeRepository) ListAvailableChallenges(ctx context.Context, now time.Time) ([]*model.Challenge, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Challenge), args.Error(1)
}

func (m *MockChallengeRepository) GetUserChallenge(ctx context.Context, challengeID uuid.UUID, telegramID int64) (*model.UserChallenge, error) {
	args := m.Called(ctx, challengeID, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserChallenge), args.Error(1)
}

func (m *MockChallengeRepository) ListUserChallenges(ctx context.Context, telegramID int64, status *model.ChallengeStatus) ([]*model.UserChallenge, error) {
	args := m.Called(ctx, telegramID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.UserChallenge), args.Error(1)
}

func (m *MockChallengeRepository) AddParticipant(ctx context.Context, challengeID uuid.UUID, participation *model.UserChallenge) error {
	args := m.Called(ctx, challengeID, participation)
	return args.Error(0)
}

func (m *MockChallengeRepository) RemoveParticipant(ctx context.Context, challengeID uuid.UUID, telegramID int64) (*model.Challenge, error) {
	args := m.Called(ctx, challengeID, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Challenge), args.Error(1)
}

func (m *MockChallengeRepository) MarkChallengeCompleted(ctx context.Context, challengeID uuid.UUID, telegramID int64) (bool, error) {
	args := m.Called(ctx, challengeID, telegramID)
	return args.Bool(0), args.Error(1)
}

func (m *MockChallengeRepository) UpdateProgressBatch(ctx context.Context, updates []model.ProgressUpdate) error {
	args := m.Called(ctx, updates)
	return args.Error(0)
}

func (m *MockChallengeRepository) ListUsersWithActiveChallenges(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

type MockIntentRepository struct {
	mock.Mock
}

func (m *MockIntentRepository) CreateIntent(ctx context.Context, intent *model.SettlementIntent) error {
	args := m.Called(ctx, intent)
	return args.Error(0)
}

func (m *MockIntentRepository) CompleteIntent(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockIntentRepository) FailIntent(ctx context.Context, id uuid.UUID, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockIntentRepository) ListStuckIntents(ctx context.Context, olderThan time.Time) ([]*model.SettlementIntent, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SettlementIntent), args.Error(1)
}

type MockHealthRepository struct {
	mock.Mock
}

func (m *MockHealthRepository) UpsertHealthMetrics(ctx context.Context, metrics *model.HealthMetrics) error {
	args := m.Called(ctx, metrics)
	return args.Error(0)
}
