package mocks

import (
	"context"

	"fitstake_miniapp/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockProgressSource struct {
	mock.Mock
}

func (m *MockProgressSource) TodayMetrics(ctx context.Context, telegramID int64) (*model.HealthMetrics, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.HealthMetrics), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) InitWallet(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockLedger) CreateAccount(ctx context.Context, externalID string, initialStake int64) (string, error) {
	args := m.Called(ctx, externalID, initialStake)
	return args.String(0), args.Error(1)
}

func (m *MockLedger) AddStake(ctx context.Context, address string, amount int64) error {
	args := m.Called(ctx, address, amount)
	return args.Error(0)
}

func (m *MockLedger) Payout(ctx context.Context, address, recipient string, amount int64) error {
	args := m.Called(ctx, address, recipient, amount)
	return args.Error(0)
}

func (m *MockLedger) GetBalance(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, event model.Event) {
	m.Called(ctx, event)
}
