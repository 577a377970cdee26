package service

import (
	"context"
	"errors"
	"testing"

	"fitstake_miniapp/internal/model"
	"fitstake_miniapp/internal/repository"
	"fitstake_miniapp/internal/service/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestUserService_GetUserByTelegramID(t *testing.T) {
	tests := []struct {
		name          string
		mockSetup     func(repo *mocks.MockUserRepository)
		expectedError error
	}{
		{
			name: "Found",
			mockSetup: func(repo *mocks.MockUserRepository) {
				repo.On("GetUserByTelegramID", mock.Anything, int64(1)).Return(&model.User{TelegramID: 1}, nil)
			},
		},
		{
			name: "Missing",
			mockSetup: func(repo *mocks.MockUserRepository) {
				repo.On("GetUserByTelegramID", mock.Anything, int64(1)).Return(nil, repository.ErrNotFound)
			},
			expectedError: ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockUserRepository{}
			tt.mockSetup(repo)

			user, err := NewUserService(repo).GetUserByTelegramID(context.Background(), 1)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.ErrorIs(t, err, ErrNotFound)
				assert.Nil(t, user)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, int64(1), user.TelegramID)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestUserService_UpdateWalletAddress(t *testing.T) {
	tests := []struct {
		name          string
		address       string
		stored        string
		repoErr       error
		expectedError error
	}{
		{
			name:    "Checksums hex address",
			address: "0x52908400098527886e0f7030069857d2e4169ee7",
			stored:  "0x52908400098527886E0F7030069857D2E4169EE7",
		},
		{
			name:    "Keeps non-hex recipient",
			address: " 7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU ",
			stored:  "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
		},
		{
			name:          "Rejects blank",
			address:       "  ",
			expectedError: ErrValidation,
		},
		{
			name:          "Unknown user",
			address:       "0x52908400098527886e0f7030069857d2e4169ee7",
			stored:        "0x52908400098527886E0F7030069857D2E4169EE7",
			repoErr:       repository.ErrNotFound,
			expectedError: ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockUserRepository{}
			if tt.stored != "" {
				repo.On("UpdateWalletAddress", mock.Anything, int64(1), tt.stored).Return(tt.repoErr)
			}

			err := NewUserService(repo).UpdateWalletAddress(context.Background(), 1, tt.address)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestUserService_GetLeaderboard(t *testing.T) {
	tests := []struct {
		name     string
		limit    int
		expected int
	}{
		{name: "Default", limit: 0, expected: DefaultLeaderboardLimit},
		{name: "Explicit", limit: 10, expected: 10},
		{name: "Capped", limit: 500, expected: DefaultLeaderboardLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockUserRepository{}
			repo.On("GetTopUsers", mock.Anything, tt.expected).Return([]*model.User{}, nil)

			_, err := NewUserService(repo).GetLeaderboard(context.Background(), tt.limit)
			assert.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}

	t.Run("Store failure", func(t *testing.T) {
		repo := &mocks.MockUserRepository{}
		repo.On("GetTopUsers", mock.Anything, DefaultLeaderboardLimit).Return(nil, errors.New("db down"))

		_, err := NewUserService(repo).GetLeaderboard(context.Background(), 0)
		assert.Error(t, err)
	})
}

func TestHealthService_RecordMetrics(t *testing.T) {
	tests := []struct {
		name          string
		metrics       model.HealthMetrics
		repoErr       error
		expectStore   bool
		expectedError error
	}{
		{
			name:        "Stores with today's date",
			metrics:     model.HealthMetrics{UserTelegramID: 1, Steps: 4200, ActiveMinutes: 12},
			expectStore: true,
		},
		{
			name:          "Rejects negative steps",
			metrics:       model.HealthMetrics{UserTelegramID: 1, Steps: -1},
			expectedError: ErrValidation,
		},
		{
			name:          "Store failure",
			metrics:       model.HealthMetrics{UserTelegramID: 1, Steps: 1},
			repoErr:       errors.New("db down"),
			expectStore:   true,
			expectedError: ErrExternalService,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockHealthRepository{}
			if tt.expectStore {
				repo.On("UpsertHealthMetrics", mock.Anything, mock.MatchedBy(func(m *model.HealthMetrics) bool {
					return m.Day.Equal(testNow) && m.UserTelegramID == 1
				})).Return(tt.repoErr)
			}

			metrics := tt.metrics
			err := NewHealthService(repo, &fakeClock{now: testNow}).RecordMetrics(context.Background(), &metrics)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			repo.AssertExpectations(t)
		})
	}
}
