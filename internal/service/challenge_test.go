package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fitstake_miniapp/internal/model"
	"fitstake_miniapp/internal/repository"
	"fitstake_miniapp/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestChallengeService_JoinChallenge(t *testing.T) {
	challengeID := uuid.New()
	address := "acct-join"

	baseChallenge := func() *model.Challenge {
		return &model.Challenge{
			ID:            challengeID,
			Title:         "Morning walk",
			Type:          model.ChallengeTypeSteps,
			Goal:          5000,
			Stake:         10,
			StartDate:     testNow.Add(-time.Hour),
			EndDate:       testNow.Add(48 * time.Hour),
			CreatedBy:     1,
			Participants:  []int64{1},
			Status:        model.ChallengeStatusActive,
			Visibility:    model.VisibilityPublic,
			PrizePool:     10,
			LedgerAddress: &address,
		}
	}

	tests := []struct {
		name          string
		telegramID    int64
		mockSetup     func(challenges *mocks.MockChallengeRepository, users *mocks.MockUserRepository, intents *mocks.MockIntentRepository, ledger *mocks.MockLedger)
		expectedError error
	}{
		{
			name:       "Unknown user",
			telegramID: 2,
			mockSetup: func(challenges *mocks.MockChallengeRepository, users *mocks.MockUserRepository, intents *mocks.MockIntentRepository, ledger *mocks.MockLedger) {
				users.On("GetUserByTelegramID", mock.Anything, int64(2)).Return(nil, repository.ErrNotFound)
			},
			expectedError: ErrUnauthenticated,
		},
		{
			name:       "Challenge not found",
			telegramID: 2,
			mockSetup: func(challenges *mocks.MockChallengeRepository, users *mocks.MockUserRepository, intents *mocks.MockIntentRepository, ledger *mocks.MockLedger) {
				users.On("GetUserByTelegramID", mock.Anything, int64(2)).Return(&model.User{TelegramID: 2, TokenBalance: 50}, nil)
				challenges.On("GetChallenge", mock.Anything, challengeID).Return(nil, nil)
			},
			expectedError: ErrNotFound,
		},
		{
			name:       "Already a participant",
			telegramID: 1,
			mockSetup: func(challenges *mocks.MockChallengeRepository, users *mocks.MockUserRepository, intents *mocks.MockIntentRepository, ledger *mocks.MockLedger) {
				users.On("GetUserByTelegramID", mock.Anything, int64(1)).Return(&model.User{TelegramID: 1, TokenBalance: 50}, nil)
				challenges.On("GetChallenge", mock.Anything, challengeID).Return(baseChallenge(), nil)
			},
			expectedError: ErrConflict,
		},
		{
			name:       "Completed challenge",
			telegramID: 2,
			mockSetup: func(challenges *mocks.MockChallengeRepository, users *mocks.MockUserRepository, intents *mocks.MockIntentRepository, ledger *mocks.MockLedger) {
				c := baseChallenge()
				c.Status = model.ChallengeStatusCompleted
				users.On("GetUserByTelegramID", mock.Anything, int64(2)).Return(&model.User{TelegramID: 2, TokenBalance: 50}, nil)
				challenges.On("GetChallenge", mock.Anything, challengeID).Return(c, nil)
			},
			expectedError: ErrConflict,
		},
		{
			name:       "Late join disallowed",
			telegramID: 2,
			mockSetup: func(challenges *mocks.MockChallengeRepository, users *mocks.MockUserRepository, intents *mocks.MockIntentRepository, ledger *mocks.MockLedger) {
				c := baseChallenge()
				c.Rules.DisallowLateJoin = true
				users.On("GetUserByTelegramID", mock.Anything, int64(2)).Return(&model.User{TelegramID: 2, TokenBalance: 50}, nil)
				challenges.On("GetChallenge", mock.Anything, challengeID).Return(c, nil)
			},
			expectedError: ErrConflict,
		},
		{
			name:       "Challenge full",
			telegramID: 2,
			mockSetup: func(challenges *mocks.MockChallengeRepository, users *mocks.MockUserRepository, intents *mocks.MockIntentRepository, ledger *mocks.MockLedger) {
				c := baseChallenge()
				c.Rules.MaxParticipants = 1
				users.On("GetUserByTelegramID", mock.Anything, int64(2)).Return(&model.User{TelegramID: 2, TokenBalance: 50}, nil)
				challenges.On("GetChallenge", mock.Anything, challengeID).Return(c, nil)
			},
			expectedError: ErrConflict,
		},
		{
			name:       "Insufficient balance",
			telegramID: 2,
			mockSetup: func(challenges *mocks.MockChallengeRepository, users *mocks.MockUserRepository, intents *mocks.MockIntentRepository, ledger *mocks.MockLedger) {
				users.On("GetUserByTelegramID", mock.Anything, int64(2)).Return(&model.User{TelegramID: 2, TokenBalance: 9}, nil)
				challenges.On("GetChallenge", mock.Anything, challengeID).Return(baseChallenge(), nil)
			},
			expectedError: ErrInsufficientFunds,
		},
		{
			name:       "Ledger stake fails before store changes",
			telegramID: 2,
			mockSetup: func(challenges *mocks.MockChallengeRepository, users *mocks.MockUserRepository, intents *mocks.MockIntentRepository, ledger *mocks.MockLedger) {
				users.On("GetUserByTelegramID", mock.Anything, int64(2)).Return(&model.User{TelegramID: 2, TokenBalance: 50}, nil)
				challenges.On("GetChallenge", mock.Anything, challengeID).Return(baseChallenge(), nil)
				ledger.On("InitWallet", mock.Anything).Return(nil)
				intents.On("CreateIntent", mock.Anything, mock.MatchedBy(func(i *model.SettlementIntent) bool {
					return i.Kind == model.IntentStake && i.Amount == 10 && i.UserTelegramID == 2
				})).Return(nil)
				ledger.On("AddStake", mock.Anything, address, int64(10)).Return(errors.New("insufficient lamports"))
				intents.On("FailIntent", mock.Anything, mock.Anything, "insufficient lamports").Return(nil)
			},
			expectedError: ErrExternalService,
		},
		{
			name:       "Store rejects concurrent duplicate",
			telegramID: 2,
			mockSetup: func(challenges *mocks.MockChallengeRepository, users *mocks.MockUserRepository, intents *mocks.MockIntentRepository, ledger *mocks.MockLedger) {
				c := baseChallenge()
				c.LedgerAddress = nil
				users.On("GetUserByTelegramID", mock.Anything, int64(2)).Return(&model.User{TelegramID: 2, TokenBalance: 50}, nil)
				challenges.On("GetChallenge", mock.Anything, challengeID).Return(c, nil)
				ledger.On("InitWallet", mock.Anything).Return(nil)
				challenges.On("AddParticipant", mock.Anything, challengeID, mock.Anything).Return(repository.ErrAlreadyParticipant)
			},
			expectedError: ErrConflict,
		},
		{
			name:       "Successful join",
			telegramID: 2,
			mockSetup: func(challenges *mocks.MockChallengeRepository, users *mocks.MockUserRepository, intents *mocks.MockIntentRepository, ledger *mocks.MockLedger) {
				users.On("GetUserByTelegramID", mock.Anything, int64(2)).Return(&model.User{TelegramID: 2, DisplayName: "Bo", TokenBalance: 50}, nil)
				challenges.On("GetChallenge", mock.Anything, challengeID).Return(baseChallenge(), nil)
				ledger.On("InitWallet", mock.Anything).Return(nil)
				intents.On("CreateIntent", mock.Anything, mock.Anything).Return(nil)
				ledger.On("AddStake", mock.Anything, address, int64(10)).Return(nil)
				intents.On("CompleteIntent", mock.Anything, mock.Anything).Return(nil)
				challenges.On("AddParticipant", mock.Anything, challengeID, mock.MatchedBy(func(uc *model.UserChallenge) bool {
					return uc.UserID == 2 && uc.DisplayName == "Bo" && uc.Stake == 10 && uc.Status == model.ChallengeStatusActive
				})).Return(nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			challenges := &mocks.MockChallengeRepository{}
			users := &mocks.MockUserRepository{}
			intents := &mocks.MockIntentRepository{}
			ledger := &mocks.MockLedger{}
			tt.mockSetup(challenges, users, intents, ledger)

			svc := NewChallengeService(ChallengeDeps{
				Challenges: challenges,
				Users:      users,
				Intents:    intents,
				Ledger:     ledger,
				Clock:      &fakeClock{now: testNow},
			})

			err := svc.JoinChallenge(context.Background(), tt.telegramID, challengeID)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			challenges.AssertExpectations(t)
			users.AssertExpectations(t)
			intents.AssertExpectations(t)
			ledger.AssertExpectations(t)
			users.AssertNotCalled(t, "AdjustTokenBalance", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestChallengeService_CreateChallenge_Validation(t *testing.T) {
	tests := []struct {
		name       string
		modify     func(p *model.CreateChallengeParams)
		violations []string
	}{
		{
			name:       "End before start",
			modify:     func(p *model.CreateChallengeParams) { p.EndDate = p.StartDate.Add(-time.Minute) },
			violations: []string{"end date must be after start date", "end date must be in the future"},
		},
		{
			name:       "Non-positive stake and goal",
			modify:     func(p *model.CreateChallengeParams) { p.Stake = 0; p.Goal = -1 },
			violations: []string{"stake must be greater than 0", "goal must be greater than 0"},
		},
		{
			name:       "Blank text",
			modify:     func(p *model.CreateChallengeParams) { p.Title = "  "; p.Description = "" },
			violations: []string{"title is required", "description is required"},
		},
		{
			name:       "Unknown type",
			modify:     func(p *model.CreateChallengeParams) { p.Type = "swimming" },
			violations: []string{"unknown challenge type swimming"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewChallengeService(ChallengeDeps{Clock: &fakeClock{now: testNow}})

			params := validParams()
			tt.modify(&params)

			_, err := svc.CreateChallenge(context.Background(), 1, params)

			var serviceErr *Error
			if assert.ErrorAs(t, err, &serviceErr) {
				assert.ErrorIs(t, err, ErrValidation)
				assert.Equal(t, tt.violations, serviceErr.Violations)
			}
		})
	}
}

func TestChallengeService_GetPublicChallenges_Limit(t *testing.T) {
	tests := []struct {
		name     string
		limit    int
		expected int
	}{
		{name: "Default", limit: 0, expected: DefaultPublicLimit},
		{name: "Explicit", limit: 25, expected: 25},
		{name: "Capped", limit: 1000, expected: MaxPublicLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockChallengeRepository{}
			repo.On("ListPublicChallenges", mock.Anything, tt.expected).Return([]*model.Challenge{}, nil)
			svc := NewChallengeService(ChallengeDeps{Challenges: repo})

			_, err := svc.GetPublicChallenges(context.Background(), tt.limit)
			assert.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}
}

func TestChallengeService_LeaveChallenge_Errors(t *testing.T) {
	challengeID := uuid.New()

	tests := []struct {
		name          string
		repoErr       error
		expectedError error
	}{
		{name: "Not a participant", repoErr: repository.ErrNotParticipant, expectedError: ErrConflict},
		{name: "Completed challenge", repoErr: repository.ErrChallengeNotActive, expectedError: ErrConflict},
		{name: "Missing challenge", repoErr: repository.ErrNotFound, expectedError: ErrNotFound},
		{name: "Store failure", repoErr: errors.New("connection reset"), expectedError: ErrExternalService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			challenges := &mocks.MockChallengeRepository{}
			users := &mocks.MockUserRepository{}
			users.On("GetUserByTelegramID", mock.Anything, int64(2)).Return(&model.User{TelegramID: 2}, nil)
			challenges.On("RemoveParticipant", mock.Anything, challengeID, int64(2)).Return(nil, tt.repoErr)

			svc := NewChallengeService(ChallengeDeps{Challenges: challenges, Users: users})

			err := svc.LeaveChallenge(context.Background(), 2, challengeID)
			assert.ErrorIs(t, err, tt.expectedError)
		})
	}
}

func TestChallengeService_NotifiesOnLeave(t *testing.T) {
	challengeID := uuid.New()
	challenges := &mocks.MockChallengeRepository{}
	users := &mocks.MockUserRepository{}
	notifier := &mocks.MockNotifier{}

	users.On("GetUserByTelegramID", mock.Anything, int64(2)).Return(&model.User{TelegramID: 2}, nil)
	challenges.On("RemoveParticipant", mock.Anything, challengeID, int64(2)).
		Return(&model.Challenge{ID: challengeID, Title: "Walk", Stake: 10, Participants: []int64{1}}, nil)
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(e model.Event) bool {
		return e.Type == model.EventChallengeLeft &&
			e.ChallengeID == challengeID &&
			e.Amount == 10 &&
			assert.ObjectsAreEqual([]int64{2, 1}, e.Recipients)
	})).Return()

	svc := NewChallengeService(ChallengeDeps{
		Challenges: challenges,
		Users:      users,
		Notifier:   notifier,
		Clock:      &fakeClock{now: testNow},
	})

	assert.NoError(t, svc.LeaveChallenge(context.Background(), 2, challengeID))
	notifier.AssertExpectations(t)
}

func TestChallengeService_GetJoinedChallenges(t *testing.T) {
	tests := []struct {
		name          string
		status        model.ChallengeStatus
		mockSetup     func(challenges *mocks.MockChallengeRepository)
		expectedLen   int
		expectedError error
	}{
		{
			name:   "Empty status means active",
			status: "",
			mockSetup: func(challenges *mocks.MockChallengeRepository) {
				challenges.On("ListChallengesByParticipant", mock.Anything, int64(1), model.ChallengeStatusActive).
					Return([]*model.Challenge{{ID: uuid.New()}}, nil)
			},
			expectedLen: 1,
		},
		{
			name:   "Completed",
			status: model.ChallengeStatusCompleted,
			mockSetup: func(challenges *mocks.MockChallengeRepository) {
				challenges.On("ListChallengesByParticipant", mock.Anything, int64(1), model.ChallengeStatusCompleted).
					Return([]*model.Challenge{{ID: uuid.New()}, {ID: uuid.New()}}, nil)
			},
			expectedLen: 2,
		},
		{
			name:          "Unknown status",
			status:        "archived",
			mockSetup:     func(challenges *mocks.MockChallengeRepository) {},
			expectedError: ErrValidation,
		},
		{
			name:   "Store failure",
			status: model.ChallengeStatusActive,
			mockSetup: func(challenges *mocks.MockChallengeRepository) {
				challenges.On("ListChallengesByParticipant", mock.Anything, int64(1), model.ChallengeStatusActive).
					Return(nil, errors.New("db down"))
			},
			expectedError: ErrExternalService,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			challenges := &mocks.MockChallengeRepository{}
			tt.mockSetup(challenges)
			svc := NewChallengeService(ChallengeDeps{Challenges: challenges})

			list, err := svc.GetJoinedChallenges(context.Background(), 1, tt.status)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				require.NoError(t, err)
				assert.Len(t, list, tt.expectedLen)
			}
			challenges.AssertExpectations(t)
		})
	}
}
