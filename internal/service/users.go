package service

import (
	"context"
	"errors"
	"fmt"

	"fitstake_miniapp/internal/model"
	"fitstake_miniapp/internal/repository"
	"fitstake_miniapp/pkg/ledger"
)

const DefaultLeaderboardLimit = 100

type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{
		repo: repo,
	}
}

func (s *UserService) RegisterUser(ctx context.Context, user *model.User) error {
	err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}

	return nil
}

func (s *UserService) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := s.repo.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by telegram ID: %w", err)
	}
	return user, nil
}

// UpdateWalletAddress stores the address rewards are paid out to.
func (s *UserService) UpdateWalletAddress(ctx context.Context, telegramID int64, address string) error {
	normalized, err := ledger.NormalizeRecipient(address)
	if err != nil {
		return validationError([]string{"wallet address is invalid"})
	}

	err = s.repo.UpdateWalletAddress(ctx, telegramID, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update wallet address: %w", err)
	}
	return nil
}

func (s *UserService) GetLeaderboard(ctx context.Context, limit int) ([]*model.User, error) {
	if limit <= 0 || limit > DefaultLeaderboardLimit {
		limit = DefaultLeaderboardLimit
	}

	users, err := s.repo.GetTopUsers(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}
	return users, nil
}
