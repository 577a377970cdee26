package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fitstake_miniapp/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// InitialTokenBalance is granted to every newly registered user.
const InitialTokenBalance = 100

type User struct {
	TelegramID       int64     `db:"telegram_id"`
	Handle           string    `db:"handle"`
	Username         string    `db:"username"`
	DisplayName      string    `db:"display_name"`
	TokenBalance     int64     `db:"token_balance"`
	WalletAddress    *string   `db:"wallet_address"`
	IsAdmin          bool      `db:"is_admin"`
	RegistrationDate time.Time `db:"registration_date"`
	AuthDate         time.Time `db:"last_auth_date"`
}

func (u *User) toModel() *model.User {
	return &model.User{
		TelegramID:       u.TelegramID,
		Handle:           u.Handle,
		Username:         u.Username,
		DisplayName:      u.DisplayName,
		TokenBalance:     u.TokenBalance,
		WalletAddress:    u.WalletAddress,
		IsAdmin:          u.IsAdmin,
		RegistrationDate: u.RegistrationDate,
		AuthDate:         u.AuthDate,
	}
}

var userColumns = []string{
	"telegram_id",
	"handle",
	"username",
	"display_name",
	"token_balance",
	"wallet_address",
	"is_admin",
	"registration_date",
	"last_auth_date",
}

func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	balance := user.TokenBalance
	if balance == 0 {
		balance = InitialTokenBalance
	}

	query, args, err := squirrel.
		Insert(usersTable).
		SetMap(map[string]interface{}{
			"telegram_id":       user.TelegramID,
			"handle":            user.Handle,
			"username":          user.Username,
			"display_name":      user.DisplayName,
			"token_balance":     balance,
			"wallet_address":    user.WalletAddress,
			"registration_date": user.RegistrationDate,
			"last_auth_date":    user.AuthDate,
		}).
		Suffix("ON CONFLICT (telegram_id) DO UPDATE SET last_auth_date = EXCLUDED.last_auth_date").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build user insert query: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.TokenBalance = balance
	return nil
}

func (r *Repository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	return r.getUser(ctx, r.db, telegramID)
}

func (r *Repository) getUser(ctx context.Context, q sqlx.QueryerContext, telegramID int64) (*model.User, error) {
	var user User
	query, args, err := squirrel.
		Select(userColumns...).
		From(usersTable).
		Where(squirrel.Eq{"telegram_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = sqlx.GetContext(ctx, q, &user, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return user.toModel(), nil
}

// AdjustTokenBalance adds delta to the user's balance. A debit that would
// take the balance below zero fails with ErrInsufficientBalance.
func (r *Repository) AdjustTokenBalance(ctx context.Context, telegramID int64, delta int64) (int64, error) {
	var balance int64
	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		balance, err = r.adjustTokenBalanceWithTx(ctx, tx, telegramID, delta)
		return err
	})
	if err != nil {
		return 0, err
	}

	return balance, nil
}

func (r *Repository) adjustTokenBalanceWithTx(ctx context.Context, tx *sqlx.Tx, telegramID int64, delta int64) (int64, error) {
	if _, err := r.getUser(ctx, tx, telegramID); err != nil {
		return 0, err
	}

	query, args, err := squirrel.
		Update(usersTable).
		Set("token_balance", squirrel.Expr("token_balance + ?", delta)).
		Where(squirrel.Eq{"telegram_id": telegramID}).
		Where(squirrel.Expr("token_balance + ? >= 0", delta)).
		Suffix("RETURNING token_balance").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, err
	}

	var balance int64
	err = tx.GetContext(ctx, &balance, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrInsufficientBalance
		}
		return 0, err
	}

	return balance, nil
}

func (r *Repository) UpdateWalletAddress(ctx context.Context, telegramID int64, address string) error {
	query, args, err := squirrel.
		Update(usersTable).
		Set("wallet_address", address).
		Where(squirrel.Eq{"telegram_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Repository) GetTopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	var users []User

	query, args, err := squirrel.
		Select("telegram_id", "handle", "username", "display_name", "token_balance").
		From(usersTable).
		OrderBy("token_balance DESC", "telegram_id").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.SelectContext(ctx, &users, query, args...)
	if err != nil {
		return nil, err
	}

	userList := make([]*model.User, len(users))
	for i, user := range users {
		userList[i] = &model.User{
			TelegramID:   user.TelegramID,
			Handle:       user.Handle,
			Username:     user.Username,
			DisplayName:  user.DisplayName,
			TokenBalance: user.TokenBalance,
		}
	}

	return userList, nil
}
