package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fitstake_miniapp/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type UserChallenge struct {
	ChallengeID uuid.UUID  `db:"challenge_id"`
	UserID      int64      `db:"user_id"`
	DisplayName string     `db:"display_name"`
	Title       string     `db:"title"`
	Type        string     `db:"type"`
	Goal        float64    `db:"goal"`
	Stake       int64      `db:"stake"`
	StartDate   time.Time  `db:"start_date"`
	EndDate     time.Time  `db:"end_date"`
	Progress    float64    `db:"progress"`
	Status      string     `db:"status"`
	JoinedAt    time.Time  `db:"joined_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

var userChallengeColumns = []string{
	"challenge_id",
	"user_id",
	"display_name",
	"title",
	"type",
	"goal",
	"stake",
	"start_date",
	"end_date",
	"progress",
	"status",
	"joined_at",
	"updated_at",
	"completed_at",
}

func (uc *UserChallenge) toModel() *model.UserChallenge {
	return &model.UserChallenge{
		ChallengeID: uc.ChallengeID,
		UserID:      uc.UserID,
		DisplayName: uc.DisplayName,
		Title:       uc.Title,
		Type:        model.ChallengeType(uc.Type),
		Goal:        uc.Goal,
		Stake:       uc.Stake,
		StartDate:   uc.StartDate,
		EndDate:     uc.EndDate,
		Progress:    uc.Progress,
		Status:      model.ChallengeStatus(uc.Status),
		JoinedAt:    uc.JoinedAt,
		UpdatedAt:   uc.UpdatedAt,
		CompletedAt: uc.CompletedAt,
	}
}

func (r *Repository) insertUserChallengeWithTx(ctx context.Context, tx *sqlx.Tx, uc *model.UserChallenge) error {
	query, args, err := squirrel.
		Insert(userChallengesTable).
		SetMap(map[string]interface{}{
			"challenge_id": uc.ChallengeID,
			"user_id":      uc.UserID,
			"display_name": uc.DisplayName,
			"title":        uc.Title,
			"type":         string(uc.Type),
			"goal":         uc.Goal,
			"stake":        uc.Stake,
			"start_date":   uc.StartDate,
			"end_date":     uc.EndDate,
			"progress":     uc.Progress,
			"status":       string(uc.Status),
			"joined_at":    uc.JoinedAt,
			"updated_at":   uc.UpdatedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build user challenge insert query: %w", err)
	}

	_, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert user challenge: %w", err)
	}

	return nil
}

func (r *Repository) deleteUserChallengeWithTx(ctx context.Context, tx *sqlx.Tx, challengeID uuid.UUID, telegramID int64) error {
	query, args, err := squirrel.
		Delete(userChallengesTable).
		Where(squirrel.Eq{"challenge_id": challengeID, "user_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete user challenge: %w", err)
	}

	return nil
}

// GetUserChallenge returns nil without an error when the user has no
// participation record for the challenge.
func (r *Repository) GetUserChallenge(ctx context.Context, challengeID uuid.UUID, telegramID int64) (*model.UserChallenge, error) {
	uc, err := r.getUserChallenge(ctx, r.db, challengeID, telegramID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return uc, nil
}

func (r *Repository) getUserChallenge(ctx context.Context, q sqlx.QueryerContext, challengeID uuid.UUID, telegramID int64) (*model.UserChallenge, error) {
	query, args, err := squirrel.
		Select(userChallengeColumns...).
		From(userChallengesTable).
		Where(squirrel.Eq{"challenge_id": challengeID, "user_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row UserChallenge
	err = sqlx.GetContext(ctx, q, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user challenge: %w", err)
	}

	return row.toModel(), nil
}

// ListUserChallenges lists the user's participations, optionally
// restricted to one status.
func (r *Repository) ListUserChallenges(ctx context.Context, telegramID int64, status *model.ChallengeStatus) ([]*model.UserChallenge, error) {
	builder := squirrel.
		Select(userChallengeColumns...).
		From(userChallengesTable).
		Where(squirrel.Eq{"user_id": telegramID}).
		OrderBy("joined_at")
	if status != nil {
		builder = builder.Where(squirrel.Eq{"status": string(*status)})
	}

	query, args, err := builder.PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	var rows []UserChallenge
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list user challenges: %w", err)
	}

	list := make([]*model.UserChallenge, len(rows))
	for i := range rows {
		list[i] = rows[i].toModel()
	}

	return list, nil
}

// UpdateProgressBatch writes every progress value or none of them.
func (r *Repository) UpdateProgressBatch(ctx context.Context, updates []model.ProgressUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		now := r.now()
		for _, u := range updates {
			query, args, err := squirrel.
				Update(userChallengesTable).
				Set("progress", u.Progress).
				Set("updated_at", now).
				Where(squirrel.Eq{
					"challenge_id": u.ChallengeID,
					"user_id":      u.UserID,
					"status":       string(model.ChallengeStatusActive),
				}).
				PlaceholderFormat(squirrel.Dollar).
				ToSql()
			if err != nil {
				return err
			}

			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to update progress for challenge %s: %w", u.ChallengeID, err)
			}
		}
		return nil
	})
}

func (r *Repository) ListUsersWithActiveChallenges(ctx context.Context) ([]int64, error) {
	query, args, err := squirrel.
		Select("DISTINCT user_id").
		From(userChallengesTable).
		Where(squirrel.Eq{"status": string(model.ChallengeStatusActive)}).
		OrderBy("user_id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var ids []int64
	err = r.db.SelectContext(ctx, &ids, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users with active challenges: %w", err)
	}

	return ids, nil
}
