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
)

type SettlementIntent struct {
	ID             uuid.UUID `db:"id"`
	Key            string    `db:"key"`
	Kind           string    `db:"kind"`
	ChallengeID    uuid.UUID `db:"challenge_id"`
	UserTelegramID int64     `db:"user_telegram_id"`
	Amount         int64     `db:"amount"`
	Status         string    `db:"status"`
	Attempts       int       `db:"attempts"`
	LastError      *string   `db:"last_error"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// CreateIntent records a pending ledger mutation. A key that already
// belongs to a pending or completed intent yields ErrIntentExists; a
// failed one is reopened with its attempt counter bumped.
func (r *Repository) CreateIntent(ctx context.Context, intent *model.SettlementIntent) error {
	now := r.now()
	id := uuid.New()

	query, args, err := squirrel.
		Insert(intentsTable).
		SetMap(map[string]interface{}{
			"id":               id,
			"key":              intent.Key,
			"kind":             string(intent.Kind),
			"challenge_id":     intent.ChallengeID,
			"user_telegram_id": intent.UserTelegramID,
			"amount":           intent.Amount,
			"status":           string(model.IntentPending),
			"attempts":         1,
			"created_at":       now,
			"updated_at":       now,
		}).
		Suffix("ON CONFLICT (key) DO UPDATE SET status = EXCLUDED.status, user_telegram_id = EXCLUDED.user_telegram_id, " +
			"attempts = " + intentsTable + ".attempts + 1, last_error = NULL, updated_at = EXCLUDED.updated_at " +
			"WHERE " + intentsTable + ".status = 'failed' RETURNING id, attempts").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build intent insert query: %w", err)
	}

	var created struct {
		ID       uuid.UUID `db:"id"`
		Attempts int       `db:"attempts"`
	}
	err = r.db.GetContext(ctx, &created, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrIntentExists
		}
		return fmt.Errorf("failed to insert intent: %w", err)
	}

	intent.ID = created.ID
	intent.Attempts = created.Attempts
	intent.Status = model.IntentPending
	intent.CreatedAt = now
	intent.UpdatedAt = now
	return nil
}

func (r *Repository) CompleteIntent(ctx context.Context, id uuid.UUID) error {
	return r.setIntentStatus(ctx, id, model.IntentCompleted, nil)
}

func (r *Repository) FailIntent(ctx context.Context, id uuid.UUID, reason string) error {
	return r.setIntentStatus(ctx, id, model.IntentFailed, &reason)
}

func (r *Repository) setIntentStatus(ctx context.Context, id uuid.UUID, status model.IntentStatus, reason *string) error {
	query, args, err := squirrel.
		Update(intentsTable).
		Set("status", string(status)).
		Set("last_error", reason).
		Set("updated_at", r.now()).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update intent: %w", err)
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

// ListStuckIntents returns intents still pending since before olderThan.
func (r *Repository) ListStuckIntents(ctx context.Context, olderThan time.Time) ([]*model.SettlementIntent, error) {
	query, args, err := squirrel.
		Select("id", "key", "kind", "challenge_id", "user_telegram_id", "amount",
			"status", "attempts", "last_error", "created_at", "updated_at").
		From(intentsTable).
		Where(squirrel.Eq{"status": string(model.IntentPending)}).
		Where(squirrel.Lt{"updated_at": olderThan}).
		OrderBy("updated_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []SettlementIntent
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck intents: %w", err)
	}

	intents := make([]*model.SettlementIntent, len(rows))
	for i, row := range rows {
		intents[i] = &model.SettlementIntent{
			ID:             row.ID,
			Key:            row.Key,
			Kind:           model.IntentKind(row.Kind),
			ChallengeID:    row.ChallengeID,
			UserTelegramID: row.UserTelegramID,
			Amount:         row.Amount,
			Status:         model.IntentStatus(row.Status),
			Attempts:       row.Attempts,
			LastError:      row.LastError,
			CreatedAt:      row.CreatedAt,
			UpdatedAt:      row.UpdatedAt,
		}
	}

	return intents, nil
}
