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
	"github.com/lib/pq"
)

type Challenge struct {
	ID              uuid.UUID     `db:"id"`
	Title           string        `db:"title"`
	Description     string        `db:"description"`
	Type            string        `db:"type"`
	Goal            float64       `db:"goal"`
	Stake           int64         `db:"stake"`
	StartDate       time.Time     `db:"start_date"`
	EndDate         time.Time     `db:"end_date"`
	CreatedBy       int64         `db:"created_by"`
	Participants    pq.Int64Array `db:"participants"`
	Status          string        `db:"status"`
	Visibility      string        `db:"visibility"`
	GroupID         *uuid.UUID    `db:"group_id"`
	PrizePool       int64         `db:"prize_pool"`
	LedgerAddress   *string       `db:"ledger_address"`
	MaxParticipants int           `db:"max_participants"`
	AllowLateJoin   bool          `db:"allow_late_join"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

var challengeColumns = []string{
	"id",
	"title",
	"description",
	"type",
	"goal",
	"stake",
	"start_date",
	"end_date",
	"created_by",
	"participants",
	"status",
	"visibility",
	"group_id",
	"prize_pool",
	"ledger_address",
	"max_participants",
	"allow_late_join",
	"created_at",
	"updated_at",
}

func (c *Challenge) toModel() *model.Challenge {
	participants := make([]int64, len(c.Participants))
	copy(participants, c.Participants)

	return &model.Challenge{
		ID:            c.ID,
		Title:         c.Title,
		Description:   c.Description,
		Type:          model.ChallengeType(c.Type),
		Goal:          c.Goal,
		Stake:         c.Stake,
		StartDate:     c.StartDate,
		EndDate:       c.EndDate,
		CreatedBy:     c.CreatedBy,
		Participants:  participants,
		Status:        model.ChallengeStatus(c.Status),
		Visibility:    model.Visibility(c.Visibility),
		GroupID:       c.GroupID,
		PrizePool:     c.PrizePool,
		LedgerAddress: c.LedgerAddress,
		Rules: model.ChallengeRules{
			MaxParticipants:  c.MaxParticipants,
			DisallowLateJoin: !c.AllowLateJoin,
		},
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toModelChallenges(rows []Challenge) []*model.Challenge {
	challenges := make([]*model.Challenge, len(rows))
	for i := range rows {
		challenges[i] = rows[i].toModel()
	}
	return challenges
}

// CreateChallenge stores the challenge together with its creator's
// participation record and returns the assigned id. When a creator record
// is given, the stake is debited from the creator in the same transaction.
func (r *Repository) CreateChallenge(ctx context.Context, challenge *model.Challenge, creator *model.UserChallenge) (uuid.UUID, error) {
	id := uuid.New()
	now := r.now()

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Insert(challengesTable).
			SetMap(map[string]interface{}{
				"id":               id,
				"title":            challenge.Title,
				"description":      challenge.Description,
				"type":             string(challenge.Type),
				"goal":             challenge.Goal,
				"stake":            challenge.Stake,
				"start_date":       challenge.StartDate,
				"end_date":         challenge.EndDate,
				"created_by":       challenge.CreatedBy,
				"participants":     pq.Int64Array(challenge.Participants),
				"status":           string(challenge.Status),
				"visibility":       string(challenge.Visibility),
				"group_id":         challenge.GroupID,
				"prize_pool":       challenge.PrizePool,
				"max_participants": challenge.Rules.MaxParticipants,
				"allow_late_join":  !challenge.Rules.DisallowLateJoin,
				"created_at":       now,
				"updated_at":       now,
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build challenge insert query: %w", err)
		}

		_, err = tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to insert challenge: %w", err)
		}

		if creator != nil {
			creator.ChallengeID = id
			if err := r.insertUserChallengeWithTx(ctx, tx, creator); err != nil {
				return err
			}
			if _, err := r.adjustTokenBalanceWithTx(ctx, tx, creator.UserID, -challenge.Stake); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	challenge.ID = id
	challenge.CreatedAt = now
	challenge.UpdatedAt = now
	return id, nil
}

// GetChallenge returns nil without an error when the challenge does not exist.
func (r *Repository) GetChallenge(ctx context.Context, id uuid.UUID) (*model.Challenge, error) {
	row, err := r.getChallenge(ctx, r.db, id, false)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return row.toModel(), nil
}

func (r *Repository) getChallenge(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID, forUpdate bool) (*Challenge, error) {
	builder := squirrel.
		Select(challengeColumns...).
		From(challengesTable).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var row Challenge
	err = sqlx.GetContext(ctx, q, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	return &row, nil
}

// UpdateChallenge merges the non-nil fields of update and stamps
// updated_at. Title, goal and end date are copied onto the active
// participation records in the same transaction; a goal change rescales
// their stored progress so it keeps measuring the same amount of activity.
func (r *Repository) UpdateChallenge(ctx context.Context, id uuid.UUID, update model.ChallengeUpdate) error {
	now := r.now()

	fields := map[string]interface{}{
		"updated_at": now,
	}
	if update.Title != nil {
		fields["title"] = *update.Title
	}
	if update.Description != nil {
		fields["description"] = *update.Description
	}
	if update.Goal != nil {
		fields["goal"] = *update.Goal
	}
	if update.EndDate != nil {
		fields["end_date"] = *update.EndDate
	}
	if update.Visibility != nil {
		fields["visibility"] = string(*update.Visibility)
	}
	if update.Rules != nil {
		fields["max_participants"] = update.Rules.MaxParticipants
		fields["allow_late_join"] = !update.Rules.DisallowLateJoin
	}

	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := r.updateChallengeFields(ctx, tx, id, fields); err != nil {
			return err
		}

		participation := map[string]interface{}{}
		if update.Title != nil {
			participation["title"] = *update.Title
		}
		if update.Goal != nil {
			participation["progress"] = squirrel.Expr("LEAST(100, progress * goal / ?)", *update.Goal)
			participation["goal"] = *update.Goal
		}
		if update.EndDate != nil {
			participation["end_date"] = *update.EndDate
		}
		if len(participation) == 0 {
			return nil
		}
		participation["updated_at"] = now

		query, args, err := squirrel.
			Update(userChallengesTable).
			SetMap(participation).
			Where(squirrel.Eq{
				"challenge_id": id,
				"status":       string(model.ChallengeStatusActive),
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build participation sync query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to sync participations: %w", err)
		}

		return nil
	})
}

func (r *Repository) SetLedgerAddress(ctx context.Context, id uuid.UUID, address string) error {
	return r.updateChallengeFields(ctx, r.db, id, map[string]interface{}{
		"ledger_address": address,
		"updated_at":     r.now(),
	})
}

func (r *Repository) updateChallengeFields(ctx context.Context, e sqlx.ExecerContext, id uuid.UUID, fields map[string]interface{}) error {
	query, args, err := squirrel.
		Update(challengesTable).
		SetMap(fields).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build challenge update query: %w", err)
	}

	result, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update challenge: %w", err)
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

func (r *Repository) ListChallengesByParticipant(ctx context.Context, telegramID int64, status model.ChallengeStatus) ([]*model.Challenge, error) {
	return r.selectChallenges(ctx, squirrel.
		Select(challengeColumns...).
		From(challengesTable).
		Where(squirrel.Eq{"status": string(status)}).
		Where(squirrel.Expr("? = ANY(participants)", telegramID)).
		OrderBy("created_at DESC"))
}

func (r *Repository) ListPublicChallenges(ctx context.Context, limit int) ([]*model.Challenge, error) {
	return r.selectChallenges(ctx, squirrel.
		Select(challengeColumns...).
		From(challengesTable).
		Where(squirrel.Eq{
			"visibility": string(model.VisibilityPublic),
			"status":     string(model.ChallengeStatusActive),
		}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)))
}

// ListAvailableChallenges returns public active challenges that end after now.
func (r *Repository) ListAvailableChallenges(ctx context.Context, now time.Time) ([]*model.Challenge, error) {
	return r.selectChallenges(ctx, squirrel.
		Select(challengeColumns...).
		From(challengesTable).
		Where(squirrel.Eq{
			"visibility": string(model.VisibilityPublic),
			"status":     string(model.ChallengeStatusActive),
		}).
		Where(squirrel.Gt{"end_date": now}).
		OrderBy("created_at DESC"))
}

func (r *Repository) selectChallenges(ctx context.Context, builder squirrel.SelectBuilder) ([]*model.Challenge, error) {
	query, args, err := builder.PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build challenges query: %w", err)
	}

	var rows []Challenge
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}

	return toModelChallenges(rows), nil
}

// AddParticipant appends the user to the challenge, grows the prize pool
// by the stake, stores the participation record and debits the stake from
// the user in one transaction.
func (r *Repository) AddParticipant(ctx context.Context, challengeID uuid.UUID, participation *model.UserChallenge) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		row, err := r.getChallenge(ctx, tx, challengeID, true)
		if err != nil {
			return err
		}

		challenge := row.toModel()
		if challenge.Status != model.ChallengeStatusActive {
			return ErrChallengeNotActive
		}
		if challenge.HasParticipant(participation.UserID) {
			return ErrAlreadyParticipant
		}
		if max := challenge.Rules.MaxParticipants; max > 0 && len(challenge.Participants) >= max {
			return ErrChallengeFull
		}

		query, args, err := squirrel.
			Update(challengesTable).
			Set("participants", squirrel.Expr("array_append(participants, ?::bigint)", participation.UserID)).
			Set("prize_pool", squirrel.Expr("prize_pool + ?", challenge.Stake)).
			Set("updated_at", r.now()).
			Where(squirrel.Eq{"id": challengeID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build participant update query: %w", err)
		}

		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to add participant: %w", err)
		}

		participation.ChallengeID = challengeID
		if err := r.insertUserChallengeWithTx(ctx, tx, participation); err != nil {
			return err
		}

		_, err = r.adjustTokenBalanceWithTx(ctx, tx, participation.UserID, -challenge.Stake)
		return err
	})
}

// RemoveParticipant undoes a join: the caller's own participation record
// must exist and the challenge must still be active. The stake is credited
// back to the user's token balance inside the same transaction.
func (r *Repository) RemoveParticipant(ctx context.Context, challengeID uuid.UUID, telegramID int64) (*model.Challenge, error) {
	var updated *model.Challenge

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		row, err := r.getChallenge(ctx, tx, challengeID, true)
		if err != nil {
			return err
		}

		participation, err := r.getUserChallenge(ctx, tx, challengeID, telegramID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrNotParticipant
			}
			return err
		}
		if participation.UserID != telegramID {
			return ErrNotParticipant
		}

		if model.ChallengeStatus(row.Status) != model.ChallengeStatusActive {
			return ErrChallengeNotActive
		}

		query, args, err := squirrel.
			Update(challengesTable).
			Set("participants", squirrel.Expr("array_remove(participants, ?::bigint)", telegramID)).
			Set("prize_pool", squirrel.Expr("prize_pool - ?", row.Stake)).
			Set("updated_at", r.now()).
			Where(squirrel.Eq{"id": challengeID}).
			Where(squirrel.GtOrEq{"prize_pool": row.Stake}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build participant removal query: %w", err)
		}

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to remove participant: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("prize pool %d is smaller than stake %d", row.PrizePool, row.Stake)
		}

		if err := r.deleteUserChallengeWithTx(ctx, tx, challengeID, telegramID); err != nil {
			return err
		}

		if _, err := r.adjustTokenBalanceWithTx(ctx, tx, telegramID, row.Stake); err != nil {
			return fmt.Errorf("failed to refund stake: %w", err)
		}

		fresh, err := r.getChallenge(ctx, tx, challengeID, false)
		if err != nil {
			return err
		}
		updated = fresh.toModel()

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// MarkChallengeCompleted moves the challenge from active to completed and
// closes every participation in the same transaction: the caller's record
// becomes completed at 100, the others end cancelled with their last
// progress. It reports false without writing anything when the challenge
// was no longer active.
func (r *Repository) MarkChallengeCompleted(ctx context.Context, challengeID uuid.UUID, telegramID int64) (bool, error) {
	var transitioned bool

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		now := r.now()

		query, args, err := squirrel.
			Update(challengesTable).
			Set("status", string(model.ChallengeStatusCompleted)).
			Set("updated_at", now).
			Where(squirrel.Eq{"id": challengeID, "status": string(model.ChallengeStatusActive)}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to complete challenge: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}

		query, args, err = squirrel.
			Update(userChallengesTable).
			Set("status", string(model.ChallengeStatusCompleted)).
			Set("progress", 100).
			Set("completed_at", now).
			Set("updated_at", now).
			Where(squirrel.Eq{
				"challenge_id": challengeID,
				"user_id":      telegramID,
				"status":       string(model.ChallengeStatusActive),
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		result, err = tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to complete participation: %w", err)
		}
		rows, err = result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrNotParticipant
		}

		query, args, err = squirrel.
			Update(userChallengesTable).
			Set("status", string(model.ChallengeStatusCancelled)).
			Set("updated_at", now).
			Where(squirrel.Eq{
				"challenge_id": challengeID,
				"status":       string(model.ChallengeStatusActive),
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to close remaining participations: %w", err)
		}

		transitioned = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return transitioned, nil
}
