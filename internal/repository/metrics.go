package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fitstake_miniapp/internal/model"

	"github.com/Masterminds/squirrel"
)

type HealthMetrics struct {
	UserTelegramID int64     `db:"user_telegram_id"`
	Day            time.Time `db:"day"`
	Steps          float64   `db:"steps"`
	ActiveMinutes  float64   `db:"active_minutes"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// UpsertHealthMetrics stores the metrics the device reported for a day,
// replacing any earlier report for the same day.
func (r *Repository) UpsertHealthMetrics(ctx context.Context, m *model.HealthMetrics) error {
	query, args, err := squirrel.
		Insert(healthMetricsTable).
		SetMap(map[string]interface{}{
			"user_telegram_id": m.UserTelegramID,
			"day":              dayOf(m.Day),
			"steps":            m.Steps,
			"active_minutes":   m.ActiveMinutes,
			"updated_at":       r.now(),
		}).
		Suffix("ON CONFLICT (user_telegram_id, day) DO UPDATE SET " +
			"steps = EXCLUDED.steps, active_minutes = EXCLUDED.active_minutes, updated_at = EXCLUDED.updated_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

// TodayMetrics returns nil when the user has not reported anything today.
func (r *Repository) TodayMetrics(ctx context.Context, telegramID int64) (*model.HealthMetrics, error) {
	query, args, err := squirrel.
		Select("user_telegram_id", "day", "steps", "active_minutes", "updated_at").
		From(healthMetricsTable).
		Where(squirrel.Eq{"user_telegram_id": telegramID, "day": dayOf(r.now())}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row HealthMetrics
	err = r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &model.HealthMetrics{
		UserTelegramID: row.UserTelegramID,
		Day:            row.Day,
		Steps:          row.Steps,
		ActiveMinutes:  row.ActiveMinutes,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}
