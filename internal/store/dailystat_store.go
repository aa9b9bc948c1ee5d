package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/todosync/internal/model"
)

const dailyStatColumns = `user_id, date, productivity_score, balance_score,
	balance_narrative, tag_counts, updated_at`

// GetDailyStat retrieves the cached stat for one user and day.
func (t txn) GetDailyStat(ctx context.Context, userID, date string) (*model.DailyStat, error) {
	var rec dailyStatRecord
	err := sqlx.GetContext(ctx, t.q, &rec,
		"SELECT "+dailyStatColumns+" FROM daily_stats WHERE user_id = ? AND date = ?",
		userID, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("daily stat %s/%s: %w", userID, date, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting daily stat %s/%s: %w", userID, date, err)
	}
	stat, err := rec.toModel()
	if err != nil {
		return nil, err
	}
	return &stat, nil
}

// ListDailyStats retrieves cached stats matching the filter ordered by date.
func (t txn) ListDailyStats(ctx context.Context, filter DailyStatFilter) ([]model.DailyStat, error) {
	query := "SELECT " + dailyStatColumns + " FROM daily_stats WHERE 1 = 1"
	var args []interface{}

	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.DatePrefix != "" {
		query += " AND substr(date, 1, ?) = ?"
		args = append(args, len(filter.DatePrefix), filter.DatePrefix)
	}
	query += " ORDER BY date"

	var recs []dailyStatRecord
	if err := sqlx.SelectContext(ctx, t.q, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("querying daily stats: %w", err)
	}

	stats := make([]model.DailyStat, 0, len(recs))
	for _, r := range recs {
		stat, err := r.toModel()
		if err != nil {
			return nil, err
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// UpsertDailyStat replaces the cached stat for its (user, date) key.
func (t txn) UpsertDailyStat(ctx context.Context, stat model.DailyStat) error {
	rec, err := dailyStatToRecord(stat)
	if err != nil {
		return err
	}
	_, err = sqlx.NamedExecContext(ctx, t.q, `
		INSERT INTO daily_stats (
			user_id, date, productivity_score, balance_score,
			balance_narrative, tag_counts, updated_at
		) VALUES (
			:user_id, :date, :productivity_score, :balance_score,
			:balance_narrative, :tag_counts, :updated_at
		)
		ON CONFLICT(user_id, date) DO UPDATE SET
			productivity_score = excluded.productivity_score,
			balance_score = excluded.balance_score,
			balance_narrative = excluded.balance_narrative,
			tag_counts = excluded.tag_counts,
			updated_at = excluded.updated_at`,
		rec,
	)
	if err != nil {
		return fmt.Errorf("upserting daily stat %s/%s: %w", stat.UserID, stat.Date, err)
	}
	return nil
}
