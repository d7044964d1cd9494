package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/LArkema/dctransistor-project/internal/metrics"
)

// GetBaseline returns the stored baseline for a line and hour slot, or nil
// when there is none.
func (db *DB) GetBaseline(ctx context.Context, lineID string, hour, dayOfWeek int) (*metrics.TrainBaseline, error) {
	var (
		b         metrics.TrainBaseline
		updatedAt string
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT line_id, hour_of_day, day_of_week, trains_mean, trains_stddev, sample_count, updated_at
		FROM train_baselines
		WHERE line_id = ? AND hour_of_day = ? AND day_of_week = ?
	`, lineID, hour, dayOfWeek).Scan(
		&b.LineID, &b.HourOfDay, &b.DayOfWeek, &b.TrainsMean, &b.TrainsStd, &b.SampleCount, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline for %s: %w", lineID, err)
	}
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &b, nil
}

// SaveBaseline upserts a baseline.
func (db *DB) SaveBaseline(ctx context.Context, b metrics.TrainBaseline) error {
	db.LockWrite()
	defer db.UnlockWrite()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO train_baselines (line_id, hour_of_day, day_of_week, trains_mean, trains_stddev, sample_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (line_id, hour_of_day, day_of_week) DO UPDATE SET
			trains_mean = excluded.trains_mean,
			trains_stddev = excluded.trains_stddev,
			sample_count = excluded.sample_count,
			updated_at = excluded.updated_at
	`, b.LineID, b.HourOfDay, b.DayOfWeek, b.TrainsMean, b.TrainsStd, b.SampleCount, b.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save baseline for %s: %w", b.LineID, err)
	}
	return nil
}
