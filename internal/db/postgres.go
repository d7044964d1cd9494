package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LArkema/dctransistor-project/internal/metrics"
)

// Postgres is the PostgreSQL counterpart of DB, selected by DATABASE_URL.
type Postgres struct {
	pool *pgxpool.Pool
}

func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Connected to PostgreSQL database")
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	log.Println("Cycle schema ensured")
	return nil
}

func (p *Postgres) RecordCycle(ctx context.Context, rec CycleRecord) (string, error) {
	id := uuid.New()
	if rec.CycleID != "" {
		parsed, err := uuid.Parse(rec.CycleID)
		if err != nil {
			return "", fmt.Errorf("invalid cycle id %q: %w", rec.CycleID, err)
		}
		id = parsed
	}
	rec.CycleID = id.String()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var fetchErr *string
	if rec.FetchError != "" {
		fetchErr = &rec.FetchError
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO cycles (cycle_id, cycle_number, polled_at_utc, readings_received, readings_resolved, fetch_error)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, int64(rec.CycleNumber), rec.PolledAt.UTC(), rec.ReadingsReceived, rec.ReadingsResolved, fetchErr)
	if err != nil {
		return "", fmt.Errorf("failed to insert cycle: %w", err)
	}

	batch := &pgx.Batch{}
	for _, l := range rec.Lines {
		batch.Queue(`
			INSERT INTO cycle_lines (cycle_id, line_id, trains, forward_occupancy, reverse_occupancy, forward_dwell, reverse_dwell)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, id, l.LineID, l.Trains, int64(l.ForwardOccupancy), int64(l.ReverseOccupancy), l.ForwardDwell, l.ReverseDwell)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return "", fmt.Errorf("failed to insert cycle lines: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit cycle: %w", err)
	}
	return rec.CycleID, nil
}

func (p *Postgres) RecentCycles(ctx context.Context, limit int) ([]CycleRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT cycle_id::text, cycle_number, polled_at_utc, readings_received, readings_resolved, COALESCE(fetch_error, '')
		FROM cycles
		ORDER BY polled_at_utc DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	cycles := []CycleRecord{}
	index := map[string]int{}
	for rows.Next() {
		var c CycleRecord
		var number int64
		if err := rows.Scan(&c.CycleID, &number, &c.PolledAt, &c.ReadingsReceived, &c.ReadingsResolved, &c.FetchError); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		c.CycleNumber = uint64(number)
		c.Lines = []LineRecord{}
		index[c.CycleID] = len(cycles)
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cycles) == 0 {
		return cycles, nil
	}

	ids := make([]string, 0, len(cycles))
	for _, c := range cycles {
		ids = append(ids, c.CycleID)
	}
	lineRows, err := p.pool.Query(ctx, `
		SELECT cycle_id::text, line_id, trains, forward_occupancy, reverse_occupancy, forward_dwell, reverse_dwell
		FROM cycle_lines
		WHERE cycle_id::text = ANY($1)
		ORDER BY line_id
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle lines: %w", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var id string
		var l LineRecord
		var fwd, rev int64
		if err := lineRows.Scan(&id, &l.LineID, &l.Trains, &fwd, &rev, &l.ForwardDwell, &l.ReverseDwell); err != nil {
			return nil, fmt.Errorf("failed to scan cycle line: %w", err)
		}
		l.ForwardOccupancy = uint64(fwd)
		l.ReverseOccupancy = uint64(rev)
		i := index[id]
		cycles[i].Lines = append(cycles[i].Lines, l)
	}
	return cycles, lineRows.Err()
}

func (p *Postgres) Cleanup(ctx context.Context, retention time.Duration) error {
	if retention < time.Hour {
		retention = time.Hour
	}
	tag, err := p.pool.Exec(ctx, "DELETE FROM cycles WHERE polled_at_utc < $1", time.Now().UTC().Add(-retention))
	if err != nil {
		return fmt.Errorf("failed to cleanup cycles: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		log.Printf("Cleanup: deleted %d cycles older than %v", n, retention)
	}
	return nil
}

func (p *Postgres) GetBaseline(ctx context.Context, lineID string, hour, dayOfWeek int) (*metrics.TrainBaseline, error) {
	var b metrics.TrainBaseline
	err := p.pool.QueryRow(ctx, `
		SELECT line_id, hour_of_day, day_of_week, trains_mean, trains_stddev, sample_count, updated_at
		FROM train_baselines
		WHERE line_id = $1 AND hour_of_day = $2 AND day_of_week = $3
	`, lineID, hour, dayOfWeek).Scan(
		&b.LineID, &b.HourOfDay, &b.DayOfWeek, &b.TrainsMean, &b.TrainsStd, &b.SampleCount, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline for %s: %w", lineID, err)
	}
	return &b, nil
}

func (p *Postgres) SaveBaseline(ctx context.Context, b metrics.TrainBaseline) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO train_baselines (line_id, hour_of_day, day_of_week, trains_mean, trains_stddev, sample_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (line_id, hour_of_day, day_of_week) DO UPDATE SET
			trains_mean = EXCLUDED.trains_mean,
			trains_stddev = EXCLUDED.trains_stddev,
			sample_count = EXCLUDED.sample_count,
			updated_at = EXCLUDED.updated_at
	`, b.LineID, b.HourOfDay, b.DayOfWeek, b.TrainsMean, b.TrainsStd, b.SampleCount, b.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save baseline for %s: %w", b.LineID, err)
	}
	return nil
}
