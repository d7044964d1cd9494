// Package db records polling cycle history and learned train baselines in
// SQLite or PostgreSQL.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LineRecord is one line's state at the end of a cycle.
type LineRecord struct {
	LineID           string `json:"lineId"`
	Trains           int    `json:"trains"`
	ForwardOccupancy uint64 `json:"forwardOccupancy"`
	ReverseOccupancy uint64 `json:"reverseOccupancy"`
	ForwardDwell     int    `json:"forwardDwell"`
	ReverseDwell     int    `json:"reverseDwell"`
}

// CycleRecord is the audit entry for one polling cycle.
type CycleRecord struct {
	CycleID          string       `json:"cycleId"`
	CycleNumber      uint64       `json:"cycleNumber"`
	PolledAt         time.Time    `json:"polledAt"`
	ReadingsReceived int          `json:"readingsReceived"`
	ReadingsResolved int          `json:"readingsResolved"`
	FetchError       string       `json:"fetchError,omitempty"`
	Lines            []LineRecord `json:"lines"`
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// RecordCycle stores a cycle and its line rows, assigning a new cycle id when
// rec has none. It returns the id used.
func (db *DB) RecordCycle(ctx context.Context, rec CycleRecord) (string, error) {
	if rec.CycleID == "" {
		rec.CycleID = uuid.New().String()
	}

	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cycles (cycle_id, cycle_number, polled_at_utc, readings_received, readings_resolved, fetch_error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.CycleID, int64(rec.CycleNumber), rec.PolledAt.UTC().Format(time.RFC3339),
		rec.ReadingsReceived, rec.ReadingsResolved, nullable(rec.FetchError))
	if err != nil {
		return "", fmt.Errorf("failed to insert cycle: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cycle_lines (cycle_id, line_id, trains, forward_occupancy, reverse_occupancy, forward_dwell, reverse_dwell)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare line statement: %w", err)
	}
	defer stmt.Close()

	for _, l := range rec.Lines {
		_, err := stmt.ExecContext(ctx, rec.CycleID, l.LineID, l.Trains,
			int64(l.ForwardOccupancy), int64(l.ReverseOccupancy), l.ForwardDwell, l.ReverseDwell)
		if err != nil {
			return "", fmt.Errorf("failed to insert line %s: %w", l.LineID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit cycle: %w", err)
	}
	return rec.CycleID, nil
}

// RecentCycles returns up to limit cycles, newest first.
func (db *DB) RecentCycles(ctx context.Context, limit int) ([]CycleRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT cycle_id, cycle_number, polled_at_utc, readings_received, readings_resolved, fetch_error
		FROM cycles
		ORDER BY polled_at_utc DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}

	cycles := []CycleRecord{}
	for rows.Next() {
		var (
			c        CycleRecord
			number   int64
			polledAt string
			fetchErr sql.NullString
		)
		if err := rows.Scan(&c.CycleID, &number, &polledAt, &c.ReadingsReceived, &c.ReadingsResolved, &fetchErr); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		c.CycleNumber = uint64(number)
		c.FetchError = fetchErr.String
		if c.PolledAt, err = time.Parse(time.RFC3339, polledAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("cycle %s has bad timestamp %q: %w", c.CycleID, polledAt, err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Single connection: release it before the per-cycle queries.
	rows.Close()

	for i := range cycles {
		lines, err := db.cycleLines(ctx, cycles[i].CycleID)
		if err != nil {
			return nil, err
		}
		cycles[i].Lines = lines
	}
	return cycles, nil
}

func (db *DB) cycleLines(ctx context.Context, cycleID string) ([]LineRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT line_id, trains, forward_occupancy, reverse_occupancy, forward_dwell, reverse_dwell
		FROM cycle_lines
		WHERE cycle_id = ?
		ORDER BY rowid
	`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines for cycle %s: %w", cycleID, err)
	}
	defer rows.Close()

	lines := []LineRecord{}
	for rows.Next() {
		var l LineRecord
		var fwd, rev int64
		if err := rows.Scan(&l.LineID, &l.Trains, &fwd, &rev, &l.ForwardDwell, &l.ReverseDwell); err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		l.ForwardOccupancy = uint64(fwd)
		l.ReverseOccupancy = uint64(rev)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
