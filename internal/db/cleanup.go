package db

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Cleanup deletes cycles older than the retention window.
func (db *DB) Cleanup(ctx context.Context, retention time.Duration) error {
	hours := int(retention.Hours())
	if hours < 1 {
		hours = 1
	}
	cutoff := fmt.Sprintf("datetime('now', '-%d hours')", hours)

	queries := []struct {
		name  string
		query string
	}{
		{
			name:  "cycle_lines",
			query: "DELETE FROM cycle_lines WHERE cycle_id IN (SELECT cycle_id FROM cycles WHERE datetime(polled_at_utc) < " + cutoff + ")",
		},
		{
			name:  "cycles",
			query: "DELETE FROM cycles WHERE datetime(polled_at_utc) < " + cutoff,
		},
	}

	db.LockWrite()
	defer db.UnlockWrite()

	deleted := 0
	for _, q := range queries {
		result, err := db.conn.ExecContext(ctx, q.query)
		if err != nil {
			return fmt.Errorf("failed to cleanup %s: %w", q.name, err)
		}
		if q.name == "cycles" {
			rows, _ := result.RowsAffected()
			deleted = int(rows)
		}
	}

	if deleted > 0 {
		log.Printf("Cleanup: deleted %d cycles older than %d hours", deleted, hours)
	}
	return nil
}
