package db

import (
	"context"
	"time"

	"github.com/LArkema/dctransistor-project/internal/metrics"
)

// Store is the cycle history and baseline storage used by the service.
// DB (SQLite) and Postgres both implement it.
type Store interface {
	metrics.BaselineStore

	EnsureSchema(ctx context.Context) error
	RecordCycle(ctx context.Context, rec CycleRecord) (string, error)
	RecentCycles(ctx context.Context, limit int) ([]CycleRecord, error)
	Cleanup(ctx context.Context, retention time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*DB)(nil)
	_ Store = (*Postgres)(nil)
)

// Open connects to PostgreSQL when databaseURL is set and to the SQLite file
// at sqlitePath otherwise, then ensures the schema.
func Open(ctx context.Context, sqlitePath, databaseURL string) (Store, error) {
	var (
		store Store
		err   error
	)
	if databaseURL != "" {
		store, err = ConnectPostgres(ctx, databaseURL)
	} else {
		store, err = Connect(sqlitePath)
	}
	if err != nil {
		return nil, err
	}

	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
