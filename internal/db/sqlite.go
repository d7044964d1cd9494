package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB is the SQLite cycle store. Writers hold writeMu.
type DB struct {
	conn    *sql.DB
	writeMu sync.Mutex
}

// Connect opens the cycle store at dbPath with cyclePragmas applied.
func Connect(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Cleanup runs alongside cycle writes; one connection keeps their
	// transactions apart.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.checkPragmas(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}

	log.Printf("Connected to SQLite database: %s", dbPath)
	return db, nil
}

// checkPragmas fails when foreign keys are off, since expired cycles would
// leave their cycle_lines behind. A journal other than WAL only warns.
func (db *DB) checkPragmas(ctx context.Context) error {
	var fk int
	if err := db.conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
		return fmt.Errorf("failed to read foreign_keys: %w", err)
	}
	if fk != 1 {
		return errors.New("foreign keys disabled on cycle store")
	}

	var mode string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("failed to read journal_mode: %w", err)
	}
	if mode != "wal" {
		log.Printf("Warning: cycle store journal mode is %s, not wal", mode)
	}
	return nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection; used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// LockWrite acquires the write mutex. Must be paired with UnlockWrite.
func (db *DB) LockWrite() {
	db.writeMu.Lock()
}

func (db *DB) UnlockWrite() {
	db.writeMu.Unlock()
}

// EnsureSchema creates the cycle tables if they don't exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	db.LockWrite()
	defer db.UnlockWrite()

	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Println("Cycle schema ensured")
	return nil
}
