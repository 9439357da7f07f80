package ratelimit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps counters in a SQLite file so a single instance keeps its
// windows across restarts.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:" for
// an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes every read-modify-write in this process.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		PRAGMA busy_timeout = 5000;
		CREATE TABLE IF NOT EXISTS counters (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_counters_expires_at ON counters(expires_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) get(ctx context.Context, q queryer, key string) (string, bool, error) {
	var value string
	err := q.QueryRowContext(ctx,
		"SELECT value FROM counters WHERE key = ? AND expires_at > ?",
		key, s.now().UnixMilli(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select counter: %w", err)
	}
	return value, true, nil
}

func (s *SQLiteStore) set(ctx context.Context, q queryer, key, value string, ttl time.Duration) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO counters (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, key, value, s.now().Add(ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert counter: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.get(ctx, s.db, key)
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.set(ctx, s.db, key, value, ttl)
}

// Update applies fn inside a transaction.
func (s *SQLiteStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	current, exists, err := s.get(ctx, tx, key)
	if err != nil {
		return err
	}
	next, ttl, err := fn(current, exists)
	if err != nil {
		return err
	}
	if err := s.set(ctx, tx, key, next, ttl); err != nil {
		return err
	}
	return tx.Commit()
}

// Sweep deletes expired rows and returns how many were removed.
func (s *SQLiteStore) Sweep(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM counters WHERE expires_at <= ?", s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
