package store

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

// SQLite persists cache entries to a local SQLite database: one flat table
// mapping cache key to serialized entry.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLite opens (or creates) the database at path and runs migrations.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for concurrent reads while the sweeper writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite cache store opened: %s", path)
	return s, nil
}

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS cache_entries (
		key           TEXT PRIMARY KEY,
		value         BLOB NOT NULL,
		created_at_ms INTEGER NOT NULL,
		ttl_ms        INTEGER NOT NULL
	)`)
	return err
}

func (s *SQLite) Get(ctx context.Context, key string) (Entry, bool, error) {
	var value []byte
	var createdMs, ttlMs int64
	row := s.db.QueryRowContext(ctx,
		`SELECT value, created_at_ms, ttl_ms FROM cache_entries WHERE key = ?`, key)
	if err := row.Scan(&value, &createdMs, &ttlMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("get %q: %w", key, err)
	}
	return Entry{
		Value:     value,
		CreatedAt: time.UnixMilli(createdMs),
		TTL:       time.Duration(ttlMs) * time.Millisecond,
	}, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries (key, value, created_at_ms, ttl_ms) VALUES (?, ?, ?, ?)`,
		key, e.Value, e.CreatedAt.UnixMilli(), e.TTL.Milliseconds())
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Sweep deletes every expired row in one statement.
func (s *SQLite) Sweep(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE created_at_ms + ttl_ms < ?`, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
