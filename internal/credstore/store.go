// Package credstore persists the access/refresh credential pair in a SQLite
// database so a session survives process restarts, mirroring the current
// pair in memory for synchronous reads.
package credstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/docagent/docagent-go/internal/api"
)

// Durable keys for the credential pair. Absence of both means logged out.
const (
	keyAccessToken  = "token"
	keyRefreshToken = "refreshToken"
)

// Store is the durable credential store. The in-memory copy and the durable
// copy are always updated together: a Set or Clear commits the transaction
// before the mirror changes, so no half-written state is observable.
type Store struct {
	db *sql.DB

	mu     sync.RWMutex
	cached api.TokenPair
}

// Open creates or opens the credential database at path, runs migrations,
// and loads any existing pair into memory.
func Open(path string) (*Store, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	// Append per-connection PRAGMAs to the DSN so every pooled connection gets them.
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=foreign_keys(1)&_pragma=synchronous(normal)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// journal_mode and busy_timeout are database-wide; set them once here.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite setup (%s): %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.load(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS credentials (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM credentials WHERE key IN (?, ?)`,
		keyAccessToken, keyRefreshToken)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	var pair api.TokenPair
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		switch k {
		case keyAccessToken:
			pair.AccessToken = v
		case keyRefreshToken:
			pair.RefreshToken = v
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cached = pair
	s.mu.Unlock()
	return nil
}

// Pair returns the in-memory credential pair. The second return value is
// false when no credential is stored (logged out).
func (s *Store) Pair() (api.TokenPair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cached.AccessToken == "" && s.cached.RefreshToken == "" {
		return api.TokenPair{}, false
	}
	return s.cached, true
}

// Set atomically replaces the stored credential pair.
func (s *Store) Set(ctx context.Context, pair api.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const upsert = `
INSERT INTO credentials(key, value) VALUES(?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := tx.ExecContext(ctx, upsert, keyAccessToken, pair.AccessToken); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, upsert, keyRefreshToken, pair.RefreshToken); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.cached = pair
	return nil
}

// Clear deletes the stored credential pair. Clearing an empty store is a
// no-op, not an error.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE key IN (?, ?)`,
		keyAccessToken, keyRefreshToken); err != nil {
		return err
	}
	s.cached = api.TokenPair{}
	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
