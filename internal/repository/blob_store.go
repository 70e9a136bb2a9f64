package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	errorvalues "github.com/limbo/plankup/internal/error_values"

	_ "modernc.org/sqlite"
)

// SQLiteBlobStore keeps the local copy of user data in a single SQLite file.
type SQLiteBlobStore struct {
	db *sql.DB
}

// OpenSQLiteBlobStore opens or creates the database at path. ":memory:" gives
// a throwaway store, handy in tests.
func OpenSQLiteBlobStore(path string) (*SQLiteBlobStore, error) {
	inMemory := path == ":memory:" || strings.HasPrefix(path, "file::memory:")
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite has a single writer, and every :memory: connection is its own database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{"PRAGMA busy_timeout = 5000"}
	if !inMemory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	store := &SQLiteBlobStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteBlobStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS blobs (
  namespace TEXT NOT NULL,
  key TEXT NOT NULL,
  value BLOB NOT NULL,
  updated_at TEXT NOT NULL,
  PRIMARY KEY (namespace, key)
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create blobs table: %w", err)
	}
	return nil
}

func (s *SQLiteBlobStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteBlobStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var value []byte
	row := s.db.QueryRowContext(ctx, `SELECT value FROM blobs WHERE namespace = ? AND key = ?`, namespace, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errorvalues.ErrBlobNotFound
		}
		return nil, fmt.Errorf("read blob %s/%s: %w", namespace, key, err)
	}
	return value, nil
}

func (s *SQLiteBlobStore) Set(ctx context.Context, namespace, key string, value []byte) error {
	const stmt = `
INSERT INTO blobs (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(namespace, key) DO UPDATE SET
  value=excluded.value,
  updated_at=excluded.updated_at;
`
	if _, err := s.db.ExecContext(ctx, stmt, namespace, key, value, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("write blob %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *SQLiteBlobStore) Delete(ctx context.Context, namespace, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE namespace = ? AND key = ?`, namespace, key); err != nil {
		return fmt.Errorf("delete blob %s/%s: %w", namespace, key, err)
	}
	return nil
}
