package promo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStorage keeps whole serialized values in an embedded SQLite database
type SQLiteStorage struct {
	sqlDB  *sql.DB
	logger Logger
}

// OpenSQLiteStorage opens (or creates) the database at path and ensures the kv table exists
func OpenSQLiteStorage(path string, logger Logger) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if logger == nil {
		logger = NewSilentLogger()
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}

	return &SQLiteStorage{sqlDB: sqlDB, logger: logger}, nil
}

// Close closes the SQLite handle
func (s *SQLiteStorage) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get loads the value stored under key, returning (nil, nil) when the key is absent
func (s *SQLiteStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.check(ctx, key); err != nil {
		return nil, err
	}

	var value []byte
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ErrStateLoadFailure.WithOperation("get").WithCause(err)
	}

	s.logger.Debug("Loaded key=%s from SQLite: size=%d bytes", key, len(value))
	return value, nil
}

// Set overwrites the whole value stored under key
func (s *SQLiteStorage) Set(ctx context.Context, key string, value []byte) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().UnixMilli())
	if err != nil {
		return ErrStateSaveFailure.WithOperation("set").WithCause(err)
	}

	s.logger.Debug("Saved key=%s to SQLite: size=%d bytes", key, len(value))
	return nil
}

// Del removes key; deleting a missing key is not an error
func (s *SQLiteStorage) Del(ctx context.Context, key string) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return ErrStateSaveFailure.WithOperation("del").WithCause(err)
	}
	return nil
}

func (s *SQLiteStorage) check(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return ErrStorageUnavailable.WithDetails("storage is not configured")
	}
	if key == "" {
		return ErrInvalidParameters.WithDetails("empty key")
	}
	return nil
}
