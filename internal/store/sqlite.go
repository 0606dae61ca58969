// This file implements an SQLite-backed transcript store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/BTreeMap/CareBear/internal/models"
)

const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists transcripts in an SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// A single writer avoids SQLITE_BUSY under concurrent turns.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "dsn", dsn)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AddTurn(ctx context.Context, t models.TurnRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (session_key, user_message, mood, crisis, reply, follow_up, rationale, kind, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.SessionKey, t.UserMessage, string(t.Mood), t.Crisis, t.Reply,
		nilIfEmpty(t.FollowUp), nilIfEmpty(t.Rationale), string(t.Kind), string(t.Source), t.CreatedAt.UTC(),
	)
	if err != nil {
		slog.Error("SQLiteStore AddTurn failed", "error", err, "sessionKey", t.SessionKey)
		return fmt.Errorf("failed to insert turn for %s: %w", t.SessionKey, err)
	}
	slog.Debug("SQLiteStore AddTurn succeeded", "sessionKey", t.SessionKey, "kind", t.Kind)
	return nil
}

func (s *SQLiteStore) ListTurns(ctx context.Context, key string, limit int) ([]models.TurnRecord, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+turnColumns+` FROM (
			SELECT `+turnColumns+` FROM turns WHERE session_key = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, key, limit)
	if err != nil {
		slog.Error("SQLiteStore ListTurns query failed", "error", err, "sessionKey", key)
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		slog.Error("SQLiteStore ListTurns scan failed", "error", err, "sessionKey", key)
		return nil, err
	}
	slog.Debug("SQLiteStore ListTurns succeeded", "sessionKey", key, "count", len(turns))
	return turns, nil
}

func (s *SQLiteStore) DeleteTurns(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE session_key = ?`, key); err != nil {
		slog.Error("SQLiteStore DeleteTurns failed", "error", err, "sessionKey", key)
		return fmt.Errorf("failed to delete turns for %s: %w", key, err)
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
