// This file implements a PostgreSQL-backed transcript store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/BTreeMap/CareBear/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists transcripts in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AddTurn(ctx context.Context, t models.TurnRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (session_key, user_message, mood, crisis, reply, follow_up, rationale, kind, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.SessionKey, t.UserMessage, string(t.Mood), t.Crisis, t.Reply,
		nilIfEmpty(t.FollowUp), nilIfEmpty(t.Rationale), string(t.Kind), string(t.Source), t.CreatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore AddTurn failed", "error", err, "sessionKey", t.SessionKey)
		return fmt.Errorf("failed to insert turn for %s: %w", t.SessionKey, err)
	}
	slog.Debug("PostgresStore AddTurn succeeded", "sessionKey", t.SessionKey, "kind", t.Kind)
	return nil
}

func (s *PostgresStore) ListTurns(ctx context.Context, key string, limit int) ([]models.TurnRecord, error) {
	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+turnColumns+` FROM (
			SELECT `+turnColumns+` FROM turns WHERE session_key = $1 ORDER BY id DESC LIMIT $2
		) recent ORDER BY id ASC`, key, lim)
	if err != nil {
		slog.Error("PostgresStore ListTurns query failed", "error", err, "sessionKey", key)
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		slog.Error("PostgresStore ListTurns scan failed", "error", err, "sessionKey", key)
		return nil, err
	}
	slog.Debug("PostgresStore ListTurns succeeded", "sessionKey", key, "count", len(turns))
	return turns, nil
}

func (s *PostgresStore) DeleteTurns(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE session_key = $1`, key); err != nil {
		slog.Error("PostgresStore DeleteTurns failed", "error", err, "sessionKey", key)
		return fmt.Errorf("failed to delete turns for %s: %w", key, err)
	}
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
