// Package store provides storage backends for CareBear.
//
// Session state (the per-key record the engine mutates every turn) lives in a
// StateStore: process memory by default, Redis for multi-process deployments.
// Transcripts live in a TranscriptStore: memory, SQLite or Postgres.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/BTreeMap/CareBear/internal/models"
)

// ErrLockNotAcquired is returned when a distributed lock could not be taken before the context ended.
var ErrLockNotAcquired = errors.New("failed to acquire session lock")

// StateStore holds one SessionState per session key.
// GetSessionState returns nil, nil when the key is unknown.
type StateStore interface {
	GetSessionState(ctx context.Context, key string) (*models.SessionState, error)
	SaveSessionState(ctx context.Context, state *models.SessionState) error
	DeleteSessionState(ctx context.Context, key string) error
	Close() error
}

// Pruner is implemented by state stores that have no native expiry.
type Pruner interface {
	// PruneIdle deletes sessions whose last update is before the cutoff and returns how many were removed.
	PruneIdle(ctx context.Context, before time.Time) (int, error)
}

// TranscriptStore appends and lists conversation turns.
type TranscriptStore interface {
	AddTurn(ctx context.Context, turn models.TurnRecord) error
	// ListTurns returns the most recent limit turns for key in chronological order. limit <= 0 means all.
	ListTurns(ctx context.Context, key string, limit int) ([]models.TurnRecord, error)
	DeleteTurns(ctx context.Context, key string) error
	Close() error
}

// UnlockFunc releases a lock taken by a Locker.
type UnlockFunc func(ctx context.Context) error

// Locker serialises work on a key across processes.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

// Opts holds configuration for SQL-backed transcript stores.
type Opts struct {
	DSN string
}

// Option configures a SQL-backed store.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the Postgres connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType returns the database/sql driver name for a DSN: "postgres" or "sqlite3".
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "postgres"
	case strings.Contains(lower, "host=") && strings.Contains(lower, "dbname="):
		return "postgres"
	default:
		return "sqlite3"
	}
}

// NewTranscriptStore opens the transcript backend implied by dsn. An empty dsn gives an in-memory store.
func NewTranscriptStore(dsn string) (TranscriptStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return NewInMemoryTranscriptStore(), nil
	}
	if DetectDSNType(dsn) == "postgres" {
		return NewPostgresStore(WithPostgresDSN(dsn))
	}
	return NewSQLiteStore(WithSQLiteDSN(dsn))
}

func cloneState(s *models.SessionState) *models.SessionState {
	if s == nil {
		return nil
	}
	c := *s
	if s.Exercise != nil {
		ex := *s.Exercise
		c.Exercise = &ex
	}
	return &c
}
