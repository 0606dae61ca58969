package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/BTreeMap/CareBear/internal/models"
)

const defaultRedisPrefix = "carebear:session:"

// RedisStateStore keeps session state as JSON values in Redis, one key per session.
// Expiry is handled by Redis through the configured TTL.
type RedisStateStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisStateStore.
type RedisOption func(*RedisStateStore)

// WithTTL sets the idle expiry applied on every save. Zero means no expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStateStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStateStore) {
		s.prefix = prefix
	}
}

// NewRedisStateStore connects to a Redis server.
func NewRedisStateStore(addr, password string, db int, opts ...RedisOption) *RedisStateStore {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStateStoreFromClient(client, opts...)
}

// NewRedisStateStoreFromClient wraps an existing client.
func NewRedisStateStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStateStore {
	s := &RedisStateStore{
		client: client,
		prefix: defaultRedisPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client exposes the underlying client so a RedisLocker can share the connection pool.
func (s *RedisStateStore) Client() *backend.Client {
	return s.client
}

// Ping checks connectivity.
func (s *RedisStateStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *RedisStateStore) key(sessionKey string) string {
	return s.prefix + sessionKey
}

func (s *RedisStateStore) GetSessionState(ctx context.Context, key string) (*models.SessionState, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, nil
		}
		slog.Error("RedisStateStore GetSessionState failed", "error", err, "sessionKey", key)
		return nil, fmt.Errorf("failed to get session state from redis: %w", err)
	}

	var state models.SessionState
	if err := json.Unmarshal(val, &state); err != nil {
		slog.Error("RedisStateStore GetSessionState unmarshal failed", "error", err, "sessionKey", key)
		return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
	}
	return &state, nil
}

func (s *RedisStateStore) SaveSessionState(ctx context.Context, state *models.SessionState) error {
	if state == nil || state.SessionKey == "" {
		return fmt.Errorf("session state must have a session key")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}
	// Crisis sessions never expire; the next non-crisis save restores the TTL.
	ttl := s.ttl
	if state.Crisis {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(state.SessionKey), data, ttl).Err(); err != nil {
		slog.Error("RedisStateStore SaveSessionState failed", "error", err, "sessionKey", state.SessionKey)
		return fmt.Errorf("failed to save session state to redis: %w", err)
	}
	slog.Debug("RedisStateStore SaveSessionState succeeded", "sessionKey", state.SessionKey, "ttl", ttl)
	return nil
}

func (s *RedisStateStore) DeleteSessionState(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		slog.Error("RedisStateStore DeleteSessionState failed", "error", err, "sessionKey", key)
		return fmt.Errorf("failed to delete session state from redis: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (s *RedisStateStore) Close() error {
	return s.client.Close()
}
