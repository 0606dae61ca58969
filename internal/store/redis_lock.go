package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/BTreeMap/CareBear/internal/util"
)

const defaultLockPollInterval = 50 * time.Millisecond

// unlockScript deletes the lock only if it still holds our token.
var unlockScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisLocker implements Locker with SET NX PX and a compare-and-delete release.
type RedisLocker struct {
	client       *backend.Client
	prefix       string
	pollInterval time.Duration
}

// NewRedisLocker creates a locker whose keys are prefix + "lock:" + key.
func NewRedisLocker(client *backend.Client, prefix string) *RedisLocker {
	return &RedisLocker{
		client:       client,
		prefix:       prefix,
		pollInterval: defaultLockPollInterval,
	}
}

// Lock blocks until the lock is held or ctx ends. ttl bounds how long a crashed holder can block others.
func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := util.GenerateRandomHex(32)

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", ErrLockNotAcquired, ctx.Err())
			}
			return nil, fmt.Errorf("redis error acquiring lock: %w", err)
		}
		if ok {
			slog.Debug("RedisLocker acquired", "key", lockKey)
			return func(ctx context.Context) error {
				if err := unlockScript.Run(ctx, l.client, []string{lockKey}, token).Err(); err != nil {
					return fmt.Errorf("redis error releasing lock: %w", err)
				}
				return nil
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrLockNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}
}
