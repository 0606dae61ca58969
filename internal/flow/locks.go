package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/CareBear/internal/store"
)

// DefaultLockTTL bounds how long a crashed replica can hold a session's distributed lock.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// SessionLocks serialises work per session key. Entries are reference counted and
// dropped when unused, so the map only holds keys with work in flight. When a
// distributed locker is set it is taken inside the local lock.
type SessionLocks struct {
	mu     sync.Mutex
	locks  map[string]*lockEntry
	locker store.Locker
	ttl    time.Duration
}

// NewSessionLocks creates a keyed mutex. locker may be nil.
func NewSessionLocks(locker store.Locker, ttl time.Duration) *SessionLocks {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &SessionLocks{
		locks:  make(map[string]*lockEntry),
		locker: locker,
		ttl:    ttl,
	}
}

func (l *SessionLocks) acquire(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &lockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (l *SessionLocks) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.locks[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, key)
	}
}

// WithLock runs fn while holding the lock for key.
func (l *SessionLocks) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := l.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		l.release(key)
	}()

	if l.locker != nil {
		unlock, err := l.locker.Lock(ctx, key, l.ttl)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// Release even if ctx was cancelled mid-turn.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := unlock(releaseCtx); err != nil {
				slog.Warn("Failed to release distributed lock (will expire via TTL)", "sessionKey", key, "error", err)
			}
		}()
	}

	return fn(ctx)
}

// active returns how many keys currently have work in flight.
func (l *SessionLocks) active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
