package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/CareBear/internal/models"
)

// MemoryStateStore keeps session state in process memory. Values are copied on
// the way in and out so callers never share a record.
type MemoryStateStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.SessionState
}

// NewMemoryStateStore creates an empty in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{sessions: make(map[string]*models.SessionState)}
}

func (s *MemoryStateStore) GetSessionState(ctx context.Context, key string) (*models.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[key]
	if !ok {
		return nil, nil
	}
	return cloneState(st), nil
}

func (s *MemoryStateStore) SaveSessionState(ctx context.Context, state *models.SessionState) error {
	if state == nil || state.SessionKey == "" {
		return fmt.Errorf("session state must have a session key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state.SessionKey] = cloneState(state)
	return nil
}

func (s *MemoryStateStore) DeleteSessionState(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

// PruneIdle removes sessions not updated since before. Sessions in crisis
// mode are kept until a resume clears the flag.
func (s *MemoryStateStore) PruneIdle(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, st := range s.sessions {
		if st.UpdatedAt.Before(before) && !st.Crisis {
			delete(s.sessions, key)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("MemoryStateStore PruneIdle removed sessions", "count", removed, "before", before)
	}
	return removed, nil
}

// Len returns the number of stored sessions.
func (s *MemoryStateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStateStore) Close() error { return nil }

// InMemoryTranscriptStore keeps transcripts in process memory.
type InMemoryTranscriptStore struct {
	mu     sync.RWMutex
	nextID int64
	turns  map[string][]models.TurnRecord
}

// NewInMemoryTranscriptStore creates an empty in-memory transcript store.
func NewInMemoryTranscriptStore() *InMemoryTranscriptStore {
	return &InMemoryTranscriptStore{turns: make(map[string][]models.TurnRecord)}
}

func (s *InMemoryTranscriptStore) AddTurn(ctx context.Context, turn models.TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	turn.ID = s.nextID
	s.turns[turn.SessionKey] = append(s.turns[turn.SessionKey], turn)
	return nil
}

func (s *InMemoryTranscriptStore) ListTurns(ctx context.Context, key string, limit int) ([]models.TurnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.turns[key]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]models.TurnRecord, len(all))
	copy(out, all)
	return out, nil
}

func (s *InMemoryTranscriptStore) DeleteTurns(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, key)
	return nil
}

func (s *InMemoryTranscriptStore) Close() error { return nil }
