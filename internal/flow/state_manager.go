package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/CareBear/internal/models"
	"github.com/BTreeMap/CareBear/internal/store"
)

// StoreBasedStateManager implements StateManager on top of a store.StateStore.
// It does no locking of its own; callers serialise per session key.
type StoreBasedStateManager struct {
	store store.StateStore
	now   func() time.Time
}

// NewStoreBasedStateManager creates a new StateManager backed by a StateStore.
func NewStoreBasedStateManager(st store.StateStore) *StoreBasedStateManager {
	slog.Debug("Creating StoreBasedStateManager")
	return &StoreBasedStateManager{store: st, now: time.Now}
}

// Load retrieves the session record or a fresh one for an unknown key.
func (sm *StoreBasedStateManager) Load(ctx context.Context, key string) (*models.SessionState, error) {
	st, err := sm.store.GetSessionState(ctx, key)
	if err != nil {
		slog.Error("StateManager Load error", "error", err, "sessionKey", key)
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}
	if st == nil {
		slog.Debug("StateManager Load not found, starting fresh", "sessionKey", key)
		return models.NewSessionState(key, sm.now()), nil
	}
	return st, nil
}

// update loads the record, applies fn and saves it if fn reports a change.
func (sm *StoreBasedStateManager) update(ctx context.Context, key, op string, fn func(*models.SessionState) bool) error {
	st, err := sm.Load(ctx, key)
	if err != nil {
		return err
	}
	if !fn(st) {
		slog.Debug("StateManager "+op+" no change", "sessionKey", key)
		return nil
	}
	st.UpdatedAt = sm.now()
	if err := sm.store.SaveSessionState(ctx, st); err != nil {
		slog.Error("StateManager "+op+" save error", "error", err, "sessionKey", key)
		return fmt.Errorf("failed to save session state: %w", err)
	}
	slog.Debug("StateManager "+op+" succeeded", "sessionKey", key)
	return nil
}

func (sm *StoreBasedStateManager) GetExercise(ctx context.Context, key string) (*models.ExerciseState, error) {
	st, err := sm.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	return st.Exercise, nil
}

// SetExercise replaces any exercise in progress.
func (sm *StoreBasedStateManager) SetExercise(ctx context.Context, key string, ex models.ExerciseState) error {
	return sm.update(ctx, key, "SetExercise", func(st *models.SessionState) bool {
		st.Exercise = &ex
		return true
	})
}

func (sm *StoreBasedStateManager) ClearExercise(ctx context.Context, key string) error {
	return sm.update(ctx, key, "ClearExercise", func(st *models.SessionState) bool {
		if st.Exercise == nil {
			return false
		}
		st.Exercise = nil
		return true
	})
}

func (sm *StoreBasedStateManager) GetStage(ctx context.Context, key string) (models.Stage, error) {
	st, err := sm.Load(ctx, key)
	if err != nil {
		return "", err
	}
	return st.Stage, nil
}

func (sm *StoreBasedStateManager) AdvanceStage(ctx context.Context, key string, to models.Stage) (models.Stage, error) {
	var result models.Stage
	err := sm.update(ctx, key, "AdvanceStage", func(st *models.SessionState) bool {
		if to.Rank() <= st.Stage.Rank() {
			result = st.Stage
			return false
		}
		slog.Info("Session stage advanced", "sessionKey", key, "from", st.Stage, "to", to)
		st.Stage = to
		result = to
		return true
	})
	return result, err
}

func (sm *StoreBasedStateManager) IsDeclined(ctx context.Context, key string) (bool, error) {
	st, err := sm.Load(ctx, key)
	if err != nil {
		return false, err
	}
	return st.Declined, nil
}

func (sm *StoreBasedStateManager) MarkDeclined(ctx context.Context, key string) error {
	return sm.update(ctx, key, "MarkDeclined", func(st *models.SessionState) bool {
		if st.Declined {
			return false
		}
		st.Declined = true
		return true
	})
}

func (sm *StoreBasedStateManager) IsCrisis(ctx context.Context, key string) (bool, error) {
	st, err := sm.Load(ctx, key)
	if err != nil {
		return false, err
	}
	return st.Crisis, nil
}

func (sm *StoreBasedStateManager) SetCrisis(ctx context.Context, key string) error {
	return sm.update(ctx, key, "SetCrisis", func(st *models.SessionState) bool {
		if st.Crisis {
			return false
		}
		slog.Warn("Session entered crisis mode", "sessionKey", key)
		st.Crisis = true
		return true
	})
}

func (sm *StoreBasedStateManager) SetLastTurn(ctx context.Context, key, botMessage, rationale string) error {
	return sm.update(ctx, key, "SetLastTurn", func(st *models.SessionState) bool {
		st.LastBotMessage = botMessage
		st.LastRationale = rationale
		return true
	})
}

func (sm *StoreBasedStateManager) Reset(ctx context.Context, key string) error {
	return sm.update(ctx, key, "Reset", func(st *models.SessionState) bool {
		st.Crisis = false
		st.Exercise = nil
		st.Stage = models.StageStart
		st.LastBotMessage = ""
		return true
	})
}

func (sm *StoreBasedStateManager) Delete(ctx context.Context, key string) error {
	if err := sm.store.DeleteSessionState(ctx, key); err != nil {
		slog.Error("StateManager Delete error", "error", err, "sessionKey", key)
		return fmt.Errorf("failed to delete session state: %w", err)
	}
	return nil
}
