// Package flow holds the per-session dialogue engine: the exercise state machine,
// the stage tracker, the response selector and the Engine that ties them to
// the mood classifier and crisis screener.
package flow

import (
	"context"

	"github.com/BTreeMap/CareBear/internal/models"
)

// StateManager reads and mutates the per-session record. Every method is keyed by
// session key; a key that has never been seen behaves as a fresh session in stage start.
type StateManager interface {
	// Load returns the session record, or a fresh one (not yet saved) for an unknown key.
	Load(ctx context.Context, key string) (*models.SessionState, error)

	GetExercise(ctx context.Context, key string) (*models.ExerciseState, error)
	SetExercise(ctx context.Context, key string, ex models.ExerciseState) error
	ClearExercise(ctx context.Context, key string) error

	GetStage(ctx context.Context, key string) (models.Stage, error)
	// AdvanceStage moves the stage forward to `to`. Backward moves are ignored. It returns the resulting stage.
	AdvanceStage(ctx context.Context, key string, to models.Stage) (models.Stage, error)

	IsDeclined(ctx context.Context, key string) (bool, error)
	MarkDeclined(ctx context.Context, key string) error

	IsCrisis(ctx context.Context, key string) (bool, error)
	SetCrisis(ctx context.Context, key string) error

	// SetLastTurn remembers what the bot last said and why.
	SetLastTurn(ctx context.Context, key, botMessage, rationale string) error

	// Reset is the explicit external reset: clears crisis mode and any exercise and
	// returns the stage to start. The declined flag survives.
	Reset(ctx context.Context, key string) error

	// Delete forgets the session entirely.
	Delete(ctx context.Context, key string) error
}
