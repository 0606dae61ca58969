package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/CareBear/internal/models"
)

var (
	// ErrNoActiveExercise is returned by Continue when the session has no exercise in progress.
	// Callers must check Active first; this is a contract violation, not a recoverable state.
	ErrNoActiveExercise = errors.New("no active exercise for session")
	// ErrUnknownExercise is returned by Start for an exercise kind with no script.
	ErrUnknownExercise = errors.New("unknown exercise")
)

// ExerciseStep is what one call to Continue produced.
type ExerciseStep struct {
	Kind      models.ExerciseKind
	Step      int
	Message   string
	Rationale string
	FollowUp  string
	Complete  bool
}

// ExerciseMachine drives the three linear exercise scripts. It holds no state
// of its own; progress lives in the session record.
type ExerciseMachine struct {
	state StateManager
}

// NewExerciseMachine creates an ExerciseMachine over sm.
func NewExerciseMachine(sm StateManager) *ExerciseMachine {
	return &ExerciseMachine{state: sm}
}

// Prompt looks up the prompt for step of kind.
func (m *ExerciseMachine) Prompt(kind models.ExerciseKind, step int) (string, bool) {
	script, ok := exerciseScripts[kind]
	if !ok {
		return "", false
	}
	p, ok := script.Steps[step]
	return p, ok
}

// Active reports whether key has an exercise in progress.
func (m *ExerciseMachine) Active(ctx context.Context, key string) (bool, error) {
	ex, err := m.state.GetExercise(ctx, key)
	if err != nil {
		return false, err
	}
	return ex != nil, nil
}

// Start begins kind for key, discarding any exercise already in progress, and
// returns the opening prompt. The session stage moves to at least pick_ex.
func (m *ExerciseMachine) Start(ctx context.Context, kind models.ExerciseKind, key string) (string, error) {
	script, ok := exerciseScripts[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownExercise, kind)
	}
	if err := m.state.SetExercise(ctx, key, models.ExerciseState{Kind: kind, Step: 1}); err != nil {
		return "", err
	}
	if _, err := m.state.AdvanceStage(ctx, key, models.StagePickEx); err != nil {
		return "", err
	}
	slog.Info("ExerciseMachine Start", "sessionKey", key, "exercise", kind)
	return script.Opening, nil
}

// Continue delivers the next step of the active exercise. When the script has
// no further step the exercise is removed and a closing message is returned.
func (m *ExerciseMachine) Continue(ctx context.Context, key string) (ExerciseStep, error) {
	ex, err := m.state.GetExercise(ctx, key)
	if err != nil {
		return ExerciseStep{}, err
	}
	if ex == nil {
		slog.Error("ExerciseMachine Continue without active exercise", "sessionKey", key)
		return ExerciseStep{}, ErrNoActiveExercise
	}

	script := exerciseScripts[ex.Kind]
	if prompt, ok := script.Steps[ex.Step]; ok {
		next := models.ExerciseState{Kind: ex.Kind, Step: ex.Step + 1}
		if err := m.state.SetExercise(ctx, key, next); err != nil {
			return ExerciseStep{}, err
		}
		slog.Debug("ExerciseMachine Continue", "sessionKey", key, "exercise", ex.Kind, "step", ex.Step)
		return ExerciseStep{
			Kind:      ex.Kind,
			Step:      ex.Step,
			Message:   prompt,
			Rationale: script.Rationale,
		}, nil
	}

	if err := m.state.ClearExercise(ctx, key); err != nil {
		return ExerciseStep{}, err
	}
	slog.Info("ExerciseMachine completed", "sessionKey", key, "exercise", ex.Kind)
	return ExerciseStep{
		Kind:      ex.Kind,
		Step:      ex.Step,
		Message:   closingMessage,
		Rationale: closingRationale,
		FollowUp:  fmt.Sprintf(closingFollowUp, otherExercises(ex.Kind)),
		Complete:  true,
	}, nil
}
