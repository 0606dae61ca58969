package flow

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/CareBear/internal/models"
)

// StageTracker runs the coarse conversational stages:
// start -> choice -> {free_chat | pick_ex} -> free_chat.
type StageTracker struct {
	state     StateManager
	exercises *ExerciseMachine
}

// NewStageTracker creates a StageTracker. Technique picks are delegated to exercises.
func NewStageTracker(sm StateManager, exercises *ExerciseMachine) *StageTracker {
	return &StageTracker{state: sm, exercises: exercises}
}

// Advance applies the transition for message, if any. handled is false when the
// current stage has nothing to say about this message.
func (t *StageTracker) Advance(ctx context.Context, key, message string) (models.ResponseRecord, bool, error) {
	stage, err := t.state.GetStage(ctx, key)
	if err != nil {
		return models.ResponseRecord{}, false, err
	}
	u := parseUtterance(message)

	switch stage {
	case models.StageStart:
		if _, err := t.state.AdvanceStage(ctx, key, models.StageChoice); err != nil {
			return models.ResponseRecord{}, false, err
		}
		return choiceReply, true, nil

	case models.StageChoice:
		switch {
		case u.wantsToTalk():
			if _, err := t.state.AdvanceStage(ctx, key, models.StageFreeChat); err != nil {
				return models.ResponseRecord{}, false, err
			}
			return talkReply, true, nil
		case u.wantsCalming():
			if _, err := t.state.AdvanceStage(ctx, key, models.StagePickEx); err != nil {
				return models.ResponseRecord{}, false, err
			}
			return pickExerciseReply, true, nil
		}

	case models.StagePickEx:
		kind, named := u.technique()
		if !named {
			kind, named = u.pickedNumber()
		}
		if named {
			return startExercise(ctx, t.exercises, kind, key)
		}
		if u.isDecline() {
			return decline(ctx, t.state, key)
		}
	}

	slog.Debug("StageTracker no transition", "sessionKey", key, "stage", stage)
	return models.ResponseRecord{}, false, nil
}

func startExercise(ctx context.Context, m *ExerciseMachine, kind models.ExerciseKind, key string) (models.ResponseRecord, bool, error) {
	opening, err := m.Start(ctx, kind, key)
	if err != nil {
		return models.ResponseRecord{}, false, err
	}
	return models.ResponseRecord{
		Message:   opening,
		Rationale: exerciseScripts[kind].Rationale,
		Kind:      models.KindExercise,
	}, true, nil
}

// decline flags the session and moves it to free chat.
func decline(ctx context.Context, sm StateManager, key string) (models.ResponseRecord, bool, error) {
	if err := sm.MarkDeclined(ctx, key); err != nil {
		return models.ResponseRecord{}, false, err
	}
	if _, err := sm.AdvanceStage(ctx, key, models.StageFreeChat); err != nil {
		return models.ResponseRecord{}, false, err
	}
	slog.Info("Session declined suggestions", "sessionKey", key)
	return declineReply, true, nil
}
