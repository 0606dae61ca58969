package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BTreeMap/CareBear/internal/models"
	"github.com/BTreeMap/CareBear/internal/store"
)

func newTestMachine() (*ExerciseMachine, *StoreBasedStateManager) {
	sm := NewStoreBasedStateManager(store.NewMemoryStateStore())
	return NewExerciseMachine(sm), sm
}

func TestGroundingProgression(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMachine()

	opening, err := m.Start(ctx, models.ExerciseGrounding, "sid")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if opening == "" {
		t.Fatal("Start should return an opening prompt")
	}

	seen := make(map[string]bool)
	for i := 1; i <= 5; i++ {
		step, err := m.Continue(ctx, "sid")
		if err != nil {
			t.Fatalf("Continue %d failed: %v", i, err)
		}
		if step.Complete {
			t.Fatalf("Continue %d completed too early", i)
		}
		if step.Step != i {
			t.Errorf("Continue %d delivered step %d", i, step.Step)
		}
		if seen[step.Message] {
			t.Errorf("Continue %d repeated prompt %q", i, step.Message)
		}
		seen[step.Message] = true
	}

	closing, err := m.Continue(ctx, "sid")
	if err != nil {
		t.Fatalf("closing Continue failed: %v", err)
	}
	if !closing.Complete {
		t.Fatal("sixth Continue should complete the exercise")
	}
	if !strings.Contains(closing.FollowUp, "different exercise") {
		t.Errorf("closing follow-up should suggest a different exercise, got %q", closing.FollowUp)
	}
	if strings.Contains(closing.FollowUp, "grounding") {
		t.Errorf("closing follow-up should only name the other exercises, got %q", closing.FollowUp)
	}

	active, err := m.Active(ctx, "sid")
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if active {
		t.Error("exercise state should be removed after completion")
	}

	if _, err := m.Continue(ctx, "sid"); !errors.Is(err, ErrNoActiveExercise) {
		t.Errorf("Continue after completion should return ErrNoActiveExercise, got %v", err)
	}
}

func TestExerciseLengths(t *testing.T) {
	tests := []struct {
		kind  models.ExerciseKind
		steps int
	}{
		{models.ExerciseGrounding, 5},
		{models.ExerciseBreathing, 4},
		{models.ExerciseReframing, 5},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			ctx := context.Background()
			m, _ := newTestMachine()
			if _, err := m.Start(ctx, tt.kind, "sid"); err != nil {
				t.Fatalf("Start failed: %v", err)
			}
			for i := 1; i <= tt.steps; i++ {
				step, err := m.Continue(ctx, "sid")
				if err != nil || step.Complete {
					t.Fatalf("step %d: complete=%v err=%v", i, step.Complete, err)
				}
				if want, _ := m.Prompt(tt.kind, i); step.Message != want {
					t.Errorf("step %d message = %q, want %q", i, step.Message, want)
				}
			}
			step, err := m.Continue(ctx, "sid")
			if err != nil || !step.Complete {
				t.Fatalf("expected completion after %d steps, got complete=%v err=%v", tt.steps, step.Complete, err)
			}
		})
	}
}

func TestStartDiscardsExerciseInProgress(t *testing.T) {
	ctx := context.Background()
	m, sm := newTestMachine()

	if _, err := m.Start(ctx, models.ExerciseGrounding, "sid"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, err := m.Continue(ctx, "sid"); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := m.Start(ctx, models.ExerciseBreathing, "sid"); err != nil {
		t.Fatalf("Start breathing failed: %v", err)
	}
	step, err := m.Continue(ctx, "sid")
	if err != nil {
		t.Fatalf("Continue failed: %v", err)
	}
	want, _ := m.Prompt(models.ExerciseBreathing, 1)
	if step.Kind != models.ExerciseBreathing || step.Message != want {
		t.Errorf("expected first breathing step, got %+v", step)
	}

	ex, err := sm.GetExercise(ctx, "sid")
	if err != nil {
		t.Fatal(err)
	}
	if ex == nil || ex.Kind != models.ExerciseBreathing || ex.Step != 2 {
		t.Errorf("unexpected exercise state: %+v", ex)
	}
}

func TestStartUnknownExercise(t *testing.T) {
	m, _ := newTestMachine()
	if _, err := m.Start(context.Background(), models.ExerciseKind("yoga"), "sid"); !errors.Is(err, ErrUnknownExercise) {
		t.Errorf("expected ErrUnknownExercise, got %v", err)
	}
}

func TestStartAdvancesStageToPickEx(t *testing.T) {
	ctx := context.Background()
	m, sm := newTestMachine()
	if _, err := m.Start(ctx, models.ExerciseReframing, "sid"); err != nil {
		t.Fatal(err)
	}
	stage, err := sm.GetStage(ctx, "sid")
	if err != nil {
		t.Fatal(err)
	}
	if stage != models.StagePickEx {
		t.Errorf("stage = %q, want pick_ex", stage)
	}
}

func TestPromptLookup(t *testing.T) {
	m, _ := newTestMachine()
	if _, ok := m.Prompt(models.ExerciseBreathing, 5); ok {
		t.Error("breathing has no step 5")
	}
	if _, ok := m.Prompt(models.ExerciseGrounding, 0); ok {
		t.Error("steps are 1-based")
	}
	if p, ok := m.Prompt(models.ExerciseGrounding, 1); !ok || !strings.Contains(p, "5") {
		t.Errorf("grounding step 1 should ask for five things, got %q", p)
	}
}

func TestStateManagerStageIsMonotonic(t *testing.T) {
	ctx := context.Background()
	sm := NewStoreBasedStateManager(store.NewMemoryStateStore())

	if stage, _ := sm.GetStage(ctx, "new"); stage != models.StageStart {
		t.Errorf("unknown session should be in stage start, got %q", stage)
	}
	if got, err := sm.AdvanceStage(ctx, "k", models.StageFreeChat); err != nil || got != models.StageFreeChat {
		t.Fatalf("AdvanceStage forward = %q, %v", got, err)
	}
	if got, err := sm.AdvanceStage(ctx, "k", models.StageChoice); err != nil || got != models.StageFreeChat {
		t.Errorf("backward move should be ignored, got %q, %v", got, err)
	}
}

func TestStateManagerResetKeepsDeclined(t *testing.T) {
	ctx := context.Background()
	sm := NewStoreBasedStateManager(store.NewMemoryStateStore())

	if err := sm.MarkDeclined(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := sm.SetCrisis(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := sm.SetExercise(ctx, "k", models.ExerciseState{Kind: models.ExerciseGrounding, Step: 3}); err != nil {
		t.Fatal(err)
	}
	if _, err := sm.AdvanceStage(ctx, "k", models.StageFreeChat); err != nil {
		t.Fatal(err)
	}

	if err := sm.Reset(ctx, "k"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	st, err := sm.Load(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if st.Crisis || st.Exercise != nil || st.Stage != models.StageStart {
		t.Errorf("Reset left state behind: %+v", st)
	}
	if !st.Declined {
		t.Error("Reset must keep the declined flag")
	}
}
