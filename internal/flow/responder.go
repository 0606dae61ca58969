package flow

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/CareBear/internal/models"
	"github.com/BTreeMap/CareBear/internal/util"
)

// Responder picks the reply for a non-crisis turn. Rules are tried in a fixed
// order and the first that applies wins:
//
//  1. an active exercise continues
//  2. gratitude or uncertainty gets an acknowledgment
//  3. a named technique starts that exercise
//  4. "yes" to a bot message that named a technique starts it
//  5. "no" to a bot message that offered a technique declines
//  6. the stage tracker
//  7. weather small talk
//  8. the mood pool
type Responder struct {
	state     StateManager
	exercises *ExerciseMachine
	stages    *StageTracker
	picker    util.Picker
}

// NewResponder wires a Responder. A nil picker draws from the runtime generator.
func NewResponder(sm StateManager, picker util.Picker) *Responder {
	if picker == nil {
		picker = util.EntropyPicker{}
	}
	exercises := NewExerciseMachine(sm)
	return &Responder{
		state:     sm,
		exercises: exercises,
		stages:    NewStageTracker(sm, exercises),
		picker:    picker,
	}
}

// Respond selects the reply for userMessage. lastBotMessage is the full text of the
// previous bot turn (message plus follow-up).
func (r *Responder) Respond(ctx context.Context, mood models.MoodLabel, userMessage, lastBotMessage, key string) (models.ResponseRecord, error) {
	u := parseUtterance(userMessage)

	// 1
	active, err := r.exercises.Active(ctx, key)
	if err != nil {
		return models.ResponseRecord{}, err
	}
	if active {
		step, err := r.exercises.Continue(ctx, key)
		if err != nil {
			return models.ResponseRecord{}, err
		}
		return r.exerciseRecord(ctx, key, step)
	}

	// 2
	if u.isGratitude() {
		slog.Debug("Responder acknowledgment", "sessionKey", key, "reason", "gratitude")
		return acknowledgmentReply, nil
	}
	if u.isUncertain() {
		slog.Debug("Responder acknowledgment", "sessionKey", key, "reason", "uncertainty")
		return uncertaintyReply, nil
	}

	// 3
	if kind, ok := u.technique(); ok {
		rec, _, err := startExercise(ctx, r.exercises, kind, key)
		return rec, err
	}

	offered, wasOffered := offeredTechnique(lastBotMessage)

	// 4
	if wasOffered && u.isAffirmative() {
		slog.Debug("Responder accepted offered technique", "sessionKey", key, "exercise", offered)
		rec, _, err := startExercise(ctx, r.exercises, offered, key)
		return rec, err
	}

	// 5
	if wasOffered && u.isDecline() {
		rec, _, err := decline(ctx, r.state, key)
		return rec, err
	}

	// 6
	rec, handled, err := r.stages.Advance(ctx, key, userMessage)
	if err != nil {
		return models.ResponseRecord{}, err
	}
	if handled {
		return rec, nil
	}

	// 7
	if u.isSmallTalk() {
		reply := util.Pick(r.picker, smallTalkReplies)
		return models.ResponseRecord{
			Message:   reply.Message,
			Rationale: reply.Rationale,
			FollowUp:  reply.FollowUp,
			Kind:      models.KindSmallTalk,
		}, nil
	}

	// 8
	return r.moodRecord(ctx, mood, key, wasOffered)
}

func (r *Responder) exerciseRecord(ctx context.Context, key string, step ExerciseStep) (models.ResponseRecord, error) {
	rec := models.ResponseRecord{
		Message:   step.Message,
		Rationale: step.Rationale,
		Kind:      models.KindExercise,
	}
	if !step.Complete {
		return rec, nil
	}
	rec.Kind = models.KindExerciseComplete
	declined, err := r.state.IsDeclined(ctx, key)
	if err != nil {
		return models.ResponseRecord{}, err
	}
	if !declined {
		rec.FollowUp = step.FollowUp
	}
	return rec, nil
}

// moodRecord draws from the mood pool. The follow-up is dropped when the previous
// bot message already offered a technique or the session has declined suggestions.
func (r *Responder) moodRecord(ctx context.Context, mood models.MoodLabel, key string, alreadyOffered bool) (models.ResponseRecord, error) {
	pool, ok := moodPools[mood]
	if !ok {
		pool = moodPools[models.MoodNeutral]
	}
	reply := util.Pick(r.picker, pool)

	rec := models.ResponseRecord{
		Message:   reply.Message,
		Rationale: reply.Rationale,
		FollowUp:  reply.FollowUp,
		Kind:      models.KindMood,
	}

	declined, err := r.state.IsDeclined(ctx, key)
	if err != nil {
		return models.ResponseRecord{}, err
	}
	if declined || alreadyOffered {
		slog.Debug("Responder suppressed follow-up", "sessionKey", key, "declined", declined, "alreadyOffered", alreadyOffered)
		rec.FollowUp = ""
	}
	return rec, nil
}
