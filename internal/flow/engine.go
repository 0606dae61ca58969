package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/CareBear/internal/crisis"
	"github.com/BTreeMap/CareBear/internal/models"
	"github.com/BTreeMap/CareBear/internal/store"
	"github.com/BTreeMap/CareBear/internal/util"
)

// MoodClassifier maps text to a mood label.
type MoodClassifier interface {
	Classify(text string) models.MoodLabel
}

// CrisisScreener reports whether text contains crisis language.
type CrisisScreener interface {
	IsCrisis(text string) bool
}

// Recorder receives per-turn observations. Implemented by the metrics package.
type Recorder interface {
	ObserveTurn(mood models.MoodLabel, kind models.ResponseKind, crisis bool)
	ObserveResume()
}

// TurnResult is the outcome of one inbound message.
type TurnResult struct {
	SessionKey string                `json:"session_key"`
	Mood       models.MoodLabel      `json:"mood"`
	Crisis     bool                  `json:"crisis"`
	Response   models.ResponseRecord `json:"response"`
}

// Engine is the per-turn pipeline: crisis screen, mood, response selection,
// serialised per session key.
type Engine struct {
	classifier MoodClassifier
	screener   CrisisScreener
	state      StateManager
	responder  *Responder
	locks      *SessionLocks

	picker   util.Picker
	locker   store.Locker
	lockTTL  time.Duration
	recorder Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithPicker sets the random source for reply pools.
func WithPicker(p util.Picker) Option {
	return func(e *Engine) {
		e.picker = p
	}
}

// WithLocker adds a distributed lock taken around every session operation.
func WithLocker(l store.Locker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = l
		e.lockTTL = ttl
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// NewEngine builds an Engine over the given state store.
func NewEngine(classifier MoodClassifier, screener CrisisScreener, st store.StateStore, opts ...Option) *Engine {
	e := &Engine{
		classifier: classifier,
		screener:   screener,
		state:      NewStoreBasedStateManager(st),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.responder = NewResponder(e.state, e.picker)
	e.locks = NewSessionLocks(e.locker, e.lockTTL)
	slog.Debug("Engine created", "distributedLock", e.locker != nil, "metrics", e.recorder != nil)
	return e
}

// ClassifyMood returns the mood of text. It never fails.
func (e *Engine) ClassifyMood(text string) models.MoodLabel {
	return e.classifier.Classify(text)
}

// IsCrisis screens text. It is pure and has no session side effects.
func (e *Engine) IsCrisis(text string) bool {
	return e.screener.IsCrisis(text)
}

// Respond selects the reply for an already classified, already screened message.
// Sessions in crisis mode always get the safety message.
func (e *Engine) Respond(ctx context.Context, mood models.MoodLabel, userMessage, lastBotMessage, key string) (models.ResponseRecord, error) {
	if err := validateKey(key); err != nil {
		return models.ResponseRecord{}, err
	}
	var rec models.ResponseRecord
	err := e.locks.WithLock(ctx, key, func(ctx context.Context) error {
		var err error
		rec, err = e.respond(ctx, mood, userMessage, lastBotMessage, key)
		return err
	})
	return rec, err
}

func (e *Engine) respond(ctx context.Context, mood models.MoodLabel, userMessage, lastBotMessage, key string) (models.ResponseRecord, error) {
	inCrisis, err := e.state.IsCrisis(ctx, key)
	if err != nil {
		return models.ResponseRecord{}, err
	}
	if inCrisis {
		return crisis.SafetyRecord(), nil
	}
	return e.responder.Respond(ctx, mood, userMessage, lastBotMessage, key)
}

// Turn runs the full pipeline for one inbound message and remembers the reply
// so the next turn can see it.
func (e *Engine) Turn(ctx context.Context, key, text string) (TurnResult, error) {
	if err := validateKey(key); err != nil {
		return TurnResult{}, err
	}

	res := TurnResult{SessionKey: key}
	err := e.locks.WithLock(ctx, key, func(ctx context.Context) error {
		// Screening runs first on every turn, over the whole message, including
		// sessions already in crisis mode.
		res.Crisis = e.screener.IsCrisis(text)
		if res.Crisis {
			if err := e.state.SetCrisis(ctx, key); err != nil {
				return err
			}
		}

		text = models.TruncateMessage(text)
		res.Mood = e.classifier.Classify(text)

		st, err := e.state.Load(ctx, key)
		if err != nil {
			return err
		}
		rec, err := e.respond(ctx, res.Mood, text, st.LastBotMessage, key)
		if err != nil {
			return err
		}
		res.Response = rec

		if err := e.state.SetLastTurn(ctx, key, rec.Text(), rec.Rationale); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		slog.Error("Engine Turn failed", "error", err, "sessionKey", key)
		return TurnResult{}, fmt.Errorf("turn failed for session: %w", err)
	}

	if e.recorder != nil {
		e.recorder.ObserveTurn(res.Mood, res.Response.Kind, res.Crisis)
	}
	slog.Debug("Engine Turn", "sessionKey", key, "mood", res.Mood, "crisis", res.Crisis, "kind", res.Response.Kind)
	return res, nil
}

// Resume is the explicit external reset: it clears crisis mode, drops any
// exercise and returns the session to stage start. The declined flag is kept.
func (e *Engine) Resume(ctx context.Context, key string) (models.ResponseRecord, error) {
	if err := validateKey(key); err != nil {
		return models.ResponseRecord{}, err
	}
	err := e.locks.WithLock(ctx, key, func(ctx context.Context) error {
		if err := e.state.Reset(ctx, key); err != nil {
			return err
		}
		return e.state.SetLastTurn(ctx, key, resumeReply.Text(), resumeReply.Rationale)
	})
	if err != nil {
		return models.ResponseRecord{}, fmt.Errorf("resume failed: %w", err)
	}
	if e.recorder != nil {
		e.recorder.ObserveResume()
	}
	slog.Info("Session resumed", "sessionKey", key)
	return resumeReply, nil
}

// Explain returns the rationale behind the last reply, or "" if there has been none.
func (e *Engine) Explain(ctx context.Context, key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	var rationale string
	err := e.locks.WithLock(ctx, key, func(ctx context.Context) error {
		st, err := e.state.Load(ctx, key)
		if err != nil {
			return err
		}
		rationale = st.LastRationale
		return nil
	})
	return rationale, err
}

// State returns a snapshot of the session record.
func (e *Engine) State(ctx context.Context, key string) (*models.SessionState, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	var st *models.SessionState
	err := e.locks.WithLock(ctx, key, func(ctx context.Context) error {
		var err error
		st, err = e.state.Load(ctx, key)
		return err
	})
	return st, err
}

// Forget deletes everything the engine remembers about key.
func (e *Engine) Forget(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return e.locks.WithLock(ctx, key, func(ctx context.Context) error {
		return e.state.Delete(ctx, key)
	})
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return models.ErrEmptySessionKey
	}
	if len(key) > models.MaxSessionKeyLength {
		return models.ErrSessionKeyTooLong
	}
	return nil
}
