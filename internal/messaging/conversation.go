// Package messaging runs chat turns for every inbound surface (HTTP, Twilio,
// WhatsApp, the terminal) and records them in the transcript.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/CareBear/internal/flow"
	"github.com/BTreeMap/CareBear/internal/genai"
	"github.com/BTreeMap/CareBear/internal/models"
	"github.com/BTreeMap/CareBear/internal/store"
)

// Engine is the subset of *flow.Engine a Conversation drives.
type Engine interface {
	Turn(ctx context.Context, key, text string) (flow.TurnResult, error)
	Resume(ctx context.Context, key string) (models.ResponseRecord, error)
	Explain(ctx context.Context, key string) (string, error)
	Forget(ctx context.Context, key string) error
}

// Replier generates conversational reply text. Implemented by *genai.Client.
type Replier interface {
	Reply(ctx context.Context, req genai.ReplyRequest) (string, error)
}

// Observer receives conversation-level metrics. Implemented by *metrics.Metrics.
type Observer interface {
	ObserveGenAI(outcome string)
	ObserveTranscript(err error)
}

// Conversation wraps the engine with the generative backend and transcript logging.
type Conversation struct {
	engine       Engine
	transcripts  store.TranscriptStore
	replier      Replier
	observer     Observer
	historyTurns int
	now          func() time.Time
}

// ConversationOption configures a Conversation.
type ConversationOption func(*Conversation)

// WithReplier makes the generative backend the primary source of conversational replies.
func WithReplier(r Replier) ConversationOption {
	return func(c *Conversation) {
		c.replier = r
	}
}

// WithTranscripts sets where turns are recorded. Defaults to process memory.
func WithTranscripts(ts store.TranscriptStore) ConversationOption {
	return func(c *Conversation) {
		c.transcripts = ts
	}
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) ConversationOption {
	return func(c *Conversation) {
		c.observer = o
	}
}

// NewConversation creates a Conversation over engine.
func NewConversation(engine Engine, opts ...ConversationOption) *Conversation {
	c := &Conversation{
		engine:       engine,
		historyTurns: genai.DefaultHistoryTurns,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transcripts == nil {
		c.transcripts = store.NewInMemoryTranscriptStore()
	}
	return c
}

// Chat runs one turn. Conversational replies (mood, small talk) are generated by
// the replier when one is configured; any replier failure falls back to the
// engine reply. Everything else, including the safety message, always comes
// from the engine.
func (c *Conversation) Chat(ctx context.Context, key, text string) (models.ChatResult, error) {
	res, err := c.engine.Turn(ctx, key, text)
	if err != nil {
		return models.ChatResult{}, err
	}
	text = models.TruncateMessage(text)

	rec := res.Response
	result := models.ChatResult{
		SessionID: key,
		Reply:     rec.Message,
		FollowUp:  rec.FollowUp,
		Mood:      res.Mood,
		Crisis:    res.Crisis,
		Source:    models.SourceEngine,
	}
	if rec.Kind == models.KindSafety {
		result.Source = models.SourceSafety
	}

	if c.replier != nil && rec.Kind.Conversational() {
		if reply, ok := c.generate(ctx, key, text, res.Mood); ok {
			result.Reply = reply
			result.Source = models.SourceGenAI
		}
	}

	c.record(ctx, models.TurnRecord{
		SessionKey:  key,
		UserMessage: text,
		Mood:        res.Mood,
		Crisis:      res.Crisis,
		Reply:       result.Reply,
		FollowUp:    result.FollowUp,
		Rationale:   rec.Rationale,
		Kind:        rec.Kind,
		Source:      result.Source,
		CreatedAt:   c.now(),
	})
	return result, nil
}

func (c *Conversation) generate(ctx context.Context, key, text string, mood models.MoodLabel) (string, bool) {
	history, err := c.transcripts.ListTurns(ctx, key, c.historyTurns)
	if err != nil {
		slog.Warn("Conversation history unavailable, generating without it", "sessionKey", key, "error", err)
		history = nil
	}
	reply, err := c.replier.Reply(ctx, genai.ReplyRequest{Mood: mood, UserMessage: text, History: history})
	if err != nil {
		slog.Warn("Conversation generative reply failed, using engine reply", "sessionKey", key, "error", err)
		c.observeGenAI("fallback")
		return "", false
	}
	c.observeGenAI("ok")
	return reply, true
}

// record appends to the transcript. A failed write never fails the turn.
func (c *Conversation) record(ctx context.Context, turn models.TurnRecord) {
	err := c.transcripts.AddTurn(ctx, turn)
	if err != nil {
		slog.Warn("Conversation transcript write failed", "sessionKey", turn.SessionKey, "error", err)
	}
	if c.observer != nil {
		c.observer.ObserveTranscript(err)
	}
}

func (c *Conversation) observeGenAI(outcome string) {
	if c.observer != nil {
		c.observer.ObserveGenAI(outcome)
	}
}

// Resume takes the session out of crisis mode and returns the check-in message.
func (c *Conversation) Resume(ctx context.Context, key string) (models.ChatResult, error) {
	rec, err := c.engine.Resume(ctx, key)
	if err != nil {
		return models.ChatResult{}, err
	}
	c.record(ctx, models.TurnRecord{
		SessionKey: key,
		Mood:       models.MoodNeutral,
		Reply:      rec.Message,
		FollowUp:   rec.FollowUp,
		Rationale:  rec.Rationale,
		Kind:       rec.Kind,
		Source:     models.SourceEngine,
		CreatedAt:  c.now(),
	})
	return models.ChatResult{
		SessionID: key,
		Reply:     rec.Message,
		FollowUp:  rec.FollowUp,
		Mood:      models.MoodNeutral,
		Source:    models.SourceEngine,
	}, nil
}

// Explain returns the rationale behind the last reply.
func (c *Conversation) Explain(ctx context.Context, key string) (string, error) {
	return c.engine.Explain(ctx, key)
}

// Transcript lists the most recent turns of a session.
func (c *Conversation) Transcript(ctx context.Context, key string, limit int) ([]models.TurnRecord, error) {
	turns, err := c.transcripts.ListTurns(ctx, key, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	return turns, nil
}

// Forget removes the session state and its transcript.
func (c *Conversation) Forget(ctx context.Context, key string) error {
	if err := c.engine.Forget(ctx, key); err != nil {
		return err
	}
	if err := c.transcripts.DeleteTurns(ctx, key); err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	slog.Info("Conversation forgotten", "sessionKey", key)
	return nil
}
