// Package genai provides the generative reply backend using the OpenAI API.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/BTreeMap/CareBear/internal/models"
)

var (
	// ErrNotConfigured is returned by NewClient when no API key is available.
	ErrNotConfigured = errors.New("genai: OPENAI_API_KEY not set")
	// ErrNoChoicesReturned is returned when the API answers without a completion.
	ErrNoChoicesReturned = errors.New("no choices returned")
)

const (
	DefaultModel       = string(openai.ChatModelGPT4oMini)
	DefaultTemperature = 0.5
	DefaultMaxTokens   = 300
	// DefaultHistoryTurns is how many previous turns are replayed to the model.
	DefaultHistoryTurns = 6
)

// chatService defines minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat        chatService
	model       string
	temperature float64
	maxTokens   int64
}

// Opts holds configuration for the client.
type Opts struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int64
}

// Option is a functional option for configuring the client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) {
		o.BaseURL = url
	}
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) {
		o.Temperature = t
	}
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int64) Option {
	return func(o *Opts) {
		o.MaxTokens = n
	}
}

// NewClient creates a client. It returns ErrNotConfigured when no API key is given.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)

	slog.Debug("GenAI client created", "model", cfg.Model, "temperature", cfg.Temperature, "maxTokens", cfg.MaxTokens, "customBaseURL", cfg.BaseURL != "")
	return &Client{
		chat:        &cli.Chat.Completions,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// GenerateWithMessages runs one completion over a prepared message list.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(c.maxTokens)
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		slog.Error("GenAI completion failed", "error", err, "model", c.model)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("GenAI completion succeeded", "model", c.model, "contentLength", len(content))
	return content, nil
}

// ReplyRequest is the input for a conversational reply.
type ReplyRequest struct {
	Mood        models.MoodLabel
	UserMessage string
	// History is the session transcript in chronological order.
	History []models.TurnRecord
}

// Reply generates a supportive reply for the user message, replaying recent
// history after a mood-aware system prompt. An empty completion is an error so
// the caller falls back to its own reply.
func (c *Client) Reply(ctx context.Context, req ReplyRequest) (string, error) {
	messages := BuildMessages(req, DefaultHistoryTurns)
	text, err := c.GenerateWithMessages(ctx, messages)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrNoChoicesReturned
	}
	return text, nil
}

// BuildMessages lays out system prompt, the last maxTurns turns and the new
// user message.
func BuildMessages(req ReplyRequest, maxTurns int) []openai.ChatCompletionMessageParamUnion {
	history := req.History
	if maxTurns >= 0 && len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2+2*len(history))
	messages = append(messages, openai.SystemMessage(SystemPrompt(req.Mood)))
	for _, turn := range history {
		if turn.UserMessage != "" {
			messages = append(messages, openai.UserMessage(turn.UserMessage))
		}
		if reply := joinReply(turn.Reply, turn.FollowUp); reply != "" {
			messages = append(messages, openai.AssistantMessage(reply))
		}
	}
	messages = append(messages, openai.UserMessage(req.UserMessage))
	return messages
}

func joinReply(reply, followUp string) string {
	return strings.TrimSpace(reply + " " + followUp)
}
