package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/BTreeMap/CareBear/internal/models"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   *openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

func completion(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func newTestClient(svc chatService) *Client {
	return &Client{chat: svc, model: "test-model", temperature: 0.5, maxTokens: 100}
}

func TestGenerateWithMessages_Success(t *testing.T) {
	svc := &mockChatService{resp: completion("  Hello World \n")}
	client := newTestClient(svc)

	out, err := client.GenerateWithMessages(context.Background(), []openai.ChatCompletionMessageParamUnion{openai.UserMessage("hi")})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
	if string(svc.params.Model) != "test-model" {
		t.Errorf("expected model test-model, got %s", svc.params.Model)
	}
}

func TestGenerateWithMessages_ServiceError(t *testing.T) {
	client := newTestClient(&mockChatService{err: errors.New("service failure")})
	_, err := client.GenerateWithMessages(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGenerateWithMessages_NoChoices(t *testing.T) {
	client := newTestClient(&mockChatService{resp: &openai.ChatCompletion{}})
	_, err := client.GenerateWithMessages(context.Background(), nil)
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestReply_EmptyContentIsError(t *testing.T) {
	client := newTestClient(&mockChatService{resp: completion("   ")})
	_, err := client.Reply(context.Background(), ReplyRequest{Mood: models.MoodSad, UserMessage: "hi"})
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned for empty content, got %v", err)
	}
}

func TestReply_SendsHistory(t *testing.T) {
	svc := &mockChatService{resp: completion("I'm here for you.")}
	client := newTestClient(svc)

	history := []models.TurnRecord{
		{UserMessage: "hi", Reply: "Hello!", FollowUp: "How are you?"},
		{UserMessage: "not great", Reply: "I'm sorry to hear that."},
	}
	out, err := client.Reply(context.Background(), ReplyRequest{Mood: models.MoodSad, UserMessage: "work is hard", History: history})
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if out != "I'm here for you." {
		t.Errorf("unexpected reply %q", out)
	}
	// system + 2 user/assistant pairs + new user message
	if got := len(svc.params.Messages); got != 6 {
		t.Errorf("expected 6 messages, got %d", got)
	}
}

func TestBuildMessages_TruncatesHistory(t *testing.T) {
	var history []models.TurnRecord
	for i := 0; i < 10; i++ {
		history = append(history, models.TurnRecord{UserMessage: "u", Reply: "r"})
	}
	msgs := BuildMessages(ReplyRequest{Mood: models.MoodNeutral, UserMessage: "now", History: history}, 3)
	if len(msgs) != 1+2*3+1 {
		t.Errorf("expected %d messages, got %d", 1+2*3+1, len(msgs))
	}
}

func TestSystemPrompt(t *testing.T) {
	for _, mood := range models.AllMoods {
		p := SystemPrompt(mood)
		if !strings.Contains(p, "CareBear") || !strings.Contains(p, "<MOOD POLICY>") {
			t.Errorf("%s prompt missing persona or policy: %q", mood, p)
		}
	}
	if !strings.Contains(SystemPrompt(models.MoodAnxious), "paced breathing") {
		t.Error("anxious prompt should mention the exercises")
	}
	if SystemPrompt(models.MoodLabel("bogus")) != SystemPrompt(models.MoodNeutral) {
		t.Error("unknown mood should use the neutral guide")
	}
}

func TestNewClient_NoKey(t *testing.T) {
	_, err := NewClient()
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"), WithBaseURL("http://localhost:1234/v1"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli.Model() != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %s", cli.Model())
	}
}
