package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/BTreeMap/CareBear/internal/store"
)

// Sender delivers a reply to a messaging recipient. Implemented by the Twilio
// and whatsmeow clients.
type Sender interface {
	SendReply(ctx context.Context, to, message, followUp string) error
}

// Command is a slash command a user can type instead of a message.
type Command string

const (
	CommandResume Command = "/resume"
	CommandWhy    Command = "/why"
	CommandQuit   Command = "/quit"
)

// ParseCommand recognises a slash command.
func ParseCommand(text string) (Command, bool) {
	switch c := Command(strings.ToLower(strings.TrimSpace(text))); c {
	case CommandResume, CommandWhy, CommandQuit:
		return c, true
	}
	return "", false
}

const (
	errorMessage   = "Sorry, something went wrong on my side. Please try again in a moment."
	noRationaleMsg = "I haven't said anything yet, so there's nothing to explain."
)

var phoneNumberRegex = regexp.MustCompile(`\D`)

// CanonicalizePhone strips everything but digits and requires at least 6 of them.
func CanonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	if canonical != recipient {
		slog.Debug("ResponseHandler canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// ResponseHandler answers inbound messages from a messaging channel. Each sender
// number is its own session, namespaced by keyPrefix.
type ResponseHandler struct {
	conv      *Conversation
	sender    Sender
	keyPrefix string
	dedup     store.InboundDeduper
}

// HandlerOption configures a ResponseHandler.
type HandlerOption func(*ResponseHandler)

// WithDeduper drops redelivered messages in ProcessInbound.
func WithDeduper(d store.InboundDeduper) HandlerOption {
	return func(rh *ResponseHandler) {
		rh.dedup = d
	}
}

// NewResponseHandler creates a handler that replies through sender.
func NewResponseHandler(conv *Conversation, sender Sender, keyPrefix string, opts ...HandlerOption) *ResponseHandler {
	rh := &ResponseHandler{conv: conv, sender: sender, keyPrefix: keyPrefix}
	for _, opt := range opts {
		opt(rh)
	}
	return rh
}

// SessionKey returns the session key used for a sender.
func (rh *ResponseHandler) SessionKey(from string) (string, error) {
	canonical, err := CanonicalizePhone(from)
	if err != nil {
		return "", err
	}
	return rh.keyPrefix + canonical, nil
}

// ProcessMessage runs a turn for an inbound message and sends the reply back.
// "/resume" and "/why" are handled as commands.
func (rh *ResponseHandler) ProcessMessage(ctx context.Context, from, body string) error {
	canonical, err := CanonicalizePhone(from)
	if err != nil {
		slog.Error("ResponseHandler ProcessMessage validation failed", "error", err, "from", from)
		return fmt.Errorf("invalid sender: %w", err)
	}
	key := rh.keyPrefix + canonical
	slog.Debug("ResponseHandler processing message", "from", canonical, "body_length", len(body))

	message, followUp, err := rh.answer(ctx, key, body)
	if err != nil {
		slog.Error("ResponseHandler turn failed", "error", err, "from", canonical)
		if sendErr := rh.sender.SendReply(ctx, canonical, errorMessage, ""); sendErr != nil {
			slog.Error("ResponseHandler failed to send error message", "error", sendErr, "from", canonical)
		}
		return fmt.Errorf("turn failed: %w", err)
	}

	if err := rh.sender.SendReply(ctx, canonical, message, followUp); err != nil {
		slog.Error("ResponseHandler failed to send reply", "error", err, "from", canonical)
		return fmt.Errorf("failed to send reply: %w", err)
	}
	slog.Info("ResponseHandler replied", "from", canonical)
	return nil
}

// ProcessInbound is ProcessMessage for channels that give each message an ID.
// A message ID already recorded by the deduper is dropped without a reply. If
// the deduper fails the message is answered anyway.
func (rh *ResponseHandler) ProcessInbound(ctx context.Context, messageID, from, body string) error {
	if rh.dedup == nil || messageID == "" {
		return rh.ProcessMessage(ctx, from, body)
	}

	fresh, err := rh.dedup.RecordInbound(ctx, messageID, from)
	switch {
	case err != nil:
		slog.Warn("ResponseHandler dedup check failed, answering anyway", "error", err, "messageID", messageID)
	case !fresh:
		slog.Info("ResponseHandler dropped redelivered message", "messageID", messageID)
		return nil
	}

	if err := rh.ProcessMessage(ctx, from, body); err != nil {
		return err
	}
	if err := rh.dedup.MarkProcessed(ctx, messageID); err != nil {
		slog.Warn("ResponseHandler failed to mark message processed", "error", err, "messageID", messageID)
	}
	return nil
}

func (rh *ResponseHandler) answer(ctx context.Context, key, body string) (string, string, error) {
	cmd, isCmd := ParseCommand(body)
	switch {
	case isCmd && cmd == CommandResume:
		res, err := rh.conv.Resume(ctx, key)
		return res.Reply, res.FollowUp, err
	case isCmd && cmd == CommandWhy:
		why, err := rh.conv.Explain(ctx, key)
		if why == "" {
			why = noRationaleMsg
		}
		return why, "", err
	}
	res, err := rh.conv.Chat(ctx, key, body)
	return res.Reply, res.FollowUp, err
}
