// Package models defines the core data structures for CareBear.
//
// It includes the mood labels, per-session dialogue state, reply records and
// transcript rows shared across modules, plus the JSON envelopes used by the API.
package models

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Input limits for API requests.
const (
	// MaxMessageLength is how many runes of a message are classified, answered
	// and stored. Crisis screening always sees the whole message.
	MaxMessageLength = 4096
	// MaxSessionKeyLength defines the maximum allowed length for a caller-supplied session key
	MaxSessionKeyLength = 128
)

var (
	ErrSessionKeyTooLong = errors.New("session key exceeds maximum length")
	ErrEmptySessionKey   = errors.New("session key cannot be empty")
)

// APIStatus is the status field of every API envelope.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse is the JSON envelope returned by every HTTP endpoint.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success wraps result in an ok envelope.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage wraps result in an ok envelope carrying a human-readable message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error returns an error envelope.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// Validate checks the session key. Messages are never rejected for length: an
// empty message degrades to a neutral turn and a long one is cut by TruncateMessage
// after screening.
func (r ChatRequest) Validate() error {
	if len(r.SessionID) > MaxSessionKeyLength {
		return ErrSessionKeyTooLong
	}
	return nil
}

// ChatResult is the result payload of POST /chat.
type ChatResult struct {
	SessionID string    `json:"session_id"`
	Reply     string    `json:"reply"`
	FollowUp  string    `json:"follow_up,omitempty"`
	Mood      MoodLabel `json:"mood"`
	Crisis    bool      `json:"crisis"`
	Source    Source    `json:"source"`
}

// SessionRequest is the body of session-scoped actions such as POST /resume.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// Validate ensures a usable session key was supplied.
func (r SessionRequest) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return ErrEmptySessionKey
	}
	if len(r.SessionID) > MaxSessionKeyLength {
		return ErrSessionKeyTooLong
	}
	return nil
}

// ExplainResult is the result payload of GET /why.
type ExplainResult struct {
	SessionID string `json:"session_id"`
	Rationale string `json:"rationale"`
}

// TruncateMessage cuts text to at most MaxMessageLength runes.
func TruncateMessage(text string) string {
	if utf8.RuneCountInString(text) <= MaxMessageLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:MaxMessageLength])
}
