package models

import (
	"strings"
	"time"
)

// ResponseKind names the rule that produced a reply.
type ResponseKind string

const (
	KindSafety           ResponseKind = "safety"
	KindExercise         ResponseKind = "exercise"
	KindExerciseComplete ResponseKind = "exercise_complete"
	KindAcknowledgment   ResponseKind = "acknowledgment"
	KindDecline          ResponseKind = "decline"
	KindStage            ResponseKind = "stage"
	KindSmallTalk        ResponseKind = "small_talk"
	KindMood             ResponseKind = "mood"
)

// Conversational reports whether a generative backend may rephrase replies of this kind.
func (k ResponseKind) Conversational() bool {
	return k == KindMood || k == KindSmallTalk
}

// Source records who produced the text the user finally saw.
type Source string

const (
	SourceEngine Source = "engine"
	SourceGenAI  Source = "genai"
	SourceSafety Source = "safety"
)

// ResponseRecord is one reply. An empty FollowUp means there is none.
type ResponseRecord struct {
	Message   string       `json:"message"`
	Rationale string       `json:"rationale"`
	FollowUp  string       `json:"follow_up,omitempty"`
	Kind      ResponseKind `json:"kind"`
}

// Text joins the message and follow-up the way the chat surface shows them.
func (r ResponseRecord) Text() string {
	if r.FollowUp == "" {
		return r.Message
	}
	return strings.TrimSpace(r.Message + " " + r.FollowUp)
}

// TurnRecord is one row of a session transcript.
type TurnRecord struct {
	ID          int64        `json:"id,omitempty"`
	SessionKey  string       `json:"session_key"`
	UserMessage string       `json:"user_message"`
	Mood        MoodLabel    `json:"mood"`
	Crisis      bool         `json:"crisis"`
	Reply       string       `json:"reply"`
	FollowUp    string       `json:"follow_up,omitempty"`
	Rationale   string       `json:"rationale,omitempty"`
	Kind        ResponseKind `json:"kind"`
	Source      Source       `json:"source"`
	CreatedAt   time.Time    `json:"created_at"`
}
