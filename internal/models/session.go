package models

import "time"

// ExerciseKind identifies one of the guided coping exercises.
type ExerciseKind string

const (
	ExerciseGrounding ExerciseKind = "grounding"
	ExerciseBreathing ExerciseKind = "breathing"
	ExerciseReframing ExerciseKind = "reframing"
)

// ExerciseOrder is the keyword precedence used whenever several techniques are named at once.
var ExerciseOrder = []ExerciseKind{ExerciseGrounding, ExerciseBreathing, ExerciseReframing}

// IsValid reports whether k names a known exercise.
func (k ExerciseKind) IsValid() bool {
	switch k {
	case ExerciseGrounding, ExerciseBreathing, ExerciseReframing:
		return true
	}
	return false
}

// ExerciseState tracks progress through one exercise. Step is the next step prompt to deliver.
type ExerciseState struct {
	Kind ExerciseKind `json:"kind"`
	Step int          `json:"step"`
}

// Stage is the coarse conversational stage of a session.
type Stage string

const (
	StageStart    Stage = "start"
	StageChoice   Stage = "choice"
	StagePickEx   Stage = "pick_ex"
	StageFreeChat Stage = "free_chat"
)

// Rank orders stages so that advancement can be kept monotonic.
func (s Stage) Rank() int {
	switch s {
	case StageChoice:
		return 1
	case StagePickEx:
		return 2
	case StageFreeChat:
		return 3
	default:
		return 0
	}
}

// SessionState is everything the engine remembers about one session key.
type SessionState struct {
	SessionKey     string         `json:"session_key"`
	Exercise       *ExerciseState `json:"exercise,omitempty"`
	Stage          Stage          `json:"stage"`
	Declined       bool           `json:"declined,omitempty"`
	Crisis         bool           `json:"crisis,omitempty"`
	LastBotMessage string         `json:"last_bot_message,omitempty"`
	LastRationale  string         `json:"last_rationale,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewSessionState returns the state of a session on first contact.
func NewSessionState(key string, now time.Time) *SessionState {
	return &SessionState{
		SessionKey: key,
		Stage:      StageStart,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
