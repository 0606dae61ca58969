package models

import "strings"

// MoodLabel is the closed set of affect labels produced by the classifier.
type MoodLabel string

const (
	MoodHappy   MoodLabel = "happy"
	MoodSad     MoodLabel = "sad"
	MoodAngry   MoodLabel = "angry"
	MoodAnxious MoodLabel = "anxious"
	MoodNeutral MoodLabel = "neutral"
)

// AllMoods lists every label in declaration order.
var AllMoods = []MoodLabel{MoodHappy, MoodSad, MoodAngry, MoodAnxious, MoodNeutral}

// IsValid reports whether m is one of the defined labels.
func (m MoodLabel) IsValid() bool {
	switch m {
	case MoodHappy, MoodSad, MoodAngry, MoodAnxious, MoodNeutral:
		return true
	}
	return false
}

// ParseMoodLabel maps a string onto a label, falling back to neutral.
func ParseMoodLabel(s string) MoodLabel {
	m := MoodLabel(strings.ToLower(strings.TrimSpace(s)))
	if m.IsValid() {
		return m
	}
	return MoodNeutral
}
