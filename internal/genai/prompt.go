package genai

import (
	"strings"

	"github.com/BTreeMap/CareBear/internal/models"
)

const basePrompt = `You are CareBear, a warm and supportive wellbeing chat companion.
You are not a therapist and you never diagnose, label conditions or recommend medication.
Reply in two or three short sentences of plain text and ask at most one question.`

var moodGuides = map[models.MoodLabel][]string{
	models.MoodSad: {
		"The user seems low. Validate the feeling before anything else.",
		"Do not rush to fix things or look on the bright side.",
	},
	models.MoodAnxious: {
		"The user seems anxious. Keep a calm, slow pace.",
		"You may gently mention that grounding, paced breathing or reframing are available.",
	},
	models.MoodAngry: {
		"The user seems frustrated or angry. Acknowledge that the anger makes sense.",
		"Stay steady and non-defensive.",
	},
	models.MoodHappy: {
		"The user seems in good spirits. Share their positivity and invite them to say more.",
	},
	models.MoodNeutral: {
		"Keep an open, curious stance and invite the user to share what is on their mind.",
	},
}

// SystemPrompt builds the system message for a reply to a user in the given mood.
func SystemPrompt(mood models.MoodLabel) string {
	guides, ok := moodGuides[mood]
	if !ok {
		guides = moodGuides[models.MoodNeutral]
	}

	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n<MOOD POLICY>\n")
	for _, g := range guides {
		b.WriteString("- ")
		b.WriteString(g)
		b.WriteString("\n")
	}
	b.WriteString("- NEVER mirror hostility, sarcasm, insults, or unsafe language.\n")
	b.WriteString("</MOOD POLICY>\n")
	return b.String()
}
