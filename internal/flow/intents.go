package flow

import (
	"slices"
	"strings"

	"github.com/BTreeMap/CareBear/internal/models"
	"github.com/BTreeMap/CareBear/internal/util"
)

// utterance is a message normalised once for all intent checks.
type utterance struct {
	text   string
	tokens []string
}

func parseUtterance(s string) utterance {
	text := util.NormalizeText(s)
	return utterance{text: text, tokens: util.Tokenize(text)}
}

func (u utterance) hasToken(words ...string) bool {
	for _, t := range u.tokens {
		if slices.Contains(words, t) {
			return true
		}
	}
	return false
}

func (u utterance) hasPhrase(phrases ...string) bool {
	for _, p := range phrases {
		if util.ContainsPhrase(u.tokens, p) {
			return true
		}
	}
	return false
}

// techniqueKeywords are the words that name an exercise in a user message.
var techniqueKeywords = map[models.ExerciseKind][]string{
	models.ExerciseGrounding: {"grounding", "5-4-3-2-1", "54321"},
	models.ExerciseBreathing: {"breathe", "breathing"},
	models.ExerciseReframing: {"reframe", "reframing", "thought"},
}

// offerKeywords also catch looser wording in our own replies ("take a breath",
// "ground yourself"). They are too common in ordinary speech for user messages.
var offerKeywords = map[models.ExerciseKind][]string{
	models.ExerciseGrounding: {"grounding", "ground", "5-4-3-2-1", "54321"},
	models.ExerciseBreathing: {"breathe", "breathing", "breath", "breaths"},
	models.ExerciseReframing: {"reframe", "reframing", "thought", "thoughts"},
}

func (u utterance) firstTechnique(keywords map[models.ExerciseKind][]string) (models.ExerciseKind, bool) {
	for _, kind := range models.ExerciseOrder {
		if u.hasToken(keywords[kind]...) {
			return kind, true
		}
	}
	return "", false
}

// technique returns the first exercise named in u, by ExerciseOrder precedence.
func (u utterance) technique() (models.ExerciseKind, bool) {
	return u.firstTechnique(techniqueKeywords)
}

// pickedNumber maps the numbered menu answers 1/2/3 onto exercises.
func (u utterance) pickedNumber() (models.ExerciseKind, bool) {
	for i, kind := range models.ExerciseOrder {
		n := string(rune('1' + i))
		if len(u.tokens) > 0 && len(u.tokens) <= 3 && u.hasToken(n) {
			return kind, true
		}
	}
	return "", false
}

// maxAckTokens bounds how long a gratitude or uncertainty message can be before it
// is treated as content rather than an acknowledgment.
const maxAckTokens = 8

var (
	declineTokens = []string{"no", "nope", "nah", "naw"}
	// shortDeclineTokens decline a short reply wherever they appear ("please no", "ok stop").
	shortDeclineTokens = []string{"no", "nope", "nah", "naw", "stop"}
)

// maxShortReply bounds the messages read as a bare yes or no.
const maxShortReply = 4

func (u utterance) isDecline() bool {
	if len(u.tokens) == 0 || u.hasPhrase("no problem", "no worries") {
		return false
	}
	if slices.Contains(declineTokens, u.tokens[0]) {
		return true
	}
	if len(u.tokens) <= maxShortReply && u.hasToken(shortDeclineTokens...) {
		return true
	}
	return u.hasPhrase("not now", "not really", "rather not", "don't want to", "no thanks",
		"no thank you", "i'm good", "im good", "i'll pass", "skip it", "not today",
		"let's not", "lets not", "go away", "leave me alone")
}

func (u utterance) isGratitude() bool {
	if len(u.tokens) == 0 || len(u.tokens) > maxAckTokens || u.isDecline() {
		return false
	}
	return u.hasToken("thanks", "thank", "thx", "ty", "cheers", "appreciate", "appreciated", "grateful") ||
		u.hasPhrase("that helps", "that helped")
}

func (u utterance) isUncertain() bool {
	if len(u.tokens) == 0 || len(u.tokens) > maxAckTokens {
		return false
	}
	return u.hasToken("maybe", "perhaps", "unsure", "dunno", "idk") ||
		u.hasPhrase("not sure", "i don't know", "i dont know", "don't know")
}

var affirmTokens = []string{
	"yes", "yeah", "yea", "yep", "yup", "sure", "ok", "okay", "alright", "y",
	"definitely", "absolutely",
}

// refusalTokens cancel an otherwise affirmative opening ("ok no", "sure, not now").
var refusalTokens = []string{"not", "never", "don't", "dont", "stop", "away", "rather"}

// isAffirmative: a short message that opens with an affirmation or is a stock
// acceptance, and carries no refusal.
func (u utterance) isAffirmative() bool {
	if len(u.tokens) == 0 || len(u.tokens) > maxShortReply {
		return false
	}
	if u.isDecline() || u.hasToken(refusalTokens...) {
		return false
	}
	return slices.Contains(affirmTokens, u.tokens[0]) ||
		u.hasPhrase("sounds good", "sounds great", "let's do it", "lets do it", "let's try", "go for it", "go ahead", "please do")
}

func (u utterance) wantsToTalk() bool {
	return u.hasToken("talk", "talking", "share", "chat", "listen", "vent")
}

func (u utterance) wantsCalming() bool {
	return u.hasToken("calming", "calm")
}

var weatherWords = []string{
	"weather", "rain", "raining", "rainy", "sunny", "sunshine", "snow", "snowing",
	"windy", "cloudy", "storm", "stormy", "foggy", "humid", "heatwave", "forecast",
}

func (u utterance) isSmallTalk() bool {
	if u.hasPhrase("under the weather") {
		return false
	}
	return u.hasToken(weatherWords...)
}

// offeredTechnique reports the technique a previous bot message referenced first, if any.
func offeredTechnique(lastBotMessage string) (models.ExerciseKind, bool) {
	if strings.TrimSpace(lastBotMessage) == "" {
		return "", false
	}
	return parseUtterance(lastBotMessage).firstTechnique(offerKeywords)
}

// otherExercises names every exercise but kind, for the closing follow-up.
func otherExercises(kind models.ExerciseKind) string {
	var names []string
	for _, k := range models.ExerciseOrder {
		if k != kind {
			names = append(names, exerciseScripts[k].Name)
		}
	}
	return strings.Join(names, " or ")
}
