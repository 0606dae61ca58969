package mood

import (
	"log/slog"
	"math"
	"strings"

	"github.com/BTreeMap/CareBear/internal/models"
	"github.com/BTreeMap/CareBear/internal/util"
)

// Classifier maps free text to a MoodLabel. It is safe for concurrent use.
type Classifier struct {
	lex       Lexicon
	phrases   []moodPhrases
	keywords  []moodKeywords
	negations map[string]struct{}
	valence   map[string]float64
	positive  vocabulary
	negative  vocabulary
	fuzzy     bool
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithFuzzyCutoff overrides the lexicon's similarity cutoff for misspelled keywords.
func WithFuzzyCutoff(cutoff float64) Option {
	return func(c *Classifier) {
		if cutoff > 0 && cutoff <= 1 {
			c.lex.FuzzyCutoff = cutoff
		}
	}
}

// WithoutFuzzy restricts keyword matching to exact words.
func WithoutFuzzy() Option {
	return func(c *Classifier) {
		c.fuzzy = false
	}
}

type moodPhrases struct {
	mood    models.MoodLabel
	phrases []string
}

type moodKeywords struct {
	mood  models.MoodLabel
	vocab vocabulary
}

// NewClassifier builds a classifier from lex. The lexicon is copied into lookup tables
// and never mutated afterwards.
func NewClassifier(lex Lexicon, opts ...Option) *Classifier {
	c := &Classifier{
		lex:       lex,
		fuzzy:     true,
		negations: make(map[string]struct{}, len(lex.Negations)),
		valence:   make(map[string]float64, len(lex.Valence)),
	}
	for w, v := range lex.Valence {
		c.valence[util.NormalizeText(w)] = v
	}
	for _, m := range lex.PhraseOrder {
		var normalized []string
		for _, p := range lex.Phrases[m] {
			if p = strings.Join(util.Tokenize(util.NormalizeText(p)), " "); p != "" {
				normalized = append(normalized, p)
			}
		}
		c.phrases = append(c.phrases, moodPhrases{mood: m, phrases: normalized})
	}
	for _, m := range lex.KeywordOrder {
		c.keywords = append(c.keywords, moodKeywords{mood: m, vocab: newVocabulary(normalizeWords(lex.Keywords[m]))})
	}
	for _, n := range normalizeWords(lex.Negations) {
		c.negations[n] = struct{}{}
	}

	var neg []string
	for m, words := range lex.Keywords {
		if m != models.MoodHappy {
			neg = append(neg, words...)
		}
	}
	c.positive = newVocabulary(normalizeWords(lex.Keywords[models.MoodHappy]))
	c.negative = newVocabulary(normalizeWords(neg))
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewDefaultClassifier returns a classifier over DefaultLexicon.
func NewDefaultClassifier() *Classifier {
	return NewClassifier(DefaultLexicon())
}

// Classify returns exactly one label for text. Blank input is neutral.
func (c *Classifier) Classify(text string) models.MoodLabel {
	if strings.TrimSpace(text) == "" {
		return models.MoodNeutral
	}
	tokens := util.Tokenize(util.NormalizeText(text))
	if len(tokens) == 0 {
		return models.MoodNeutral
	}

	if m, ok := c.matchPhrase(tokens); ok {
		slog.Debug("Classifier matched phrase", "mood", m)
		return m
	}
	if m, ok := c.matchKeyword(tokens); ok {
		slog.Debug("Classifier matched keyword", "mood", m)
		return m
	}
	if m, ok := c.matchNegation(tokens); ok {
		slog.Debug("Classifier matched negation", "mood", m)
		return m
	}
	if m, ok := c.matchValence(tokens); ok {
		slog.Debug("Classifier matched valence", "mood", m)
		return m
	}
	return models.MoodNeutral
}

func (c *Classifier) matchPhrase(tokens []string) (models.MoodLabel, bool) {
	joined := " " + strings.Join(tokens, " ") + " "
	for _, mp := range c.phrases {
		for _, p := range mp.phrases {
			if strings.Contains(joined, " "+p+" ") {
				return mp.mood, true
			}
		}
	}
	return "", false
}

// matchKeyword runs an exact pass over every mood before the fuzzy pass, so a correctly
// spelled word is never claimed by a near neighbour in an earlier mood ("lonely" vs "lovely").
func (c *Classifier) matchKeyword(tokens []string) (models.MoodLabel, bool) {
	passes := []bool{false}
	if c.fuzzy {
		passes = append(passes, true)
	}
	for _, fuzzy := range passes {
		for _, mk := range c.keywords {
			for i, tok := range tokens {
				if c.negatedAt(tokens, i) {
					continue
				}
				if mk.vocab.has(tok) || (fuzzy && mk.vocab.fuzzyHas(tok, c.lex.FuzzyCutoff, c.lex.MinFuzzyRunes)) {
					return mk.mood, true
				}
			}
		}
	}
	return "", false
}

func (c *Classifier) matchNegation(tokens []string) (models.MoodLabel, bool) {
	for i := 1; i < len(tokens); i++ {
		if !c.negatedAt(tokens, i) {
			continue
		}
		switch {
		case c.positive.has(tokens[i]):
			return models.MoodSad, true
		case c.negative.has(tokens[i]):
			return models.MoodHappy, true
		}
	}
	return "", false
}

// matchValence is the continuous fallback. Short inputs use a tighter symmetric threshold.
func (c *Classifier) matchValence(tokens []string) (models.MoodLabel, bool) {
	score := c.Valence(tokens)
	if len(tokens) <= c.lex.ShortInputTokens {
		switch {
		case score > c.lex.ShortThreshold:
			return models.MoodHappy, true
		case score < -c.lex.ShortThreshold:
			return models.MoodSad, true
		}
		return "", false
	}
	switch {
	case score > c.lex.PositiveThreshold:
		return models.MoodHappy, true
	case score < c.lex.NegativeThreshold:
		return models.MoodSad, true
	}
	return "", false
}

const (
	negationDamping = -0.74
	valenceAlpha    = 15.0
)

// Valence scores tokens in [-1, 1]. A negated word contributes with flipped, damped sign.
func (c *Classifier) Valence(tokens []string) float64 {
	var sum float64
	for i, tok := range tokens {
		v, ok := c.valence[tok]
		if !ok {
			continue
		}
		if c.negatedAt(tokens, i) {
			v *= negationDamping
		}
		sum += v
	}
	if sum == 0 {
		return 0
	}
	return sum / math.Sqrt(sum*sum+valenceAlpha)
}

func (c *Classifier) negatedAt(tokens []string, i int) bool {
	if i == 0 {
		return false
	}
	_, ok := c.negations[tokens[i-1]]
	return ok
}

func normalizeWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = util.NormalizeText(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}
