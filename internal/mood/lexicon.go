// Package mood classifies free text into one of a small closed set of affect labels.
package mood

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/BTreeMap/CareBear/internal/models"
)

// Lexicon is the immutable vocabulary a Classifier is built from.
type Lexicon struct {
	// Phrases are multi-word idioms matched as whole-word runs, checked in PhraseOrder.
	Phrases     map[models.MoodLabel][]string `yaml:"phrases"`
	PhraseOrder []models.MoodLabel            `yaml:"phrase_order"`

	// Keywords are single tokens matched exactly or fuzzily, checked in KeywordOrder.
	// The happy list is the positive polarity set; every other list is negative.
	Keywords     map[models.MoodLabel][]string `yaml:"keywords"`
	KeywordOrder []models.MoodLabel            `yaml:"keyword_order"`

	Negations []string           `yaml:"negations"`
	Valence   map[string]float64 `yaml:"valence"`

	FuzzyCutoff       float64 `yaml:"fuzzy_cutoff"`
	MinFuzzyRunes     int     `yaml:"min_fuzzy_runes"`
	ShortInputTokens  int     `yaml:"short_input_tokens"`
	ShortThreshold    float64 `yaml:"short_threshold"`
	PositiveThreshold float64 `yaml:"positive_threshold"`
	NegativeThreshold float64 `yaml:"negative_threshold"`
}

// DefaultLexicon returns the built-in vocabulary.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Phrases: map[models.MoodLabel][]string{
			models.MoodSad: {
				"not great", "not okay", "not ok", "not good", "not well", "not feeling well",
				"not feeling great", "not feeling good", "could be better", "feeling bad", "feel bad",
				"feel unwell", "feel down", "feeling down", "feeling low", "under the weather",
				"down in the dumps", "not doing well", "not doing great", "don't feel good",
				"don't feel great", "don't feel well", "do not feel good",
			},
			models.MoodAnxious: {
				"on edge", "freaking out", "can't relax", "can't stop worrying", "heart is racing",
				"butterflies in my stomach", "panic attack", "can't sit still", "mind is racing",
			},
			models.MoodAngry: {
				"fed up", "pissed off", "sick of", "had it with", "drives me crazy", "so annoyed",
				"lost my temper", "makes my blood boil",
			},
			models.MoodHappy: {
				"feeling good", "doing great", "feeling great", "doing well", "doing good",
				"on top of the world", "over the moon", "never been better", "not bad",
			},
		},
		PhraseOrder: []models.MoodLabel{models.MoodSad, models.MoodAnxious, models.MoodAngry, models.MoodHappy},
		Keywords: map[models.MoodLabel][]string{
			models.MoodHappy: {
				"happy", "excited", "good", "great", "wonderful", "amazing", "fantastic", "excellent",
				"brilliant", "awesome", "perfect", "love", "joy", "joyful", "grateful", "blessed",
				"optimistic", "cheerful", "glad", "proud", "delighted", "thrilled", "lovely",
			},
			models.MoodSad: {
				"sad", "upset", "depressed", "unhappy", "miserable", "bad", "terrible", "awful",
				"lonely", "tired", "exhausted", "bored", "meh", "hurt", "broken", "empty",
				"unwell", "sick", "ill", "crying", "cry", "heartbroken", "gloomy", "down", "low",
			},
			models.MoodAnxious: {
				"nervous", "worried", "scared", "anxious", "anxiety", "uneasy", "overthinking",
				"panic", "panicking", "stressed", "stress", "fear", "afraid", "tense", "restless",
				"overwhelmed", "frightened", "jittery", "dread",
			},
			models.MoodAngry: {
				"angry", "mad", "furious", "annoyed", "irritated", "frustrated", "rage",
				"livid", "resentful", "pissed", "hate",
			},
		},
		KeywordOrder: []models.MoodLabel{models.MoodHappy, models.MoodSad, models.MoodAnxious, models.MoodAngry},
		Negations:    []string{"not", "never", "no", "hardly", "isn't", "wasn't", "aren't", "don't", "doesn't", "didn't"},
		Valence: map[string]float64{
			"nice": 1.8, "fine": 0.8, "okay": 0.9, "ok": 0.9, "enjoy": 2.2,
			"enjoyed": 2.3, "fun": 2.3, "better": 1.9, "best": 3.2, "hope": 1.9, "hopeful": 2.3,
			"smile": 1.5, "laugh": 2.6, "peaceful": 2.2, "calm": 1.3, "relaxed": 2.2,
			"thanks": 1.9, "beautiful": 2.9, "win": 2.8, "won": 2.7, "yay": 2.4, "cool": 1.3,
			"worse": -2.1, "worst": -3.1, "horrible": -2.5, "dreadful": -2.7, "pain": -2.3,
			"painful": -2.4, "lost": -1.3, "alone": -1.0, "fail": -2.5, "failed": -2.3,
			"failure": -2.3, "stuck": -1.0, "problem": -1.7, "problems": -1.7, "wrong": -2.1,
			"difficult": -1.6, "rough": -0.7, "sucks": -1.5, "ugh": -1.8, "disappointed": -1.9,
			"ruined": -2.4, "struggling": -2.0, "mess": -1.5, "grim": -2.2,
		},
		FuzzyCutoff:       0.82,
		MinFuzzyRunes:     4,
		ShortInputTokens:  3,
		ShortThreshold:    0.15,
		PositiveThreshold: 0.35,
		NegativeThreshold: -0.3,
	}
}

// LoadLexicon reads a YAML vocabulary file and merges it over DefaultLexicon.
// Any list or map present in the file replaces the default wholesale; zero thresholds keep the defaults.
func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("failed to read lexicon file: %w", err)
	}

	var override Lexicon
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Lexicon{}, fmt.Errorf("failed to parse lexicon file %s: %w", path, err)
	}

	lex := DefaultLexicon().merge(override)
	if err := lex.Validate(); err != nil {
		return Lexicon{}, fmt.Errorf("invalid lexicon file %s: %w", path, err)
	}
	slog.Info("Lexicon loaded", "path", path, "keywordMoods", len(lex.Keywords), "valenceWords", len(lex.Valence))
	return lex, nil
}

func (l Lexicon) merge(o Lexicon) Lexicon {
	if len(o.Phrases) > 0 {
		l.Phrases = o.Phrases
	}
	if len(o.PhraseOrder) > 0 {
		l.PhraseOrder = o.PhraseOrder
	}
	if len(o.Keywords) > 0 {
		l.Keywords = o.Keywords
	}
	if len(o.KeywordOrder) > 0 {
		l.KeywordOrder = o.KeywordOrder
	}
	if len(o.Negations) > 0 {
		l.Negations = o.Negations
	}
	if len(o.Valence) > 0 {
		l.Valence = o.Valence
	}
	if o.FuzzyCutoff != 0 {
		l.FuzzyCutoff = o.FuzzyCutoff
	}
	if o.MinFuzzyRunes != 0 {
		l.MinFuzzyRunes = o.MinFuzzyRunes
	}
	if o.ShortInputTokens != 0 {
		l.ShortInputTokens = o.ShortInputTokens
	}
	if o.ShortThreshold != 0 {
		l.ShortThreshold = o.ShortThreshold
	}
	if o.PositiveThreshold != 0 {
		l.PositiveThreshold = o.PositiveThreshold
	}
	if o.NegativeThreshold != 0 {
		l.NegativeThreshold = o.NegativeThreshold
	}
	return l
}

// Validate checks that every mood named in the lexicon is a real label and the thresholds are usable.
func (l Lexicon) Validate() error {
	for _, order := range [][]models.MoodLabel{l.PhraseOrder, l.KeywordOrder} {
		for _, m := range order {
			if !m.IsValid() || m == models.MoodNeutral {
				return fmt.Errorf("mood %q cannot appear in a match order", m)
			}
		}
	}
	for m := range l.Phrases {
		if !m.IsValid() {
			return fmt.Errorf("unknown mood %q in phrases", m)
		}
	}
	for m := range l.Keywords {
		if !m.IsValid() {
			return fmt.Errorf("unknown mood %q in keywords", m)
		}
	}
	if l.FuzzyCutoff <= 0 || l.FuzzyCutoff > 1 {
		return fmt.Errorf("fuzzy_cutoff must be in (0, 1], got %v", l.FuzzyCutoff)
	}
	if l.ShortThreshold <= 0 || l.PositiveThreshold <= 0 || l.NegativeThreshold >= 0 {
		return fmt.Errorf("valence thresholds must be short>0, positive>0, negative<0")
	}
	return nil
}
