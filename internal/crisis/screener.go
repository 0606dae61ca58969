// Package crisis screens free text for self-harm and suicide risk markers.
// Screening is a heuristic safety net: it prefers false positives to false negatives.
package crisis

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BTreeMap/CareBear/internal/models"
	"github.com/BTreeMap/CareBear/internal/util"
)

// SafetyMessage is returned for every turn of a session in crisis mode.
const SafetyMessage = "It sounds like you're going through something really difficult, and you don't have to face it alone. " +
	"Please consider reaching out to someone who can help right now.\n\n" +
	"If you're in the UK and need urgent help:\n" +
	"- Samaritans: 116 123 (free, 24/7)\n" +
	"- Mind UK: https://www.mind.org.uk\n" +
	"- NHS Mental Health Helpline: https://www.nhs.uk/service-search/mental-health\n\n" +
	"If you are in immediate danger, call 999. I'm still here with you."

const safetyRationale = "Crisis language was detected, so the priority is connecting you with people who can help immediately."

// SafetyRecord returns the fixed safety reply.
func SafetyRecord() models.ResponseRecord {
	return models.ResponseRecord{
		Message:   SafetyMessage,
		Rationale: safetyRationale,
		Kind:      models.KindSafety,
	}
}

// Rules configure a Screener. Patterns are regular expressions anchored at word
// boundaries; Phrases are matched as plain substrings with no anchoring.
type Rules struct {
	Patterns []string `yaml:"patterns"`
	Phrases  []string `yaml:"phrases"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	return Rules{
		Patterns: []string{
			`suicid(?:e|es|al|ally)`,
			`kill(?:ing)? myself`,
			`end(?:ing)? (?:my|it) (?:life|all)`,
			`end(?:ing)? it`,
			`take my (?:own )?life`,
			`hopeless(?:ness)?`,
			`better off dead`,
			`worthless`,
			`(?:want(?:s|ed)?|wanna) (?:to )?die`,
			`wish(?:ing)? i (?:was|were) dead`,
			`self[- ]?harm(?:ing)?`,
			`(?:hurt|hurting|cut|cutting) myself`,
			`life is (?:pointless|meaningless|not worth living)`,
			`not worth living`,
			`(?:can'?t|cannot) go on`,
		},
		Phrases: []string{
			"can't take it anymore",
			"cant take it anymore",
			"can't do this anymore",
			"no way out",
			"nobody cares",
			"no one cares",
			"no reason to live",
			"give up on life",
			"pointless",
			"don't want to be here",
			"don't want to wake up",
		},
	}
}

// LoadRules reads rules from a YAML file. Lists present in the file replace the defaults.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read crisis rules: %w", err)
	}
	var override Rules
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Rules{}, fmt.Errorf("failed to parse crisis rules %s: %w", path, err)
	}

	rules := DefaultRules()
	if len(override.Patterns) > 0 {
		rules.Patterns = override.Patterns
	}
	if len(override.Phrases) > 0 {
		rules.Phrases = override.Phrases
	}
	slog.Info("Crisis rules loaded", "path", path, "patterns", len(rules.Patterns), "phrases", len(rules.Phrases))
	return rules, nil
}

// Screener evaluates text against compiled Rules. It holds no per-session state.
type Screener struct {
	patterns []*regexp.Regexp
	phrases  []string
}

// NewScreener compiles rules. An invalid pattern is a configuration error.
func NewScreener(rules Rules) (*Screener, error) {
	s := &Screener{}
	for _, p := range rules.Patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b(?:` + p + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("invalid crisis pattern %q: %w", p, err)
		}
		s.patterns = append(s.patterns, re)
	}
	for _, p := range rules.Phrases {
		if p = util.NormalizeText(p); p != "" {
			s.phrases = append(s.phrases, p)
		}
	}
	return s, nil
}

// MustNewScreener is NewScreener that panics on error. Used for the built-in rules.
func MustNewScreener(rules Rules) *Screener {
	s, err := NewScreener(rules)
	if err != nil {
		panic(err)
	}
	return s
}

// NewDefaultScreener returns a screener over DefaultRules.
func NewDefaultScreener() *Screener {
	return MustNewScreener(DefaultRules())
}

// IsCrisis reports whether text contains any crisis marker. Blank text is never a crisis.
func (s *Screener) IsCrisis(text string) bool {
	_, ok := s.Match(text)
	return ok
}

// Match returns the first rule that fired. The returned string is the rule, never user text.
func (s *Screener) Match(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	normalized := util.NormalizeText(text)
	for _, re := range s.patterns {
		if re.MatchString(normalized) {
			slog.Debug("Screener matched pattern", "pattern", re.String())
			return re.String(), true
		}
	}
	for _, p := range s.phrases {
		if strings.Contains(normalized, p) {
			slog.Debug("Screener matched phrase", "phrase", p)
			return p, true
		}
	}
	return "", false
}
