package util

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var apostropheReplacer = strings.NewReplacer(
	"’", "'", // right single quotation mark
	"‘", "'",
	"ʼ", "'",
	"`", "'",
)

// NormalizeText applies NFKC, folds case, maps typographic apostrophes to ASCII
// and collapses runs of whitespace. The result is what keyword tables are matched against.
func NormalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = apostropheReplacer.Replace(s)
	// cases.Caser is stateful, so a fresh one per call.
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Tokenize splits normalized text into word tokens. Apostrophes and inner hyphens
// are kept so "can't" and "5-4-3-2-1" survive as single tokens.
func Tokenize(normalized string) []string {
	fields := strings.FieldsFunc(normalized, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-')
	})
	tokens := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'-")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// ContainsPhrase reports whether phrase occurs in tokens as a run of whole words.
func ContainsPhrase(tokens []string, phrase string) bool {
	if len(tokens) == 0 || phrase == "" {
		return false
	}
	joined := " " + strings.Join(tokens, " ") + " "
	want := " " + strings.Join(Tokenize(NormalizeText(phrase)), " ") + " "
	if strings.TrimSpace(want) == "" {
		return false
	}
	return strings.Contains(joined, want)
}
