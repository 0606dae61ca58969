package mood

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// vocabulary is a keyword list with an exact-match index.
type vocabulary struct {
	words []string
	set   map[string]struct{}
}

func newVocabulary(words []string) vocabulary {
	v := vocabulary{set: make(map[string]struct{}, len(words))}
	for _, w := range words {
		if _, dup := v.set[w]; dup || w == "" {
			continue
		}
		v.set[w] = struct{}{}
		v.words = append(v.words, w)
	}
	return v
}

func (v vocabulary) has(token string) bool {
	_, ok := v.set[token]
	return ok
}

// similarity is 1 - levenshtein/maxlen, in runes.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// fuzzyHas reports whether token equals a vocabulary word or, when long enough, is within cutoff of one.
func (v vocabulary) fuzzyHas(token string, cutoff float64, minRunes int) bool {
	if v.has(token) {
		return true
	}
	if utf8.RuneCountInString(token) < minRunes {
		return false
	}
	for _, w := range v.words {
		if similarity(token, w) >= cutoff {
			return true
		}
	}
	return false
}
