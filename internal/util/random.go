// Package util provides utility functions for the CareBear application.
package util

import (
	crand "crypto/rand"
	"encoding/hex"
	"math/rand/v2"
	"strings"
)

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// Not suitable for secrets; see GenerateSessionID.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}

// GenerateSessionID generates a session key with "s_" prefix from crypto/rand.
// Session keys double as bearer credentials for transcripts, so they must not be guessable.
func GenerateSessionID() string {
	buf := make([]byte, 16)
	if _, err := crand.Read(buf); err != nil {
		return GenerateRandomID("s_", 32)
	}
	return "s_" + hex.EncodeToString(buf)
}

// Picker chooses an index in [0, n). Reply pools draw through it so tests can be deterministic.
type Picker interface {
	IntN(n int) int
}

// EntropyPicker draws from the runtime's auto-seeded generator.
type EntropyPicker struct{}

// IntN returns a pseudo-random index in [0, n).
func (EntropyPicker) IntN(n int) int {
	return rand.IntN(n)
}

// NewSeededPicker returns a reproducible Picker for the given seed.
func NewSeededPicker(seed uint64) Picker {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Pick returns an element of items using p, or the zero value for an empty slice.
func Pick[T any](p Picker, items []T) T {
	var zero T
	if len(items) == 0 {
		return zero
	}
	if p == nil {
		p = EntropyPicker{}
	}
	return items[p.IntN(len(items))]
}
