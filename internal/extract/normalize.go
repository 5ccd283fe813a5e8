// Package extract pulls dates, times and appointment purposes out of
// free-text Spanish chat messages.
package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases s, strips diacritics and collapses whitespace.
// "¿Mañana a las 19?" becomes "¿manana a las 19?".
func Normalize(s string) string {
	lowered := strings.ToLower(s)
	// transform.Chain keeps internal buffers, so build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, lowered)
	if err != nil {
		out = lowered
	}
	return strings.Join(strings.Fields(out), " ")
}

// Tokens splits normalized text into words, dropping punctuation.
func Tokens(normalized string) []string {
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max]))
}

// TruncatePurpose trims s and caps it at MaxPurposeLength runes.
func TruncatePurpose(s string) string {
	return truncateRunes(strings.TrimSpace(s), MaxPurposeLength)
}
