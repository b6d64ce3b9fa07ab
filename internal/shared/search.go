package shared

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldSearch lowercases s and strips diacritics so "Óxido" and "oxido" compare equal.
func FoldSearch(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// MatchesSearch reports whether any of fields contains term after folding.
func MatchesSearch(term string, fields ...string) bool {
	term = FoldSearch(term)
	if term == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(FoldSearch(f), term) {
			return true
		}
	}
	return false
}
