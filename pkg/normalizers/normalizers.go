// Package normalizers provides string normalization for author-name comparison
package normalizers

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldAccents strips combining marks: "Müller" becomes "Muller"
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// NormalizeName normalizes a person's name for matching
// - Lowercase, accents folded
// - Punctuation replaced by spaces (so "J.R." keeps two initials)
// - Common suffixes (Jr., Sr., III, ...) removed
// - Whitespace collapsed
func NormalizeName(s string) string {
	s = strings.ToLower(FoldAccents(s))

	var result strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			result.WriteRune(r)
		case r == '\'':
			// O'Connor -> oconnor
		default:
			result.WriteRune(' ')
		}
	}

	words := strings.Fields(result.String())
	for len(words) > 1 && isSuffix(words[len(words)-1]) {
		words = words[:len(words)-1]
	}

	return strings.Join(words, " ")
}

var nameSuffixes = map[string]bool{
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true,
}

func isSuffix(word string) bool {
	return nameSuffixes[word]
}

// Initials returns the first letter of every word: "jean pierre" becomes "jp"
func Initials(s string) string {
	var result strings.Builder
	for _, word := range strings.Fields(s) {
		for _, r := range word {
			result.WriteRune(r)
			break
		}
	}
	return result.String()
}
