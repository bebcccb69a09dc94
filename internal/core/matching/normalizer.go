package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes a product name for comparison: lower case, diacritics
// stripped, only ASCII letters, digits and whitespace kept, ends trimmed.
// Internal whitespace runs are left as-is since Similarity splits on runs.
func Normalize(text string) string {
	lowered := strings.ToLower(text)

	// A fresh transformer per call, transform.Chain is stateful.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, lowered)
	if err != nil {
		folded = lowered
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(r)
		}
	}

	return strings.TrimSpace(b.String())
}
