package matching

import (
	"strings"
	"unicode/utf8"
)

// Similarity scores two already normalized names in [0,1].
//
// When one name contains the other the score is the length ratio of the two.
// Otherwise it falls back to word overlap: a word of a counts as common when some
// word of b contains it or is contained in it, and the count is divided by the
// larger word count. This is intentionally not an edit distance; the matcher
// thresholds are tuned against this scoring shape.
func Similarity(a, b string) float64 {
	longer, shorter := a, b
	if utf8.RuneCountInString(b) > utf8.RuneCountInString(a) {
		longer, shorter = b, a
	}

	longerLen := utf8.RuneCountInString(longer)
	if longerLen == 0 {
		return 1.0
	}

	if strings.Contains(longer, shorter) || strings.Contains(shorter, longer) {
		return float64(utf8.RuneCountInString(shorter)) / float64(longerLen)
	}

	return wordOverlap(strings.Fields(a), strings.Fields(b))
}

func wordOverlap(words1, words2 []string) float64 {
	total := max(len(words1), len(words2))
	if total == 0 {
		return 0
	}

	common := 0
	for _, w := range words1 {
		for _, w2 := range words2 {
			if strings.Contains(w2, w) || strings.Contains(w, w2) {
				common++
				break
			}
		}
	}

	return float64(common) / float64(total)
}
