package matching

const (
	// DefaultCandidateFloor is the score a product must exceed to be tracked as a candidate
	DefaultCandidateFloor = 0.4
	// DefaultAcceptThreshold is the score the best candidate must exceed to be accepted as partial
	DefaultAcceptThreshold = 0.6
)

// Matcher resolves ticket line names against a catalog. The zero value is not
// usable; use NewMatcher or DefaultMatcher. A Matcher holds no mutable state and
// is safe for concurrent use.
type Matcher struct {
	candidateFloor  float64
	acceptThreshold float64
}

var defaultMatcher = Matcher{
	candidateFloor:  DefaultCandidateFloor,
	acceptThreshold: DefaultAcceptThreshold,
}

// DefaultMatcher returns a matcher using the 0.4 candidacy floor and 0.6 acceptance threshold.
func DefaultMatcher() Matcher {
	return defaultMatcher
}

// NewMatcher returns a matcher with custom thresholds. Callers are expected to
// validate 0 <= candidateFloor <= acceptThreshold <= 1 beforehand.
func NewMatcher(candidateFloor, acceptThreshold float64) Matcher {
	return Matcher{
		candidateFloor:  candidateFloor,
		acceptThreshold: acceptThreshold,
	}
}

// Match finds the best catalog product for a raw ticket name using the default thresholds.
func Match(rawName string, catalog []CatalogProduct) MatchResult {
	return defaultMatcher.Match(rawName, catalog)
}

// Match finds the best catalog product for a raw ticket name.
//
// An exact normalized name wins immediately, first one in catalog order.
// Otherwise the highest scoring product above the candidacy floor is kept,
// earliest product winning ties, and it is accepted only if its score
// strictly exceeds the acceptance threshold.
func (m Matcher) Match(rawName string, catalog []CatalogProduct) MatchResult {
	query := Normalize(rawName)

	normalized := make([]string, len(catalog))
	for i := range catalog {
		normalized[i] = Normalize(catalog[i].Name)
		if normalized[i] == query {
			product := catalog[i]
			return MatchResult{Product: &product, Confidence: ConfidenceExact}
		}
	}

	best := -1
	bestScore := 0.0
	for i := range catalog {
		score := Similarity(query, normalized[i])
		if score > m.candidateFloor && score > bestScore {
			bestScore = score
			best = i
		}
	}

	if best >= 0 && bestScore > m.acceptThreshold {
		product := catalog[best]
		return MatchResult{Product: &product, Confidence: ConfidencePartial}
	}

	return MatchResult{Product: nil, Confidence: ConfidenceNone}
}
