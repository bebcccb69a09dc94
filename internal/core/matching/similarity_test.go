package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	testCases := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "both empty", a: "", b: "", want: 1.0},
		{name: "one empty", a: "", b: "leche", want: 0},
		{name: "identical", a: "leche", b: "leche", want: 1.0},
		{name: "disjoint", a: "leche", b: "pan", want: 0},
		{name: "containment", a: "leche", b: "lechesemidesnatada", want: 5.0 / 18.0},
		{name: "containment reversed", a: "lechesemidesnatada", b: "leche", want: 5.0 / 18.0},
		{name: "prefix containment", a: "leche entera 1l", b: "leche entera", want: 12.0 / 15.0},
		{name: "word overlap without containment", a: "leche entera 1l", b: "entera leche", want: 2.0 / 3.0},
		{name: "word overlap by substring", a: "tomates pera", b: "tomate rama", want: 1.0 / 2.0},
		{name: "larger word list sets denominator", a: "pan blanco", b: "pan integral pan", want: 1.0 / 3.0},
		{name: "partial word overlap", a: "arroz largo", b: "pan de arroz", want: 1.0 / 3.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Similarity(tc.a, tc.b), 1e-9)
		})
	}
}

func TestSimilarityReflexive(t *testing.T) {
	for _, x := range []string{"Leche", "Café Orgánico", "agua   mineral 1,5L", "x"} {
		n := Normalize(x)
		assert.Equal(t, 1.0, Similarity(n, n), "input %q", x)
	}
}

func TestSimilarityWordOverlapDenominator(t *testing.T) {
	// "queso" appears in both but the longer word list sets the denominator
	score := Similarity("queso curado oveja", "queso tierno")
	assert.InDelta(t, 1.0/3.0, score, 1e-9)
}

func TestSimilarityStaysInRange(t *testing.T) {
	pairs := [][2]string{
		{"a b c d", "a"},
		{"a", "a b c d"},
		{"aa bb", "a b"},
		{"zumo naranja", "naranja"},
	}
	for _, p := range pairs {
		score := Similarity(p[0], p[1])
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}
