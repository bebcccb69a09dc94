package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "lower cases", input: "LECHE ENTERA", want: "leche entera"},
		{name: "strips accents", input: "Café Orgánico", want: "cafe organico"},
		{name: "drops punctuation", input: "Pan (bimbo) 500g!", want: "pan bimbo 500g"},
		{name: "trims ends", input: "  tomate  ", want: "tomate"},
		{name: "keeps internal whitespace runs", input: "agua   mineral", want: "agua   mineral"},
		{name: "drops non latin letters", input: "масло butter", want: "butter"},
		{name: "enye folds to n", input: "Piña Añeja", want: "pina aneja"},
		{name: "symbols only", input: "€ -- %", want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.input))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"Café Orgánico!",
		"  LECHE   Semi-Desnatada 1,5L ",
		"Ñoquis de patata",
		"naïve crème brûlée",
		"\tyogur griego\n",
		"日本酒 sake",
	}

	for _, input := range inputs {
		once := Normalize(input)
		assert.Equal(t, once, Normalize(once), "input %q", input)
	}
}

func TestNormalizeEquivalenceClass(t *testing.T) {
	assert.Equal(t, Normalize("cafe organico"), Normalize("Café Orgánico!"))
}
