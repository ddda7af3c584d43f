package reconcile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercase", input: "Acme", expected: "acme"},
		{name: "legal suffix stripped", input: "Yahoo Inc.", expected: "yahoo"},
		{name: "comma before suffix", input: "Initech, LLC", expected: "initech"},
		{name: "company suffix", input: "Wayne Company", expected: "wayne"},
		{name: "punctuation removed", input: "O'Brien & Sons", expected: "obrien sons"},
		{name: "whitespace collapsed", input: "  Globex   Corporation  ", expected: "globex corporation"},
		{name: "bare corp is not a legal suffix", input: "Acme Corp", expected: "acme corp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, NormalizeName(tt.input))
		})
	}
}

func TestNamesMatch(t *testing.T) {
	tests := []struct {
		name  string
		a     string
		b     string
		match bool
	}{
		{name: "identical after normalization", a: "Yahoo", b: "Yahoo Inc.", match: true},
		{name: "prefix", a: "Stripe", b: "Stripe Payments", match: true},
		{name: "suffix", a: "Labs", b: "Acme Labs", match: true},
		{name: "trigram similar", a: "Acme Labs", b: "Acme Laboratories", match: true},
		{name: "different companies sharing a word", a: "Acme Corp", b: "Acme Industries", match: false},
		{name: "unrelated", a: "Globex", b: "Initech", match: false},
		{name: "too short", a: "AB", b: "ABC", match: false},
		{name: "both too short", a: "Go", b: "Go", match: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.match, NamesMatch(tt.a, tt.b))
			require.Equal(t, tt.match, NamesMatch(tt.b, tt.a), "matching is symmetric")
		})
	}
}

func TestTrigramSimilarity(t *testing.T) {
	t.Run("identical strings", func(t *testing.T) {
		require.Equal(t, 1.0, TrigramSimilarity("acme", "acme"))
	})

	t.Run("disjoint strings", func(t *testing.T) {
		require.Equal(t, 0.0, TrigramSimilarity("acme", "zzzz"))
	})

	t.Run("empty string", func(t *testing.T) {
		require.Equal(t, 0.0, TrigramSimilarity("", "acme"))
	})

	t.Run("partial overlap stays below threshold", func(t *testing.T) {
		sim := TrigramSimilarity("acme corp", "acme industries")
		require.Less(t, sim, trigramThreshold)
		require.Greater(t, sim, 0.0)
	})
}
