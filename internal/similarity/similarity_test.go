package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "submit", "submit", 0},
		{"empty a", "", "abc", 3},
		{"empty b", "abc", "", 3},
		{"single substitution", "cat", "bat", 1},
		{"insertion", "cat", "cats", 1},
		{"classic kitten-sitting", "kitten", "sitting", 3},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Levenshtein(c.a, c.b))
		})
	}
}

func TestLevenshteinRatio(t *testing.T) {
	assert.Equal(t, 1.0, LevenshteinRatio("", ""))
	assert.Equal(t, 1.0, LevenshteinRatio("submit-btn", "submit-btn"))
	assert.InDelta(t, 0.0, LevenshteinRatio("abc", "xyz"), 0.01)

	ratio := LevenshteinRatio("submit-btn", "submit-button")
	assert.Greater(t, ratio, 0.5)
	assert.Less(t, ratio, 1.0)
}

func TestNormalizedEqual(t *testing.T) {
	assert.True(t, NormalizedEqual("Submit Order", "submit   order"))
	assert.True(t, NormalizedEqual("  Login  ", "login"))
	assert.False(t, NormalizedEqual("Submit", "Cancel"))
}

func TestWordOverlap(t *testing.T) {
	assert.Equal(t, 1.0, WordOverlap("", ""))
	assert.Equal(t, 0.0, WordOverlap("hello", ""))

	score := WordOverlap("place your order now", "place your order")
	assert.InDelta(t, 0.75, score, 0.01)
}

func TestWordOverlap_IgnoresTokensOfLengthTwoOrLess(t *testing.T) {
	// "go", "to", and "a" are all length <= 2 and filtered from both
	// sides, leaving "store" as the only token on either side.
	score := WordOverlap("go to a store", "go store")
	assert.Equal(t, 1.0, score)
}

func TestWordOverlap_NormalizesByMaxCountNotUnion(t *testing.T) {
	// shared = {bravo, charlie} = 2, max(|A|,|B|) = 3, so max-count
	// gives 2/3. A union-based Jaccard would divide by |union| = 4
	// instead, giving 0.5.
	score := WordOverlap("alpha bravo charlie", "bravo charlie delta")
	assert.InDelta(t, 2.0/3.0, score, 0.01)
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("Submit Your Order Now", "your order"))
	assert.False(t, Contains("Submit", ""))
	assert.False(t, Contains("Cancel", "submit"))
}
