package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitParts_DropsChildCombinatorTokens(t *testing.T) {
	parts := splitParts("div.container > button.btn#submit")
	assert.Equal(t, []string{"div.container", "button.btn#submit"}, parts)
}

func TestSplitParts_RespectsBracketedSpaces(t *testing.T) {
	parts := splitParts(`[aria-label="Log in now"]`)
	assert.Equal(t, []string{`[aria-label="Log in now"]`}, parts)
}

func TestParseCompound(t *testing.T) {
	c := parseCompound("button.btn.primary#submit")
	assert.Equal(t, "button", c.tag)
	assert.Equal(t, "submit", c.id)
	assert.Equal(t, []string{"btn", "primary"}, c.classes)
}

func TestCSSTransforms_ConfidenceTable(t *testing.T) {
	full := "div.container button.btn.primary#submit"
	parts := splitParts(full)

	candidates := dedupeCandidates(cssTransforms(full, parts))

	byConfidence := map[float64]string{}
	for _, c := range candidates {
		byConfidence[c.Confidence] = c.Selector
	}

	assert.Equal(t, "div.container button.btn.primary", byConfidence[0.70])
	assert.Equal(t, "button.btn.primary", byConfidence[0.68])
	assert.Equal(t, "div.container", byConfidence[0.62])
	assert.Equal(t, ".container.btn.primary", byConfidence[0.60])
	assert.Equal(t, "div.container > button.btn.primary#submit", byConfidence[0.58])
	assert.Equal(t, "button", byConfidence[0.50])
}

func TestCSS_HealsWithFirstPresentCandidateByDescendingConfidence(t *testing.T) {
	s := NewCSS()
	drv := newFakeDriver()
	// "div.container button.btn.primary" (0.70) is absent; the next
	// candidate down the confidence ladder, "button.btn.primary"
	// (0.68), is present.
	drv.presentSelectors["button.btn.primary"] = true

	result, err := s.Heal(context.Background(), drv, "div.container button.btn.primary#submit", Options{})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "button.btn.primary", result.Selector)
	assert.InDelta(t, 0.68, result.Confidence, 0.001)
}

func TestCSS_NoSignalOnEmptySelector(t *testing.T) {
	s := NewCSS()
	drv := newFakeDriver()

	result, err := s.Heal(context.Background(), drv, "   ", Options{})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "no_signal", result.Error)
}

func TestCSS_NoCandidateWhenNothingPresent(t *testing.T) {
	s := NewCSS()
	drv := newFakeDriver()

	result, err := s.Heal(context.Background(), drv, "div.container button.btn.primary#submit", Options{})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "no_candidate", result.Error)
}
