package healer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_ScoreAndRanking(t *testing.T) {
	tr := NewTracker()

	tr.Success("#stable")
	tr.Success("#stable")
	tr.Success("#stable")

	tr.Success("#flaky")
	tr.Failure("#flaky")
	tr.Failure("#flaky")

	stats := tr.Stats()

	require.Len(t, stats, 1, "a selector with zero failures has zero score and is excluded")
	assert.Equal(t, "#flaky", stats[0].Selector)
	assert.InDelta(t, 2.0/3.0, stats[0].Score, 0.001)
}

func TestTracker_MultipleFlakySelectorsRankedDescending(t *testing.T) {
	tr := NewTracker()

	tr.Success("#mostly-stable")
	tr.Failure("#mostly-stable")

	tr.Failure("#always-fails")
	tr.Failure("#always-fails")

	stats := tr.Stats()

	require.Len(t, stats, 2)
	assert.Equal(t, "#always-fails", stats[0].Selector)
	assert.Equal(t, "#mostly-stable", stats[1].Selector)
}

func TestTracker_Clear(t *testing.T) {
	tr := NewTracker()
	tr.Failure("#flaky")

	tr.Clear()

	assert.Empty(t, tr.Stats())
}
