package healer

import (
	"sort"

	"selector-healer/internal/entity"
)

// Tracker is the Flakiness Tracker: per-selector success/failure
// counters updated strictly after a heal call's terminal outcome.
type Tracker struct {
	entries map[string]entity.FlakinessEntry
}

func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]entity.FlakinessEntry)}
}

func (t *Tracker) Success(selector string) {
	e := t.entries[selector]
	e.Successes++
	t.entries[selector] = e
}

func (t *Tracker) Failure(selector string) {
	e := t.entries[selector]
	e.Failures++
	t.entries[selector] = e
}

// Stats returns selectors with a nonzero flakiness score, ranked
// descending.
func (t *Tracker) Stats() []entity.FlakinessStat {
	stats := make([]entity.FlakinessStat, 0, len(t.entries))

	for selector, e := range t.entries {
		score := e.Score()
		if score <= 0 {
			continue
		}

		stats = append(stats, entity.FlakinessStat{
			Selector:  selector,
			Score:     score,
			Successes: e.Successes,
			Failures:  e.Failures,
		})
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Score > stats[j].Score
	})

	return stats
}

func (t *Tracker) Clear() {
	t.entries = make(map[string]entity.FlakinessEntry)
}
