package strategy

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"selector-healer/internal/entity"
	"selector-healer/internal/introspect"
	"selector-healer/internal/ports"
	"selector-healer/internal/similarity"
)

var testIDPattern = regexp.MustCompile(
	`\[\s*(data-testid|data-test-id|data-cy|data-test|testid)\s*=\s*['"]([^'"]*)['"]\s*\]`,
)

// TestID implements the TestID Recovery strategy.
type TestID struct{}

func NewTestID() *TestID { return &TestID{} }

func (s *TestID) Name() string { return NameTestID }

func (s *TestID) Heal(ctx context.Context, drv ports.Driver, brokenSelector string, opts Options) (entity.HealingResult, error) {
	match := testIDPattern.FindStringSubmatch(brokenSelector)
	if match == nil {
		return noSignal(s.Name()), nil
	}

	extracted := match[2]
	if extracted == "" {
		return noSignal(s.Name()), nil
	}

	elements, err := introspect.Extract(ctx, drv, introspect.Options{
		RequireAttrs: introspect.RecognizedTestIDAttrs,
	})
	if err != nil {
		return entity.HealingResult{}, err
	}

	candidates := scoreTestIDCandidates(extracted, elements, opts.ExpectedType)
	if len(candidates) == 0 {
		return noCandidate(s.Name()), nil
	}

	for _, c := range candidates {
		count, err := drv.Probe(ctx, c.Selector)
		if err != nil || count < 1 {
			continue
		}

		return entity.HealingResult{
			Success:      true,
			Selector:     c.Selector,
			Confidence:   c.Confidence,
			Strategy:     s.Name(),
			Alternatives: otherThan(candidates, c.Selector),
		}, nil
	}

	return noCandidate(s.Name()), nil
}

func scoreTestIDCandidates(extracted string, elements []entity.ElementDescriptor, expectedType string) []entity.Candidate {
	var candidates []entity.Candidate

	for _, el := range elements {
		for attr, value := range el.TestIDAttrs {
			confidence, matchType := scoreTestID(extracted, value)
			if confidence <= 0 {
				continue
			}

			if expectedType != "" && strings.EqualFold(el.Tag, expectedType) {
				confidence = entity.ClampConfidence(confidence + 0.10)
			}

			candidates = append(candidates, entity.Candidate{
				Selector:   fmt.Sprintf("[%s=\"%s\"]", attr, value),
				Confidence: confidence,
				Strategy:   NameTestID,
				Rationale:  matchType,
				Metadata: map[string]any{
					"matchType": matchType,
					"attribute": attr,
				},
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	return candidates
}

// scoreTestID runs the ordered scoring ladder: exact, normalized,
// containment either direction, then fuzzy match.
func scoreTestID(extracted, candidate string) (float64, string) {
	if strings.EqualFold(extracted, candidate) {
		return 0.95, "exact"
	}

	if normalizeTestID(extracted) == normalizeTestID(candidate) {
		return 0.90, "normalized"
	}

	if similarity.Contains(candidate, extracted) {
		return 0.80, "contains"
	}

	if similarity.Contains(extracted, candidate) {
		return 0.75, "contained-by"
	}

	lowerExtracted := strings.ToLower(extracted)
	lowerCandidate := strings.ToLower(candidate)

	ratio := similarity.LevenshteinRatio(lowerExtracted, lowerCandidate)
	if ratio <= 0.5 {
		return 0, "none"
	}

	return ratio, "fuzzy"
}

func normalizeTestID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.Join(strings.Fields(s), "")

	return s
}

func otherThan(candidates []entity.Candidate, selector string) []entity.Candidate {
	out := make([]entity.Candidate, 0, len(candidates))

	for _, c := range candidates {
		if c.Selector != selector {
			out = append(out, c)
		}
	}

	return out
}
