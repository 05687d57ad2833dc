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

var textPatterns = []*regexp.Regexp{
	regexp.MustCompile(`text=["']([^"']*)["']`),
	regexp.MustCompile(`text=([^\s"']+)`),
	regexp.MustCompile(`:has-text\(\s*["']([^"']*)["']\s*\)`),
	regexp.MustCompile(`contains\(\s*[^,]+,\s*["']([^"']*)["']\s*\)`),
	regexp.MustCompile(`getByText\(\s*["']([^"']*)["']`),
}

const interactiveHasTextTag = "button|a"

// Text implements the Text Matching strategy.
type Text struct{}

func NewText() *Text { return &Text{} }

func (s *Text) Name() string { return NameText }

func (s *Text) Heal(ctx context.Context, drv ports.Driver, brokenSelector string, opts Options) (entity.HealingResult, error) {
	extracted := extractText(brokenSelector)
	if extracted == "" {
		return noSignal(s.Name()), nil
	}

	elements, err := introspect.Extract(ctx, drv, introspect.Options{RequireText: true})
	if err != nil {
		return entity.HealingResult{}, err
	}

	candidates := scoreTextCandidates(extracted, elements, opts.ExpectedType)
	if len(candidates) == 0 {
		return noCandidate(s.Name()), nil
	}

	if len(candidates) > 10 {
		candidates = candidates[:10]
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

func extractText(selector string) string {
	for _, p := range textPatterns {
		if m := p.FindStringSubmatch(selector); m != nil {
			return m[1]
		}
	}

	return ""
}

func scoreTextCandidates(extracted string, elements []entity.ElementDescriptor, expectedType string) []entity.Candidate {
	var candidates []entity.Candidate

	trimmedExtracted := strings.TrimSpace(extracted)

	for _, el := range elements {
		if el.Text == "" {
			continue
		}

		sim := textSimilarity(trimmedExtracted, el.Text)
		if sim < 0.80 {
			continue
		}

		confidence := sim

		switch {
		case extracted == el.Text:
			confidence = 0.95
		case trimmedExtracted == strings.TrimSpace(el.Text):
			confidence = 0.92
		}

		if expectedType != "" && strings.EqualFold(el.Tag, expectedType) {
			confidence = entity.ClampConfidence(confidence + 0.05)
		}

		for _, variant := range textSelectorVariants(el) {
			candidates = append(candidates, entity.Candidate{
				Selector:   variant,
				Confidence: confidence,
				Strategy:   NameText,
				Rationale:  "text-similarity",
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	return candidates
}

// textSimilarity runs an ordered comparison ladder: exact match,
// substring containment, Levenshtein for near-equal lengths, and
// word-overlap as the fallback.
func textSimilarity(extracted, candidate string) float64 {
	if similarity.NormalizedEqual(extracted, candidate) {
		return 1.00
	}

	la, lb := strings.ToLower(extracted), strings.ToLower(candidate)

	if strings.Contains(la, lb) || strings.Contains(lb, la) {
		shorter, longer := la, lb
		if len(longer) < len(shorter) {
			shorter, longer = longer, shorter
		}

		if len(longer) == 0 {
			return 0.85
		}

		return 0.85 + (float64(len(shorter))/float64(len(longer)))*0.15
	}

	if abs(len(extracted)-len(candidate)) < 10 {
		return similarity.LevenshteinRatio(la, lb)
	}

	return similarity.WordOverlap(la, lb)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}

	return n
}

// escapeText escapes backslashes and quotes for embedding text inside
// a generated selector literal.
func escapeText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\t", " ")

	return s
}

func textSelectorVariants(el entity.ElementDescriptor) []string {
	text := escapeText(el.Text)
	var variants []string

	variants = append(variants, fmt.Sprintf(`text="%s"`, text))
	variants = append(variants, fmt.Sprintf(`:has-text("%s")`, text))

	if el.Tag == "button" || el.Tag == "a" {
		variants = append(variants, fmt.Sprintf(`%s:has-text("%s")`, el.Tag, text))
	}

	if el.Role != "" {
		variants = append(variants, fmt.Sprintf(`[role="%s"]:has-text("%s")`, escapeText(el.Role), text))
	}

	if el.AriaLabel != "" {
		variants = append(variants, fmt.Sprintf(`[aria-label="%s"]`, escapeText(el.AriaLabel)))
	}

	if el.Title != "" {
		variants = append(variants, fmt.Sprintf(`[title="%s"]`, escapeText(el.Title)))
	}

	if len(text) > 20 {
		variants = append(variants, fmt.Sprintf(`:has-text("%s")`, text[:15]))
	}

	return variants
}
