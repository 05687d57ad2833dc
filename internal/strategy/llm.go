package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"selector-healer/internal/entity"
	"selector-healer/internal/introspect"
	"selector-healer/internal/ports"
	"selector-healer/pkg/apperr"
)

var interactiveTags = map[string]bool{
	"button": true, "a": true, "input": true, "select": true, "textarea": true,
}

// LLM implements the LLM Analysis strategy: every response from the
// backend is untrusted text until one of its proposed selectors
// validates against the live page.
type LLM struct {
	client ports.LLMClient
}

func NewLLM(client ports.LLMClient) *LLM {
	return &LLM{client: client}
}

func (s *LLM) Name() string { return NameLLM }

func (s *LLM) Heal(ctx context.Context, drv ports.Driver, brokenSelector string, opts Options) (entity.HealingResult, error) {
	if s.client == nil || !s.client.Available(ctx) {
		result := noSignal(s.Name())
		result.Error = "llm_unavailable"

		return result, nil
	}

	elements, err := introspect.Extract(ctx, drv, introspect.Options{
		MaxElements: introspect.LLMMaxElements,
		TextLimit:   introspect.LLMTextLimit,
	})
	if err != nil {
		return entity.HealingResult{}, err
	}

	elements = prioritizeForLLM(elements)

	pageURL, _ := drv.URL(ctx)
	pageTitle, _ := drv.Title(ctx)

	prompt := buildPrompt(brokenSelector, opts.ExpectedType, pageURL, pageTitle, elements)

	response, err := s.client.Generate(ctx, prompt)
	if err != nil {
		result := noSignal(s.Name())

		if apperr.Code(err) == apperr.CodeLLMTimeout {
			result.Error = "llm_timeout"
		} else {
			result.Error = "llm_unavailable"
		}

		return result, nil
	}

	candidates := parseSuggestions(response)
	if len(candidates) == 0 {
		return noCandidate(s.Name()), nil
	}

	if len(candidates) > 5 {
		candidates = candidates[:5]
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

func prioritizeForLLM(elements []entity.ElementDescriptor) []entity.ElementDescriptor {
	priority := make([]entity.ElementDescriptor, 0, len(elements))
	rest := make([]entity.ElementDescriptor, 0, len(elements))

	for _, el := range elements {
		if interactiveTags[el.Tag] || el.Text != "" {
			priority = append(priority, el)
		} else {
			rest = append(rest, el)
		}
	}

	return append(priority, rest...)
}

type llmElement struct {
	Tag       string `json:"tag"`
	ID        string `json:"id,omitempty"`
	Classes   string `json:"classes,omitempty"`
	Text      string `json:"text,omitempty"`
	TestID    string `json:"testId,omitempty"`
	Role      string `json:"role,omitempty"`
	AriaLabel string `json:"ariaLabel,omitempty"`
}

func buildPrompt(brokenSelector, expectedType, pageURL, pageTitle string, elements []entity.ElementDescriptor) string {
	sample := elements
	if len(sample) > 30 {
		sample = sample[:30]
	}

	encoded := make([]llmElement, 0, len(sample))

	for _, el := range sample {
		encoded = append(encoded, llmElement{
			Tag:       el.Tag,
			ID:        el.ID,
			Classes:   strings.Join(el.Classes, " "),
			Text:      el.Text,
			TestID:    el.TestID,
			Role:      el.Role,
			AriaLabel: el.AriaLabel,
		})
	}

	elementsJSON, _ := json.Marshal(encoded)

	var expected string
	if expectedType != "" {
		expected = fmt.Sprintf("Expected element tag: %s\n", expectedType)
	}

	return fmt.Sprintf(`A browser test selector no longer resolves on the current page.

Broken selector: %s
%sPage URL: %s
Page title: %s

Candidate elements currently on the page (JSON array):
%s

Prioritize, in order: stable test-ID attributes, ARIA roles, visible text, semantic class names. Respond with ONLY a JSON object of the exact shape:
{"suggestions":[{"selector":"...","confidence":0.0,"reasoning":"..."}]}`,
		brokenSelector, expected, pageURL, pageTitle, string(elementsJSON))
}

type suggestionPayload struct {
	Suggestions []struct {
		Selector   string  `json:"selector"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	} `json:"suggestions"`
}

var (
	jsonObjectPattern = regexp.MustCompile(`\{[\s\S]*"suggestions"[\s\S]*\}`)
	selectorKVPattern = regexp.MustCompile(`"selector"\s*:\s*"([^"]*)"`)
	knownShapePattern = regexp.MustCompile(`(\[data-testid="[^"]*"\]|\[role="[^"]*"\]|text="[^"]*"|[A-Za-z]+:has-text\([^)]*\))`)
)

// parseSuggestions degrades across three layers: full JSON, a
// quoted-field scan, then a regex scan over known selector shapes.
func parseSuggestions(response string) []entity.Candidate {
	if m := jsonObjectPattern.FindString(response); m != "" {
		var payload suggestionPayload
		if err := json.Unmarshal([]byte(m), &payload); err == nil && len(payload.Suggestions) > 0 {
			candidates := make([]entity.Candidate, 0, len(payload.Suggestions))

			for _, sug := range payload.Suggestions {
				if sug.Selector == "" {
					continue
				}

				candidates = append(candidates, entity.Candidate{
					Selector:   sug.Selector,
					Confidence: entity.ClampConfidence(sug.Confidence),
					Strategy:   NameLLM,
					Rationale:  sug.Reasoning,
				})
			}

			if len(candidates) > 0 {
				return sortByConfidenceDedupe(candidates)
			}
		}
	}

	if matches := selectorKVPattern.FindAllStringSubmatch(response, -1); len(matches) > 0 {
		candidates := make([]entity.Candidate, 0, len(matches))

		for _, m := range matches {
			if m[1] == "" {
				continue
			}

			candidates = append(candidates, entity.Candidate{
				Selector:   m[1],
				Confidence: 0.5,
				Strategy:   NameLLM,
				Rationale:  "quoted-field-scan",
			})
		}

		if len(candidates) > 0 {
			return sortByConfidenceDedupe(candidates)
		}
	}

	if matches := knownShapePattern.FindAllString(response, -1); len(matches) > 0 {
		candidates := make([]entity.Candidate, 0, len(matches))

		for _, m := range matches {
			candidates = append(candidates, entity.Candidate{
				Selector:   m,
				Confidence: 0.4,
				Strategy:   NameLLM,
				Rationale:  "shape-scan",
			})
		}

		return sortByConfidenceDedupe(candidates)
	}

	return nil
}

func sortByConfidenceDedupe(candidates []entity.Candidate) []entity.Candidate {
	deduped := dedupeCandidates(candidates)

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].Confidence > deduped[j].Confidence
	})

	return deduped
}
