package strategy

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"selector-healer/internal/entity"
	"selector-healer/internal/ports"
)

var (
	idFragmentPattern    = regexp.MustCompile(`#[A-Za-z_][\w-]*`)
	nthChildPattern      = regexp.MustCompile(`:nth-child\(\s*\d+\s*\)`)
	classFragmentPattern = regexp.MustCompile(`\.[A-Za-z_][\w-]*`)
	attrFragmentPattern  = regexp.MustCompile(`\[[^\]]*\]`)
	tagPrefixPattern     = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*`)
)

// CSS implements the CSS Hierarchy strategy: purely syntactic
// transforms of the broken selector's own shape, no similarity
// scoring against the DOM beyond existence checks.
type CSS struct{}

func NewCSS() *CSS { return &CSS{} }

func (s *CSS) Name() string { return NameCSS }

func (s *CSS) Heal(ctx context.Context, drv ports.Driver, brokenSelector string, opts Options) (entity.HealingResult, error) {
	trimmed := strings.TrimSpace(brokenSelector)
	if trimmed == "" {
		return noSignal(s.Name()), nil
	}

	parts := splitParts(trimmed)
	if len(parts) == 0 {
		return noSignal(s.Name()), nil
	}

	candidates := cssTransforms(trimmed, parts)
	if len(candidates) == 0 {
		return noSignal(s.Name()), nil
	}

	candidates = dedupeCandidates(candidates)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

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

// splitParts breaks a selector into whitespace-separated compound
// parts, respecting bracketed attribute fragments so a quoted
// attribute value containing a space is not split.
func splitParts(selector string) []string {
	var parts []string

	var buf strings.Builder

	depth := 0

	for _, r := range selector {
		switch r {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		}

		if r == ' ' && depth == 0 {
			if buf.Len() > 0 {
				parts = append(parts, buf.String())
				buf.Reset()
			}

			continue
		}

		buf.WriteRune(r)
	}

	if buf.Len() > 0 {
		parts = append(parts, buf.String())
	}

	// Drop bare child-combinator tokens ('>') so depth reflects actual
	// compound parts rather than separators.
	filtered := make([]string, 0, len(parts))

	for _, p := range parts {
		if p != ">" {
			filtered = append(filtered, p)
		}
	}

	return filtered
}

type compoundParts struct {
	tag      string
	id       string
	classes  []string
	attrs    []string
	nthChild string
}

func parseCompound(part string) compoundParts {
	var c compoundParts

	if m := tagPrefixPattern.FindString(part); m != "" {
		c.tag = m
	}

	if m := idFragmentPattern.FindString(part); m != "" {
		c.id = strings.TrimPrefix(m, "#")
	}

	c.classes = classFragmentPattern.FindAllString(part, -1)
	for i, cl := range c.classes {
		c.classes[i] = strings.TrimPrefix(cl, ".")
	}

	c.attrs = attrFragmentPattern.FindAllString(part, -1)

	c.nthChild = nthChildPattern.FindString(part)

	return c
}

// cssTransforms emits a fixed, ordered family of structural
// simplifications, each tagged with its a-priori confidence.
func cssTransforms(full string, parts []string) []entity.Candidate {
	var candidates []entity.Candidate

	depth := len(parts)
	last := parseCompound(parts[len(parts)-1])
	first := parseCompound(parts[0])

	hasID := idFragmentPattern.MatchString(full)
	hasNthChild := nthChildPattern.MatchString(full)
	hasClass := classFragmentPattern.MatchString(full)
	hasAttr := attrFragmentPattern.MatchString(full)

	add := func(selector string, confidence float64) {
		sel := strings.TrimSpace(selector)
		if sel == "" {
			return
		}

		candidates = append(candidates, entity.Candidate{
			Selector:   sel,
			Confidence: confidence,
			Strategy:   NameCSS,
			Rationale:  "css-transform",
		})
	}

	// 1. Strip all #id fragments.
	if hasID && depth > 1 {
		add(idFragmentPattern.ReplaceAllString(full, ""), 0.70)
	}

	// 2. Strip :nth-child(N) fragments.
	if hasNthChild {
		add(nthChildPattern.ReplaceAllString(full, ""), 0.75)
	}

	// 3. Keep last two whitespace-separated parts.
	if depth > 2 {
		add(strings.Join(parts[depth-2:], " "), 0.65)
	}

	// 4. All classes concatenated.
	if hasClass {
		var all []string
		for _, p := range parts {
			all = append(all, parseCompound(p).classes...)
		}

		if len(all) > 0 {
			add("."+strings.Join(all, "."), 0.60)
		}
	}

	// 5. Each class singly.
	if hasClass {
		for _, p := range parts {
			for _, cl := range parseCompound(p).classes {
				add("."+cl, 0.55)
			}
		}
	}

	// 6. Last tag + all classes.
	if last.tag != "" && len(last.classes) > 0 {
		add(last.tag+"."+strings.Join(last.classes, "."), 0.68)
	}

	// 7. Join parts with ' > ' (child combinator).
	if depth > 1 {
		add(strings.Join(parts, " > "), 0.58)
	}

	// 8. Each bracketed attribute fragment alone.
	if hasAttr {
		seen := map[string]bool{}

		for _, p := range parts {
			for _, attr := range parseCompound(p).attrs {
				if !seen[attr] {
					seen[attr] = true
					add(attr, 0.72)
				}
			}
		}
	}

	// 9. First tag + first class.
	if first.tag != "" && len(first.classes) > 0 {
		add(first.tag+"."+first.classes[0], 0.62)
	}

	// 10. Last tag alone.
	if last.tag != "" {
		add(last.tag, 0.50)
	}

	// 11. Drop last part.
	if depth > 1 {
		add(strings.Join(parts[:depth-1], " "), 0.45)
	}

	return candidates
}

func dedupeCandidates(candidates []entity.Candidate) []entity.Candidate {
	seen := map[string]bool{}
	out := make([]entity.Candidate, 0, len(candidates))

	for _, c := range candidates {
		if seen[c.Selector] {
			continue
		}

		seen[c.Selector] = true
		out = append(out, c)
	}

	return out
}
