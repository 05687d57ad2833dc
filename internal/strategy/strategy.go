// Package strategy implements the four Healing Strategies: TestID
// Recovery, Text Matching, CSS Hierarchy, and LLM Analysis. Each
// proposes candidate selectors from one signal and validates them
// against the live page; the Healer caches the first successful
// strategy result.
package strategy

import (
	"context"

	"selector-healer/internal/entity"
	"selector-healer/internal/ports"
)

// Names are the configuration tags used in Config.Healing.Strategies
// and reported as HealingResult.Strategy.
const (
	NameTestID = "testid-recovery"
	NameText   = "text-matching"
	NameCSS    = "css-hierarchy"
	NameLLM    = "llm-analysis"
)

// Options carries the per-call hints the Healer forwards to every
// strategy it dispatches to.
type Options struct {
	// ExpectedType is the tag name a caller expects the healed element
	// to have (e.g. "button"). Strategies apply it as a confidence
	// bonus, never as a hard filter.
	ExpectedType string
}

// Strategy proposes and validates replacement selectors for one
// broken selector. Heal never panics: a missing precondition or a
// validation miss is reported via HealingResult.Success=false and a
// nil error. A non-nil error means the strategy raised — the Healer
// logs it and keeps dispatching.
type Strategy interface {
	Name() string
	Heal(ctx context.Context, drv ports.Driver, brokenSelector string, opts Options) (entity.HealingResult, error)
}

// noSignal builds the well-formed failure result strategies return
// when their precondition (a recognizable literal, a parseable
// shape) is absent.
func noSignal(name string) entity.HealingResult {
	return entity.HealingResult{
		Success:  false,
		Selector: "",
		Strategy: name,
		Error:    "no_signal",
	}
}

// noCandidate builds the well-formed failure result strategies return
// once their precondition is met but scoring yields zero candidates,
// or every scored candidate fails to validate against the live page.
func noCandidate(name string) entity.HealingResult {
	return entity.HealingResult{
		Success:  false,
		Selector: "",
		Strategy: name,
		Error:    "no_candidate",
	}
}
