// Package action is the Action Wrapper: the uniform contract
// user-facing test code calls through, routing every selector-targeted
// interaction through the Retry Handler (and, on locator failures, the
// Healer) before reaching the driver.
package action

import (
	"context"

	"go.uber.org/fx"

	"selector-healer/internal/ports"
	"selector-healer/internal/retry"
	"selector-healer/internal/strategy"
)

// Wrapper adapts ports.Driver.Interact into the healing-aware retry
// path every action below shares.
type Wrapper struct {
	driver ports.Driver
	retry  *retry.Handler
}

type Params struct {
	fx.In

	Driver ports.Driver
	Retry  *retry.Handler
}

func New(p Params) *Wrapper {
	return &Wrapper{driver: p.Driver, retry: p.Retry}
}

func (w *Wrapper) interact(ctx context.Context, selector, act string, options map[string]any, opts strategy.Options) error {
	return w.retry.ExecuteWithHealing(ctx, selector, func(ctx context.Context, sel string) error {
		return w.driver.Interact(ctx, sel, act, options)
	}, opts)
}

func (w *Wrapper) Click(ctx context.Context, selector string, opts strategy.Options) error {
	return w.interact(ctx, selector, "click", nil, opts)
}

func (w *Wrapper) Fill(ctx context.Context, selector, value string, opts strategy.Options) error {
	return w.interact(ctx, selector, "fill", map[string]any{"value": value}, opts)
}

func (w *Wrapper) Type(ctx context.Context, selector, text string, opts strategy.Options) error {
	return w.interact(ctx, selector, "type", map[string]any{"text": text}, opts)
}

func (w *Wrapper) Select(ctx context.Context, selector, value string, opts strategy.Options) error {
	return w.interact(ctx, selector, "select", map[string]any{"value": value}, opts)
}

func (w *Wrapper) Check(ctx context.Context, selector string, opts strategy.Options) error {
	return w.interact(ctx, selector, "check", nil, opts)
}

func (w *Wrapper) Uncheck(ctx context.Context, selector string, opts strategy.Options) error {
	return w.interact(ctx, selector, "uncheck", nil, opts)
}

func (w *Wrapper) Screenshot(ctx context.Context, selector, path string, opts strategy.Options) error {
	return w.interact(ctx, selector, "screenshot", map[string]any{"path": path}, opts)
}

// Goto navigates the page and is not selector-targeted, so it bypasses
// the Healer entirely; it still runs through the Retry Handler for
// timeout/network classification.
func (w *Wrapper) Goto(ctx context.Context, url string) error {
	return w.retry.WithRetry(ctx, func(ctx context.Context) error {
		return w.driver.Interact(ctx, "", "goto", map[string]any{"url": url})
	})
}
