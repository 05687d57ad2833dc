package ports

import "context"

// Driver is the browser automation driver the Healer and its
// strategies consume. Implementations (internal/driver) are the only
// code allowed to touch an actual browser; everything above this
// interface talks selectors and JavaScript, never a concrete page
// object.
type Driver interface {
	// Launch starts the underlying browser process. Close tears it
	// down. Both are lifecycle operations, not part of the healing
	// data path, but the bootstrap layer drives them through this
	// interface rather than a concrete type.
	Launch(ctx context.Context) error
	Close(ctx context.Context) error

	// Probe reports how many elements currently match selector.
	// count >= 1 means present.
	Probe(ctx context.Context, selector string) (int, error)

	// Wait blocks until selector reaches state ("attached", "visible",
	// ...) or timeout elapses, returning a timeout error otherwise.
	Wait(ctx context.Context, selector, state string, timeoutMs int) error

	// Introspect runs code inside the live page and returns its
	// JSON-serializable result. This is the sole DOM read channel; the
	// DOM Introspector is the only caller.
	Introspect(ctx context.Context, code string, args map[string]any) (any, error)

	// Interact performs a user-facing action (click, fill, type,
	// select, check, uncheck, screenshot, goto) against selector.
	Interact(ctx context.Context, selector, action string, options map[string]any) error

	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
}

// LLMClient is the remote text-generation backend the LLM Analysis
// strategy treats as a fallible collaborator: every response is
// untrusted text until the driver validates a candidate it proposes.
type LLMClient interface {
	// Available probes the backend's listing endpoint with a short
	// timeout and reports whether it responded successfully.
	Available(ctx context.Context) bool

	// Generate runs a single non-streaming completion and returns the
	// raw response text.
	Generate(ctx context.Context, prompt string) (string, error)
}
