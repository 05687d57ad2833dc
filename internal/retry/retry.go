// Package retry implements the Retry Handler: error classification,
// exponential backoff, and escalation to the Healer on locator-class
// failures.
package retry

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"selector-healer/internal/config"
	"selector-healer/internal/healer"
	"selector-healer/internal/strategy"
	"selector-healer/pkg/logg"
)

// Action is a retryable operation with no selector to replay.
type Action func(ctx context.Context) error

// SelectorAction is a retryable operation parameterized by the
// selector it targets, replayed against a healed selector by
// ExecuteWithHealing.
type SelectorAction func(ctx context.Context, selector string) error

// Handler is the Retry Handler. trying -> (success: done) |
// (retryable + attempts left: waiting -> trying) | (fatal or
// exhausted: failed).
type Handler struct {
	config *config.RetryConfig
	healer *healer.Healer
	logger *zap.Logger
}

type Params struct {
	fx.In

	Config *config.RetryConfig
	Healer *healer.Healer
	Logger *zap.Logger
}

func New(p Params) *Handler {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{
		config: p.Config,
		healer: p.Healer,
		logger: logger.With(zap.String(logg.Layer, "retry")),
	}
}

// WithRetry runs action; on a retryable error it sleeps with
// doubling backoff (capped at MaxBackoff) and retries, up to
// MaxRetries times.
func (h *Handler) WithRetry(ctx context.Context, action Action) error {
	backoff := h.config.InitialBackoff
	attempt := 0

	for {
		err := action(ctx)
		if err == nil {
			return nil
		}

		class := Classify(err)
		if !h.retryable(class) || attempt >= h.config.MaxRetries {
			return err
		}

		h.logger.Warn("retrying after classified error",
			zap.String(logg.ErrorClass, string(class)),
			zap.Int(logg.Attempt, attempt),
		)

		time.Sleep(backoff)

		backoff = nextBackoff(backoff, h.config.MaxBackoff)
		attempt++
	}
}

// ExecuteWithHealing is WithRetry, but locator-class errors first
// invoke the Healer; a successful heal replays action with the
// healed selector before any retry budget is consumed. When a Healer is
// attached, a locator-class error that healing does not resolve is
// retried like any retryable error, consuming the retry budget.
func (h *Handler) ExecuteWithHealing(ctx context.Context, selector string, action SelectorAction, opts strategy.Options) error {
	current := selector
	backoff := h.config.InitialBackoff
	attempt := 0

	for {
		err := action(ctx, current)
		if err == nil {
			return nil
		}

		class := Classify(err)

		if class == ClassLocator && h.healer != nil {
			result := h.healer.Heal(ctx, current, opts)
			if result.Success {
				current = result.Selector

				replayErr := action(ctx, current)
				if replayErr == nil {
					return nil
				}

				err = replayErr
				class = Classify(err)
			}
		}

		retryable := h.retryable(class) || (class == ClassLocator && h.healer != nil)
		if !retryable || attempt >= h.config.MaxRetries {
			return err
		}

		time.Sleep(backoff)

		backoff = nextBackoff(backoff, h.config.MaxBackoff)
		attempt++
	}
}

func (h *Handler) retryable(class Class) bool {
	switch class {
	case ClassTimeout:
		return h.config.OnTimeout
	case ClassNetwork:
		return true
	case ClassFlakiness:
		return h.config.OnFlakiness
	default:
		return false
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}

	return next
}
