package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"selector-healer/internal/config"
	"selector-healer/internal/healer"
	"selector-healer/internal/ports"
	"selector-healer/internal/strategy"
)

func testRetryConfig() *config.RetryConfig {
	return &config.RetryConfig{
		OnTimeout:      true,
		OnFlakiness:    true,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
	}
}

func newHandler(t *testing.T, h *healer.Healer) *Handler {
	t.Helper()

	return New(Params{Config: testRetryConfig(), Healer: h, Logger: zap.NewNop()})
}

func TestWithRetry_SucceedsOnFirstTry(t *testing.T) {
	h := newHandler(t, nil)

	calls := 0
	err := h.WithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_RetriesTimeoutUpToMaxRetriesThenFails(t *testing.T) {
	h := newHandler(t, nil)

	calls := 0
	err := h.WithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("timeout waiting for selector")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls, "initial attempt plus MaxRetries=2 retries")
}

func TestWithRetry_NonRetryableClassFailsImmediately(t *testing.T) {
	h := newHandler(t, nil)

	calls := 0
	err := h.WithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("something unexpected exploded")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "ClassOther is never retryable regardless of budget")
}

func TestWithRetry_RetryDisabledByConfigForItsClass(t *testing.T) {
	cfg := testRetryConfig()
	cfg.OnTimeout = false

	h := New(Params{Config: cfg, Healer: nil, Logger: zap.NewNop()})

	calls := 0
	err := h.WithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("timeout waiting for selector")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	h := newHandler(t, nil)

	calls := 0
	err := h.WithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("net::ERR_CONNECTION_REFUSED")
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestExecuteWithHealing_NonLocatorErrorIgnoresHealer(t *testing.T) {
	h := newHandler(t, nil)

	calls := 0
	err := h.ExecuteWithHealing(context.Background(), "#submit", func(ctx context.Context, selector string) error {
		calls++
		return errors.New("timeout waiting for selector")
	}, strategy.Options{})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

// noDriver is a minimal ports.Driver where nothing is ever present,
// used to build a real Healer that cannot produce a successful heal.
type noDriver struct{}

func (noDriver) Launch(ctx context.Context) error { return nil }
func (noDriver) Close(ctx context.Context) error  { return nil }
func (noDriver) Probe(ctx context.Context, selector string) (int, error) {
	return 0, nil
}
func (noDriver) Wait(ctx context.Context, selector, state string, timeoutMs int) error {
	return errors.New("timeout")
}
func (noDriver) Introspect(ctx context.Context, code string, args map[string]any) (any, error) {
	return nil, nil
}
func (noDriver) Interact(ctx context.Context, selector, action string, options map[string]any) error {
	return errors.New("element not found: " + selector)
}
func (noDriver) URL(ctx context.Context) (string, error)   { return "", nil }
func (noDriver) Title(ctx context.Context) (string, error) { return "", nil }

func newHealerWithoutStrategies(t *testing.T) *healer.Healer {
	t.Helper()

	h, err := healer.New(healer.Params{
		Driver: noDriver{},
		Config: &config.Config{
			AppConfig:     &config.AppConfig{},
			BrowserConfig: &config.BrowserConfig{},
			Healing: &config.HealingConfig{
				Enabled:      true,
				Strategies:   nil,
				MaxAttempts:  1,
				CacheHealing: true,
			},
			Ollama:    &config.OllamaConfig{URL: "http://localhost:11434", Model: "llama3.1", Timeout: time.Second},
			Retry:     testRetryConfig(),
			Telemetry: &config.TelemetryConfig{},
		},
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	return h
}

func TestExecuteWithHealing_LocatorErrorConsultsHealerFirst(t *testing.T) {
	h := newHandler(t, newHealerWithoutStrategies(t))

	calls := 0
	err := h.ExecuteWithHealing(context.Background(), "#submit", func(ctx context.Context, selector string) error {
		calls++
		return errors.New("selector resolved to 0 elements")
	}, strategy.Options{})

	require.Error(t, err)
	assert.Equal(t, 3, calls, "heal fails (no strategies) so the action still burns its retry budget")
}

func TestExecuteWithHealing_ReplaysOnSuccessfulHealWithoutConsumingRetryBudget(t *testing.T) {
	drv := &oneShotDriver{healedSelector: `[data-testid="submit"]`}

	h, err := healer.New(healer.Params{
		Driver: drv,
		Config: &config.Config{
			AppConfig:     &config.AppConfig{},
			BrowserConfig: &config.BrowserConfig{},
			Healing: &config.HealingConfig{
				Enabled:      true,
				Strategies:   []string{strategy.NameTestID},
				MaxAttempts:  1,
				CacheHealing: true,
			},
			Ollama:    &config.OllamaConfig{URL: "http://localhost:11434", Model: "llama3.1", Timeout: time.Second},
			Retry:     testRetryConfig(),
			Telemetry: &config.TelemetryConfig{},
		},
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	handler := newHandler(t, h)

	brokenSelector := `[data-testid="submit-old"]`

	calls := 0
	err = handler.ExecuteWithHealing(context.Background(), brokenSelector, func(ctx context.Context, selector string) error {
		calls++
		if selector == drv.healedSelector {
			return nil
		}

		return errors.New("selector resolved to 0 elements")
	}, strategy.Options{})

	require.NoError(t, err)
	assert.Equal(t, 2, calls, "one failing attempt against the broken selector, one successful replay, no retry sleep")
}

// oneShotDriver lets the testid-recovery strategy find exactly one
// candidate element carrying the healed selector's test id.
type oneShotDriver struct {
	healedSelector string
}

func (d *oneShotDriver) Launch(ctx context.Context) error { return nil }
func (d *oneShotDriver) Close(ctx context.Context) error  { return nil }

func (d *oneShotDriver) Probe(ctx context.Context, selector string) (int, error) {
	if selector == d.healedSelector {
		return 1, nil
	}

	return 0, nil
}

func (d *oneShotDriver) Wait(ctx context.Context, selector, state string, timeoutMs int) error {
	return nil
}

func (d *oneShotDriver) Introspect(ctx context.Context, code string, args map[string]any) (any, error) {
	return []interface{}{
		map[string]interface{}{
			"tag": "button", "id": "", "classes": []interface{}{}, "text": "Submit",
			"testId": "submit", "testIdAttrs": map[string]interface{}{"data-testid": "submit"},
			"role": "", "ariaLabel": "", "type": "submit", "name": "", "title": "", "visible": true,
		},
	}, nil
}

func (d *oneShotDriver) Interact(ctx context.Context, selector, action string, options map[string]any) error {
	return nil
}

func (d *oneShotDriver) URL(ctx context.Context) (string, error)   { return "", nil }
func (d *oneShotDriver) Title(ctx context.Context) (string, error) { return "", nil }

var _ ports.Driver = (*oneShotDriver)(nil)
