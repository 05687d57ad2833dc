// Package healer implements the Healer dispatcher: the component that
// owns strategy ordering, caching, and flakiness tracking for one
// selector-healing engine instance. Candidates are validated against
// the live page inside each strategy; the Healer trusts a strategy's
// successful result.
package healer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"selector-healer/internal/config"
	"selector-healer/internal/entity"
	"selector-healer/internal/llmclient"
	"selector-healer/internal/ports"
	"selector-healer/internal/strategy"
	"selector-healer/pkg/logg"
	"selector-healer/pkg/tracing"
)

const tracerName = "healer"

// Healer serializes every healing call against one Driver: it makes
// no guarantees under concurrent Heal invocations against the same
// instance, by design. Callers must not share one Healer across
// parallel test workers.
type Healer struct {
	driver     ports.Driver
	config     *config.Config
	cache      *Cache
	tracker    *Tracker
	strategies []strategy.Strategy
	llmClient  ports.LLMClient
	logger     *zap.Logger
	tracer     trace.Tracer
}

// Params is the fx.In construction bundle.
type Params struct {
	fx.In

	Driver ports.Driver
	Config *config.Config
	Logger *zap.Logger
}

func New(p Params) (*Healer, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Healer{
		driver:  p.Driver,
		cache:   NewCache(),
		tracker: NewTracker(),
		logger:  logger.With(zap.String(logg.Layer, "healer")),
		tracer:  otel.Tracer(tracerName),
	}

	h.rebuild(p.Config)

	return h, nil
}

// rebuild re-instantiates every strategy (and the LLM client) from
// cfg. A failure constructing the LLM client degrades LLM Analysis to
// unavailable rather than failing the whole Healer.
func (h *Healer) rebuild(cfg *config.Config) {
	h.config = cfg

	client, err := llmclient.New(llmclient.Params{
		BaseURL: cfg.Ollama.URL,
		Model:   cfg.Ollama.Model,
		Timeout: cfg.Ollama.Timeout,
		Logger:  h.logger,
	})
	if err != nil {
		h.logger.Warn("llm client construction failed, disabling llm-analysis", zap.Error(err))
		h.llmClient = nil
	} else {
		h.llmClient = client
	}

	h.strategies = buildStrategies(cfg.Healing.Strategies, h.llmClient)
}

func buildStrategies(names []string, llmClient ports.LLMClient) []strategy.Strategy {
	seen := make(map[string]bool, len(names))

	out := make([]strategy.Strategy, 0, len(names))

	for _, name := range names {
		if seen[name] {
			continue
		}

		seen[name] = true

		switch name {
		case strategy.NameTestID:
			out = append(out, strategy.NewTestID())
		case strategy.NameText:
			out = append(out, strategy.NewText())
		case strategy.NameCSS:
			out = append(out, strategy.NewCSS())
		case strategy.NameLLM:
			out = append(out, strategy.NewLLM(llmClient))
		}
	}

	return out
}

// Heal is the primary entry point: cache lookup, probe short-circuit,
// then the ordered strategy dispatch loop.
func (h *Healer) Heal(ctx context.Context, brokenSelector string, opts strategy.Options) entity.HealingResult {
	const op = "Heal"

	taskID := uuid.New().String()

	logger := h.logger.With(
		zap.String(logg.Operation, op),
		zap.String(logg.Selector, brokenSelector),
		zap.String(logg.TaskID, taskID),
	)

	ctx, step := tracing.StartSpan(ctx, h.tracer, logger, op, attribute.String("task_id", taskID))
	defer func() { step.End(nil) }()

	if !h.config.Healing.Enabled {
		return entity.HealingResult{Success: false, Selector: brokenSelector, Confidence: 0, Error: "disabled"}.
			WithMetadata("taskID", taskID)
	}

	if h.config.Healing.CacheHealing {
		if result, hit := h.tryCacheHit(ctx, brokenSelector); hit {
			return result.WithMetadata("taskID", taskID)
		}
	}

	// An original selector that still resolves is reported as a success
	// with noHealingNeeded, even if the caller expected it to be gone.
	if brokenSelector != "" {
		if count, err := h.driver.Probe(ctx, brokenSelector); err == nil && count >= 1 {
			h.tracker.Success(brokenSelector)

			return entity.HealingResult{
				Success:    true,
				Selector:   brokenSelector,
				Confidence: 1.0,
				Metadata:   map[string]any{"noHealingNeeded": true, "taskID": taskID},
			}
		}
	}

	if len(h.strategies) == 0 {
		h.tracker.Failure(brokenSelector)

		return entity.HealingResult{
			Success:  false,
			Selector: brokenSelector,
			Error:    "no strategies configured",
		}.WithMetadata("taskID", taskID)
	}

	maxAttempts := h.config.Healing.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	last := entity.HealingResult{Success: false, Selector: brokenSelector, Error: "no_candidate"}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		for _, st := range h.strategies {
			result, err := st.Heal(ctx, h.driver, brokenSelector, opts)
			if err != nil {
				logger.Error("strategy raised", zap.String(logg.Strategy, st.Name()), zap.Error(err))

				last = entity.HealingResult{
					Success:  false,
					Selector: brokenSelector,
					Strategy: st.Name(),
					Error:    "strategy_exception",
				}

				continue
			}

			last = result

			if result.Success {
				result.Confidence = entity.ClampConfidence(result.Confidence)

				if h.config.Healing.CacheHealing {
					h.cache.Set(brokenSelector, entity.CacheEntry{
						Healed:     result.Selector,
						Confidence: result.Confidence,
						Strategy:   result.Strategy,
						CreatedAt:  time.Now(),
						UseCount:   1,
					})
				}

				h.tracker.Success(result.Selector)

				return result.WithMetadata("taskID", taskID)
			}
		}

		if attempt < maxAttempts-1 {
			time.Sleep(time.Duration(1000*(attempt+1)) * time.Millisecond)
		}
	}

	h.tracker.Failure(brokenSelector)

	return last.WithMetadata("taskID", taskID)
}

func (h *Healer) tryCacheHit(ctx context.Context, brokenSelector string) (entity.HealingResult, bool) {
	entry, ok := h.cache.Get(brokenSelector)
	if !ok {
		return entity.HealingResult{}, false
	}

	count, err := h.driver.Probe(ctx, entry.Healed)
	if err != nil || count < 1 {
		h.cache.Evict(brokenSelector)

		return entity.HealingResult{}, false
	}

	h.cache.Hit(brokenSelector)
	h.tracker.Success(entry.Healed)

	return entity.HealingResult{
		Success:    true,
		Selector:   entry.Healed,
		Confidence: entry.Confidence,
		Strategy:   entry.Strategy,
		Metadata:   map[string]any{"cached": true},
	}, true
}

// HealthCheck reports per-strategy availability and cache detail.
func (h *Healer) HealthCheck(ctx context.Context) entity.HealthStatus {
	status := make(map[string]bool, len(h.strategies))
	available := 0

	for _, st := range h.strategies {
		ok := true

		if st.Name() == strategy.NameLLM {
			ok = h.llmClient != nil && h.llmClient.Available(ctx)
		}

		status[st.Name()] = ok

		if ok {
			available++
		}
	}

	overall := "offline"

	switch {
	case len(h.strategies) > 0 && available == len(h.strategies):
		overall = "healthy"
	case available > 0:
		overall = "degraded"
	}

	stats := h.cache.Stats()

	return entity.HealthStatus{
		Status:         overall,
		StrategyStatus: status,
		CacheSize:      stats.Size,
		CacheHitCount:  stats.HitCount,
	}
}

// GetFlakinessStats returns selectors ranked by descending flakiness
// score.
func (h *Healer) GetFlakinessStats() []entity.FlakinessStat {
	return h.tracker.Stats()
}

// ClearCache resets both the Healing Cache and the Flakiness Tracker.
func (h *Healer) ClearCache() {
	h.cache.Clear()
	h.tracker.Clear()
}

// UpdateConfig applies a partial override and re-instantiates every
// strategy against the resulting configuration.
func (h *Healer) UpdateConfig(partial config.Partial) {
	h.rebuild(h.config.Apply(partial))
}
