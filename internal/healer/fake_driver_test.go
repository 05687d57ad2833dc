package healer

import (
	"context"
	"errors"

	"selector-healer/internal/entity"
	"selector-healer/internal/ports"
	"selector-healer/internal/strategy"
)

type fakeDriver struct {
	presentSelectors map[string]bool
	probed           []string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{presentSelectors: map[string]bool{}}
}

func (d *fakeDriver) Launch(ctx context.Context) error { return nil }
func (d *fakeDriver) Close(ctx context.Context) error  { return nil }

func (d *fakeDriver) Probe(ctx context.Context, selector string) (int, error) {
	d.probed = append(d.probed, selector)

	if d.presentSelectors[selector] {
		return 1, nil
	}

	return 0, nil
}

func (d *fakeDriver) Wait(ctx context.Context, selector, state string, timeoutMs int) error {
	return nil
}

func (d *fakeDriver) Introspect(ctx context.Context, code string, args map[string]any) (any, error) {
	return nil, nil
}

func (d *fakeDriver) Interact(ctx context.Context, selector, action string, options map[string]any) error {
	return nil
}

func (d *fakeDriver) URL(ctx context.Context) (string, error)   { return "http://example.test", nil }
func (d *fakeDriver) Title(ctx context.Context) (string, error) { return "test page", nil }

// fakeStrategy is a scripted strategy.Strategy used to drive the
// Healer's dispatch loop without involving the real strategies.
type fakeStrategy struct {
	name    string
	results []strategyCall
	calls   int
}

type strategyCall struct {
	result entity.HealingResult
	err    error
}

func (s *fakeStrategy) Name() string { return s.name }

func (s *fakeStrategy) Heal(ctx context.Context, drv ports.Driver, brokenSelector string, opts strategy.Options) (entity.HealingResult, error) {
	if s.calls >= len(s.results) {
		return entity.HealingResult{Success: false, Strategy: s.name, Error: "no_candidate"}, nil
	}

	call := s.results[s.calls]
	s.calls++

	return call.result, call.err
}

func failResult(name string) strategyCall {
	return strategyCall{result: entity.HealingResult{Success: false, Strategy: name, Error: "no_candidate"}}
}

func successResult(name, selector string, confidence float64) strategyCall {
	return strategyCall{result: entity.HealingResult{
		Success:    true,
		Selector:   selector,
		Confidence: confidence,
		Strategy:   name,
	}}
}

func exceptionResult() strategyCall {
	return strategyCall{err: errors.New("driver exploded")}
}
