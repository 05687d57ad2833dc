package strategy

import (
	"context"
	"errors"
)

// fakeDriver is a minimal ports.Driver stand-in for strategy tests:
// Introspect returns a canned result, Probe consults presentSelectors.
type fakeDriver struct {
	introspectResult interface{}
	introspectErr    error
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
	if d.presentSelectors[selector] {
		return nil
	}

	return errors.New("timeout waiting for selector")
}

func (d *fakeDriver) Introspect(ctx context.Context, code string, args map[string]any) (interface{}, error) {
	return d.introspectResult, d.introspectErr
}

func (d *fakeDriver) Interact(ctx context.Context, selector, action string, options map[string]any) error {
	if !d.presentSelectors[selector] {
		return errors.New("element not found: " + selector)
	}

	return nil
}

func (d *fakeDriver) URL(ctx context.Context) (string, error)   { return "http://example.test", nil }
func (d *fakeDriver) Title(ctx context.Context) (string, error) { return "test page", nil }

func elementMap(fields map[string]interface{}) map[string]interface{} {
	base := map[string]interface{}{
		"tag": "div", "id": "", "classes": []interface{}{}, "text": "",
		"testId": "", "testIdAttrs": map[string]interface{}{}, "role": "",
		"ariaLabel": "", "type": "", "name": "", "title": "", "visible": true,
	}

	for k, v := range fields {
		base[k] = v
	}

	return base
}
