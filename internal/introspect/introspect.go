// Package introspect is the DOM Introspector: the only component
// allowed to read the live DOM. It runs a single bounded JavaScript
// extraction per call and hands back Element Descriptors that
// strategies consume but never mutate.
package introspect

import (
	"context"
	"fmt"
	"strings"

	"selector-healer/internal/entity"
	"selector-healer/internal/ports"
	"selector-healer/pkg/apperr"
)

const (
	DefaultMaxElements = 500
	LLMMaxElements     = 50
	DefaultTextLimit   = 200
	LLMTextLimit       = 100
)

// RecognizedTestIDAttrs is the allow-listed set of stable-ID
// attributes the TestID Recovery strategy and the introspection
// script both recognize.
var RecognizedTestIDAttrs = []string{"data-testid", "data-test-id", "data-cy", "data-test", "testid"}

// Options bounds and shapes one extraction call.
type Options struct {
	MaxElements int
	TextLimit   int
	// RequireAttrs, if non-empty, keeps only elements carrying at
	// least one of these attributes (used by the TestID strategy).
	RequireAttrs []string
	// RequireText keeps only elements with non-empty visible text.
	RequireText bool
}

// Extract runs the bounded extraction script against the live page
// and returns the resulting Element Descriptors.
func Extract(ctx context.Context, drv ports.Driver, opts Options) ([]entity.ElementDescriptor, error) {
	const op = "Extract"

	if opts.MaxElements <= 0 {
		opts.MaxElements = DefaultMaxElements
	}

	if opts.TextLimit <= 0 {
		opts.TextLimit = DefaultTextLimit
	}

	script := buildScript(opts)

	result, err := drv.Introspect(ctx, script, nil)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeDriverError, err, map[string]any{
			apperr.MetaReason: "introspect_failed",
			apperr.MetaStage:  apperr.StageIntrospection,
		})
	}

	items, ok := result.([]interface{})
	if !ok {
		return []entity.ElementDescriptor{}, nil
	}

	descriptors := make([]entity.ElementDescriptor, 0, len(items))

	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		descriptors = append(descriptors, toDescriptor(m))
	}

	return descriptors, nil
}

func toDescriptor(m map[string]interface{}) entity.ElementDescriptor {
	desc := entity.ElementDescriptor{
		Tag:       str(m, "tag"),
		ID:        str(m, "id"),
		Text:      str(m, "text"),
		TestID:    str(m, "testId"),
		Role:      str(m, "role"),
		AriaLabel: str(m, "ariaLabel"),
		Type:      str(m, "type"),
		Name:      str(m, "name"),
		Title:     str(m, "title"),
		Visible:   boolVal(m, "visible"),
		Classes:   strSlice(m["classes"]),
	}

	if parent, ok := m["parent"].(map[string]interface{}); ok && parent != nil {
		desc.Parent = &entity.ParentDescriptor{
			Tag:     str(parent, "tag"),
			Classes: strSlice(parent["classes"]),
		}
	}

	if attrs, ok := m["testIdAttrs"].(map[string]interface{}); ok {
		desc.TestIDAttrs = make(map[string]string, len(attrs))

		for k, v := range attrs {
			if s, ok := v.(string); ok {
				desc.TestIDAttrs[k] = s
			}
		}
	}

	return desc
}

func str(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}

	return ""
}

func boolVal(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}

	return false
}

func strSlice(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}

	out := make([]string, 0, len(list))

	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}

	return out
}

// buildScript renders the single JS extraction program. It excludes
// non-visible subtrees and non-visual tags, bounds the result to
// MaxElements, and truncates text to TextLimit characters.
func buildScript(opts Options) string {
	var attrFilter string

	if len(opts.RequireAttrs) > 0 {
		quoted := make([]string, len(opts.RequireAttrs))

		for i, a := range opts.RequireAttrs {
			quoted[i] = fmt.Sprintf("%q", a)
		}

		attrFilter = fmt.Sprintf(`
			const requireAttrs = [%s];
			let hasAttr = false;
			for (const a of requireAttrs) { if (el.hasAttribute(a)) { hasAttr = true; break; } }
			if (!hasAttr) continue;
		`, strings.Join(quoted, ","))
	}

	var textFilter string

	if opts.RequireText {
		textFilter = `
			const txt = (el.innerText || el.textContent || '').trim();
			if (!txt) continue;
		`
	}

	return fmt.Sprintf(`(() => {
		try {
			const EXCLUDED_TAGS = new Set(['SCRIPT', 'STYLE', 'NOSCRIPT', 'HEAD']);
			const result = [];
			const all = document.querySelectorAll('*');

			for (let i = 0; i < all.length && result.length < %d; i++) {
				const el = all[i];
				const tag = el.tagName;

				if (EXCLUDED_TAGS.has(tag)) continue;

				const style = window.getComputedStyle(el);
				const rect = el.getBoundingClientRect();
				let isVisible = true;
				for (let node = el; node; node = node.parentElement) {
					const s = node === el ? style : window.getComputedStyle(node);
					if (s.display === 'none' || s.visibility === 'hidden' || parseFloat(s.opacity || '1') <= 0) {
						isVisible = false;
						break;
					}
				}

				if (!isVisible) continue;

				%s
				%s

				let text = (el.innerText || el.textContent || '').trim();
				if (text.length > %d) {
					text = text.substring(0, %d);
				}

				const classes = el.className && typeof el.className === 'string'
					? el.className.split(' ').filter(Boolean)
					: [];

				let parent = null;
				if (el.parentElement) {
					const p = el.parentElement;
					parent = {
						tag: p.tagName.toLowerCase(),
						classes: (p.className && typeof p.className === 'string') ? p.className.split(' ').filter(Boolean) : []
					};
				}

				const testIdAttrs = {};
				for (const attr of ['data-testid', 'data-test-id', 'data-cy', 'data-test', 'testid']) {
					const v = el.getAttribute(attr);
					if (v !== null) testIdAttrs[attr] = v;
				}

				result.push({
					tag: tag.toLowerCase(),
					id: el.id || '',
					classes: classes,
					text: text,
					testId: testIdAttrs['data-testid'] || testIdAttrs['data-test-id'] || testIdAttrs['data-cy'] || testIdAttrs['data-test'] || testIdAttrs['testid'] || '',
					testIdAttrs: testIdAttrs,
					role: el.getAttribute('role') || '',
					ariaLabel: el.getAttribute('aria-label') || '',
					type: el.getAttribute('type') || '',
					name: el.getAttribute('name') || '',
					title: el.getAttribute('title') || '',
					visible: true,
					parent: parent
				});
			}

			return result;
		} catch (e) {
			return [];
		}
	})()`, opts.MaxElements, attrFilter, textFilter, opts.TextLimit, opts.TextLimit)
}
