// Package driver adapts the browser automation driver contract
// (ports.Driver) onto playwright-go: a long-lived Manager owns the
// Playwright process, one browser context, and the active page,
// re-acquiring the page if it closes out from under us.
package driver

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"selector-healer/internal/config"
	"selector-healer/pkg/apperr"
	"selector-healer/pkg/logg"
	"selector-healer/pkg/tracing"
)

const (
	managerName = "PlaywrightDriver"
	driverTracer = "driver.playwright"
)

type Manager struct {
	config         *config.Config
	logger         *zap.Logger
	tracer         trace.Tracer
	playwright     *playwright.Playwright
	browser        playwright.Browser
	browserContext playwright.BrowserContext
	page           playwright.Page
	ready          bool
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

func NewManager(params Params) *Manager {
	return &Manager{
		config: params.Config,
		logger: params.Logger.With(zap.String(logg.Layer, managerName)),
		tracer: otel.Tracer(driverTracer),
	}
}

func (m *Manager) Launch(ctx context.Context) (err error) {
	const op = "Launch"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() { step.End(err) }()

	logger.Info("launching browser")

	if err := playwright.Install(); err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "playwright_install_failed",
			apperr.MetaStage:  apperr.StageDriver,
		})
	}

	pw, err := playwright.Run()
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "playwright_start_failed",
			apperr.MetaStage:  apperr.StageDriver,
		})
	}

	m.playwright = pw

	if m.config.BrowserConfig.UserDataDir != "" {
		return m.launchPersistent(ctx)
	}

	return m.launchNew(ctx)
}

func (m *Manager) launchPersistent(ctx context.Context) (err error) {
	const op = "launchPersistent"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() { step.End(err) }()

	userDataDir := m.config.BrowserConfig.UserDataDir

	if err := os.MkdirAll(userDataDir, 0755); err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "mkdir_failed",
			apperr.MetaStage:  apperr.StageDriver,
		})
	}

	browserContext, err := m.playwright.Chromium.LaunchPersistentContext(userDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(m.config.BrowserConfig.Headless),
		SlowMo:   playwright.Float(float64(m.config.BrowserConfig.SlowMo)),
		Viewport: &playwright.Size{Width: 1280, Height: 720},
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "launch_persistent_failed",
			apperr.MetaStage:  apperr.StageDriver,
		})
	}

	m.browserContext = browserContext

	if pages := browserContext.Pages(); len(pages) > 0 {
		m.page = pages[0]
	} else {
		page, err := browserContext.NewPage()
		if err != nil {
			return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
				apperr.MetaReason: "new_page_failed",
				apperr.MetaStage:  apperr.StageDriver,
			})
		}

		m.page = page
	}

	m.ready = true

	return nil
}

func (m *Manager) launchNew(ctx context.Context) (err error) {
	const op = "launchNew"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() { step.End(err) }()

	browser, err := m.playwright.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.config.BrowserConfig.Headless),
		SlowMo:   playwright.Float(float64(m.config.BrowserConfig.SlowMo)),
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "browser_launch_failed",
			apperr.MetaStage:  apperr.StageDriver,
		})
	}

	m.browser = browser

	browserContext, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: 1280, Height: 720},
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "context_create_failed",
			apperr.MetaStage:  apperr.StageDriver,
		})
	}

	m.browserContext = browserContext

	page, err := browserContext.NewPage()
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "page_create_failed",
			apperr.MetaStage:  apperr.StageDriver,
		})
	}

	m.page = page
	m.ready = true

	return nil
}

func (m *Manager) Close(ctx context.Context) (err error) {
	const op = "Close"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() { step.End(err) }()

	if m.config.BrowserConfig.UserDataDir != "" {
		m.ready = false
		return nil
	}

	if m.browserContext != nil {
		if err := m.browserContext.Close(); err != nil {
			logger.Warn("failed to close context", zap.Error(err))
		}
	}

	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			logger.Warn("failed to close browser", zap.Error(err))
		}
	}

	if m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
				apperr.MetaReason: "playwright_stop_failed",
			})
		}
	}

	m.ready = false

	return nil
}

func (m *Manager) ensurePageActive() error {
	if m.browserContext == nil {
		return fmt.Errorf("browser context is nil")
	}

	if m.page != nil && !m.page.IsClosed() {
		return nil
	}

	for _, p := range m.browserContext.Pages() {
		if !p.IsClosed() {
			m.page = p

			return nil
		}
	}

	page, err := m.browserContext.NewPage()
	if err != nil {
		return fmt.Errorf("create new page: %w", err)
	}

	m.page = page

	return nil
}

func (m *Manager) Navigate(ctx context.Context, url string) (err error) {
	const op = "Navigate"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, url))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("url", url))
	defer func() { step.End(err) }()

	if !m.ready {
		return apperr.WrapErrorWithReason(op, apperr.CodeInternal, "browser_not_ready")
	}

	if err := m.ensurePageActive(); err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{apperr.MetaReason: "page_not_active"})
	}

	_, err = m.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(m.config.BrowserConfig.Timeout)),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "goto_failed",
			apperr.MetaURL:    url,
		})
	}

	time.Sleep(300 * time.Millisecond)

	return nil
}

// Probe implements ports.Driver. count(selector) returns 0 on any
// driver-level failure to resolve selector's syntax; callers treat
// that the same as zero matches.
func (m *Manager) Probe(ctx context.Context, selector string) (count int, err error) {
	if !m.ready || m.ensurePageActive() != nil {
		return 0, nil
	}

	n, err := m.page.Locator(selector).Count()
	if err != nil {
		return 0, nil
	}

	return n, nil
}

func (m *Manager) Wait(ctx context.Context, selector, state string, timeoutMs int) (err error) {
	const op = "Wait"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("selector", selector))
	defer func() { step.End(err) }()

	if !m.ready {
		return apperr.WrapErrorWithReason(op, apperr.CodeInternal, "browser_not_ready")
	}

	if err := m.ensurePageActive(); err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{apperr.MetaReason: "page_not_active"})
	}

	waitState := playwright.WaitForSelectorStateAttached

	switch state {
	case "visible":
		waitState = playwright.WaitForSelectorStateVisible
	case "hidden":
		waitState = playwright.WaitForSelectorStateHidden
	case "detached":
		waitState = playwright.WaitForSelectorStateDetached
	}

	_, err = m.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(timeoutMs)),
		State:   waitState,
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeTimeout, err, map[string]any{
			apperr.MetaReason:   "wait_selector_timeout",
			apperr.MetaSelector: selector,
		})
	}

	return nil
}

func (m *Manager) Introspect(ctx context.Context, code string, args map[string]any) (result any, err error) {
	const op = "Introspect"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() { step.End(err) }()

	if !m.ready {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeInternal, "browser_not_ready")
	}

	if err := m.ensurePageActive(); err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{apperr.MetaReason: "page_not_active"})
	}

	result, err = m.page.Evaluate(code, args)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "evaluate_failed",
			apperr.MetaStage:  apperr.StageIntrospection,
		})
	}

	return result, nil
}

func (m *Manager) Interact(ctx context.Context, selector, action string, options map[string]any) (err error) {
	const op = "Interact"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector), zap.String(logg.Action, action))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("action", action), attribute.String("selector", selector))
	defer func() { step.End(err) }()

	if !m.ready {
		return apperr.WrapErrorWithReason(op, apperr.CodeInternal, "browser_not_ready")
	}

	if err := m.ensurePageActive(); err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{apperr.MetaReason: "page_not_active"})
	}

	switch action {
	case "goto":
		url, _ := options["url"].(string)

		return m.Navigate(ctx, url)
	case "click":
		err = m.page.Click(selector, playwright.PageClickOptions{Timeout: playwright.Float(15000)})
	case "fill":
		value, _ := options["value"].(string)
		err = m.page.Fill(selector, value, playwright.PageFillOptions{Timeout: playwright.Float(10000)})
	case "type":
		value, _ := options["text"].(string)
		err = m.page.Type(selector, value, playwright.PageTypeOptions{Timeout: playwright.Float(10000)})
	case "select":
		value, _ := options["value"].(string)
		_, err = m.page.SelectOption(selector, playwright.SelectOptionValues{Values: &[]string{value}})
	case "check":
		err = m.page.Check(selector, playwright.PageCheckOptions{Timeout: playwright.Float(10000)})
	case "uncheck":
		err = m.page.Uncheck(selector, playwright.PageUncheckOptions{Timeout: playwright.Float(10000)})
	case "screenshot":
		path, _ := options["path"].(string)
		_, err = m.page.Screenshot(playwright.PageScreenshotOptions{Path: playwright.String(path)})
	default:
		return apperr.WrapErrorWithReason(op, apperr.CodeInvalidArgument, "unknown_action")
	}

	if err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason:   "interact_failed",
			apperr.MetaSelector: selector,
		})
	}

	return nil
}

func (m *Manager) URL(ctx context.Context) (string, error) {
	if !m.ready || m.ensurePageActive() != nil {
		return "", apperr.WrapErrorWithReason("URL", apperr.CodeInternal, "browser_not_ready")
	}

	return m.page.URL(), nil
}

func (m *Manager) Title(ctx context.Context) (string, error) {
	if !m.ready || m.ensurePageActive() != nil {
		return "", apperr.WrapErrorWithReason("Title", apperr.CodeInternal, "browser_not_ready")
	}

	return m.page.Title()
}

func (m *Manager) IsReady() bool {
	return m.ready
}
