package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/pauljones0/dealiem-scraper/internal/models"
)

// PlaywrightPage drives a Chromium page through playwright. The driver is
// installed by `playwright install chromium` ahead of time.
type PlaywrightPage struct {
	pw         *playwright.Playwright
	browser    playwright.Browser
	page       playwright.Page
	navTimeout time.Duration
}

func NewPlaywrightPage(opts Options) (*PlaywrightPage, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", errors.Join(models.ErrRendererUnavailable, err))
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch chromium: %w", errors.Join(models.ErrRendererUnavailable, err))
	}

	page, err := browser.NewPage(playwright.BrowserNewPageOptions{
		UserAgent: playwright.String(userAgent),
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to open page: %w", errors.Join(models.ErrRendererUnavailable, err))
	}

	return &PlaywrightPage{pw: pw, browser: browser, page: page, navTimeout: opts.Timeout}, nil
}

func millis(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

// check fails fast when ctx is done or the browser connection dropped.
// Playwright calls themselves are bounded by their own timeouts.
func (p *PlaywrightPage) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.browser.IsConnected() {
		return models.ErrRendererUnavailable
	}
	return nil
}

func (p *PlaywrightPage) Navigate(ctx context.Context, url string) error {
	if err := p.check(ctx); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	opts := playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateLoad}
	if p.navTimeout > 0 {
		opts.Timeout = millis(p.navTimeout)
	}
	if _, err := p.page.Goto(url, opts); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *PlaywrightPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	err := p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: millis(timeout),
	})
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %q did not appear within %s", models.ErrPageNotReady, selector, timeout)
	}
	return err
}

func (p *PlaywrightPage) FindAll(ctx context.Context, selector string) ([]Element, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	locators, err := p.page.Locator(selector).All()
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	elements := make([]Element, 0, len(locators))
	for _, l := range locators {
		elements = append(elements, &playwrightElement{page: p, locator: l})
	}
	return elements, nil
}

func (p *PlaywrightPage) SelectOption(ctx context.Context, selector, label string) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	_, err := p.page.Locator(selector).First().SelectOption(playwright.SelectOptionValues{
		Labels: &[]string{label},
	})
	if err != nil {
		return fmt.Errorf("failed to select %q in %q: %w", label, selector, err)
	}
	return nil
}

func (p *PlaywrightPage) HTML(ctx context.Context) (string, error) {
	if err := p.check(ctx); err != nil {
		return "", err
	}
	html, err := p.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read page markup: %w", err)
	}
	return html, nil
}

func (p *PlaywrightPage) Close() error {
	var errs []error
	if err := p.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if err := p.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop playwright: %w", err))
	}
	slog.Info("Playwright session closed")
	return errors.Join(errs...)
}

type playwrightElement struct {
	page    *PlaywrightPage
	locator playwright.Locator
}

func (e *playwrightElement) Text(ctx context.Context) (string, error) {
	if err := e.page.check(ctx); err != nil {
		return "", err
	}
	return e.locator.InnerText()
}

func (e *playwrightElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := e.page.check(ctx); err != nil {
		return "", false, err
	}
	// Attribute presence is not distinguishable from an empty value here.
	value, err := e.locator.GetAttribute(name)
	if err != nil {
		return "", false, err
	}
	return value, value != "", nil
}

func (e *playwrightElement) Click(ctx context.Context) error {
	if err := e.page.check(ctx); err != nil {
		return err
	}
	return e.locator.Click()
}
