// Package browser renders client-side pages for the scraper. A Page is a
// single exclusively owned tab; callers must Close it on every exit path.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/pauljones0/dealiem-scraper/internal/config"
)

// Page is a live rendered page that can be navigated and interacted with.
type Page interface {
	// Navigate loads url and returns once the document has loaded.
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until selector matches an element or timeout elapses.
	// On timeout it returns an error wrapping models.ErrPageNotReady.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	// FindAll returns the elements currently matching selector, in document order.
	FindAll(ctx context.Context, selector string) ([]Element, error)
	// SelectOption picks the option with the given visible label in the
	// <select> matched by selector and fires its change event.
	SelectOption(ctx context.Context, selector, label string) error
	// HTML returns the current markup of the whole document.
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Element is a handle to one node of the rendered page.
type Element interface {
	Text(ctx context.Context) (string, error)
	// Attribute returns the attribute value and whether it was present.
	Attribute(ctx context.Context, name string) (string, bool, error)
	Click(ctx context.Context) error
}

// Options configure how a browser is launched.
type Options struct {
	Headless bool
	// Timeout bounds navigation. Zero means the backend default.
	Timeout time.Duration
}

// Open launches the backend named in cfg and returns its page.
func Open(ctx context.Context, cfg *config.Config) (Page, error) {
	opts := Options{Headless: cfg.Headless, Timeout: cfg.RenderTimeout}
	switch cfg.BrowserBackend {
	case config.BrowserChromedp:
		return NewChromePage(ctx, opts)
	case config.BrowserPlaywright:
		return NewPlaywrightPage(opts)
	default:
		return nil, fmt.Errorf("unknown browser backend %q", cfg.BrowserBackend)
	}
}
