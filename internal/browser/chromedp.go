package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/pauljones0/dealiem-scraper/internal/models"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// selectByLabelScript sets a <select> by option text. It goes through the
// native value setter so frameworks that track the value (React) see the
// change event.
const selectByLabelScript = `(function(sel, label) {
	const el = document.querySelector(sel);
	if (!el) { return "missing"; }
	const opt = Array.from(el.options).find(o => o.text.trim() === label);
	if (!opt) { return "no-option"; }
	const setter = Object.getOwnPropertyDescriptor(HTMLSelectElement.prototype, "value").set;
	setter.call(el, opt.value);
	el.dispatchEvent(new Event("input", { bubbles: true }));
	el.dispatchEvent(new Event("change", { bubbles: true }));
	return "ok";
})(%q, %q)`

// ChromePage drives a single Chrome tab through the DevTools protocol.
type ChromePage struct {
	ctx           context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	navTimeout    time.Duration
}

func NewChromePage(parent context.Context, opts Options) (*ChromePage, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)

	// The session outlives any single request context, so it is detached from
	// parent cancellation and released only by Close.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(parent), allocOpts...)
	ctx, cancelBrowser := chromedp.NewContext(allocCtx)

	// First Run starts the browser process.
	if err := chromedp.Run(ctx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start chrome: %w", errors.Join(models.ErrRendererUnavailable, err))
	}

	return &ChromePage{
		ctx:           ctx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
		navTimeout:    opts.Timeout,
	}, nil
}

// run executes actions in the tab context while honouring ctx cancellation.
func (p *ChromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if p.ctx.Err() != nil {
		return models.ErrRendererUnavailable
	}
	runCtx := p.ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && p.ctx.Err() != nil {
		return fmt.Errorf("%w: %v", models.ErrRendererUnavailable, err)
	}
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, p.navTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *ChromePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	err := p.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %q did not appear within %s", models.ErrPageNotReady, selector, timeout)
	}
	return err
}

func (p *ChromePage) FindAll(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, p.navTimeout, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &chromeElement{page: p, node: n})
	}
	return elements, nil
}

func (p *ChromePage) SelectOption(ctx context.Context, selector, label string) error {
	var result string
	if err := p.run(ctx, p.navTimeout, chromedp.Evaluate(fmt.Sprintf(selectByLabelScript, selector, label), &result)); err != nil {
		return fmt.Errorf("failed to select %q in %q: %w", label, selector, err)
	}
	if result != "ok" {
		return fmt.Errorf("failed to select %q in %q: %s", label, selector, result)
	}
	return nil
}

func (p *ChromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, p.navTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page markup: %w", err)
	}
	return html, nil
}

func (p *ChromePage) Close() error {
	// Cancelling the browser context closes the tab and the process.
	p.cancelBrowser()
	p.cancelAlloc()
	slog.Info("Chrome session closed")
	return nil
}

type chromeElement struct {
	page *ChromePage
	node *cdp.Node
}

func (e *chromeElement) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.page.run(ctx, e.page.navTimeout, chromedp.Text(e.ids(), &text, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return text, nil
}

func (e *chromeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	if err := e.page.run(ctx, e.page.navTimeout, chromedp.AttributeValue(e.ids(), name, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", false, err
	}
	return value, ok, nil
}

func (e *chromeElement) Click(ctx context.Context) error {
	return e.page.run(ctx, e.page.navTimeout, chromedp.Click(e.ids(), chromedp.ByNodeID))
}
