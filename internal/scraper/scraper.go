package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/dealiem-scraper/internal/browser"
	"github.com/pauljones0/dealiem-scraper/internal/config"
	"github.com/pauljones0/dealiem-scraper/internal/models"
	"github.com/pauljones0/dealiem-scraper/internal/util"
)

type Scraper interface {
	DiscoverBusinessURLs(ctx context.Context) ([]string, error)
	Extract(ctx context.Context, businessURL string) (*models.ExtractionResult, error)
}

// Client scrapes the directory site through one rendered page. It is not
// safe for concurrent use: every call drives the same browser tab.
type Client struct {
	page          browser.Page
	selectors     SelectorConfig
	directoryURL  string
	renderTimeout time.Duration
	filterSettle  time.Duration
	tabSettle     time.Duration
}

func New(page browser.Page, cfg *config.Config, selectors SelectorConfig) *Client {
	return &Client{
		page:          page,
		selectors:     selectors,
		directoryURL:  cfg.DirectoryURL,
		renderTimeout: cfg.RenderTimeout,
		filterSettle:  cfg.FilterSettle,
		tabSettle:     cfg.TabSettle,
	}
}

// Close releases the underlying page and its browser session.
func (c *Client) Close() error {
	return c.page.Close()
}

// DiscoverBusinessURLs renders the directory with the "any day" filter and
// returns the absolute URL of every business it lists, deduplicated and sorted.
func (c *Client) DiscoverBusinessURLs(ctx context.Context) ([]string, error) {
	dir := c.selectors.Directory
	slog.Info("Loading business directory", "url", c.directoryURL)

	if err := c.page.Navigate(ctx, c.directoryURL); err != nil {
		return nil, err
	}
	if err := c.page.WaitFor(ctx, dir.DayFilter, c.renderTimeout); err != nil {
		return nil, fmt.Errorf("directory %s: %w", c.directoryURL, err)
	}
	if err := c.page.SelectOption(ctx, dir.DayFilter, dir.AnyDayLabel); err != nil {
		return nil, fmt.Errorf("directory %s: %w", c.directoryURL, err)
	}
	// The listing re-renders asynchronously with no completion signal.
	if err := util.Sleep(ctx, c.filterSettle); err != nil {
		return nil, err
	}

	doc, err := c.snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("directory %s: %w", c.directoryURL, err)
	}

	urls := businessLinks(doc, c.directoryURL, dir)
	slog.Info("Discovered business pages", "count", len(urls))
	return urls, nil
}

func businessLinks(doc *goquery.Document, baseURL string, dir DirectorySelectors) []string {
	seen := make(map[string]struct{})
	doc.Find(dir.BusinessLinks).Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || strings.TrimSpace(href) == "" {
			return
		}
		abs, err := util.ResolveURL(baseURL, href)
		if err != nil {
			slog.Warn("Ignoring unparsable business link", "href", href, "error", err)
			return
		}
		parsed, err := url.Parse(abs)
		if err != nil || !strings.HasPrefix(parsed.Path, dir.BusinessPath) {
			return
		}
		if !util.SameSite(baseURL, abs) {
			slog.Warn("Ignoring off-site business link", "href", abs)
			return
		}
		seen[abs] = struct{}{}
	})
	return slices.Sorted(maps.Keys(seen))
}

// Extract walks the day tabs of one business page. It returns an error
// wrapping models.ErrSkipped when the page has no schedule tabs. Field and
// per-tab failures never fail the extraction; they fall back to defaults.
func (c *Client) Extract(ctx context.Context, businessURL string) (*models.ExtractionResult, error) {
	biz := c.selectors.Business

	if err := c.page.Navigate(ctx, businessURL); err != nil {
		return nil, err
	}
	if err := c.page.WaitFor(ctx, biz.TabsContainer, c.renderTimeout); err != nil {
		if errors.Is(err, models.ErrPageNotReady) {
			return nil, fmt.Errorf("%w: tabs container not found on %s", models.ErrSkipped, businessURL)
		}
		return nil, err
	}

	result := models.NewExtractionResult()
	doc, err := c.snapshot(ctx)
	if err != nil {
		if errors.Is(err, models.ErrRendererUnavailable) {
			return nil, err
		}
		slog.Warn("Could not read business details, using defaults", "url", businessURL, "error", err)
	} else {
		pageDetails(doc, businessURL, biz, result)
	}

	tabs, err := c.page.FindAll(ctx, biz.Tab)
	if err != nil {
		return nil, fmt.Errorf("failed to find day tabs on %s: %w", businessURL, err)
	}

	for _, tab := range tabs {
		if err := c.extractTab(ctx, tab, result); err != nil {
			if errors.Is(err, models.ErrRendererUnavailable) || ctx.Err() != nil {
				return nil, err
			}
			slog.Warn("Error processing tab", "business", result.Name, "url", businessURL, "error", err)
		}
	}

	return result, nil
}

func (c *Client) extractTab(ctx context.Context, tab browser.Element, result *models.ExtractionResult) error {
	biz := c.selectors.Business

	label, err := tab.Text(ctx)
	if err != nil {
		return fmt.Errorf("read tab label: %w", err)
	}
	day := strings.TrimSpace(label)

	class, _, err := tab.Attribute(ctx, "class")
	if err != nil {
		return fmt.Errorf("tab %q: read class: %w", day, err)
	}
	ariaDisabled, _, err := tab.Attribute(ctx, "aria-disabled")
	if err != nil {
		return fmt.Errorf("tab %q: read aria-disabled: %w", day, err)
	}
	if tabDisabled(class, ariaDisabled) {
		slog.Info("Skipping disabled tab", "day", day, "business", result.Name)
		return nil
	}

	if err := tab.Click(ctx); err != nil {
		return fmt.Errorf("tab %q: click: %w", day, err)
	}
	if err := util.Sleep(ctx, c.tabSettle); err != nil {
		return err
	}

	panelID, ok, err := tab.Attribute(ctx, biz.PanelRefAttr)
	if err != nil {
		return fmt.Errorf("tab %q: read %s: %w", day, biz.PanelRefAttr, err)
	}
	if !ok || strings.TrimSpace(panelID) == "" {
		return fmt.Errorf("tab %q: no %s attribute", day, biz.PanelRefAttr)
	}
	panelSel := idSelector(panelID)
	if err := c.page.WaitFor(ctx, panelSel, c.renderTimeout); err != nil {
		return fmt.Errorf("tab %q: %w", day, err)
	}

	doc, err := c.snapshot(ctx)
	if err != nil {
		return fmt.Errorf("tab %q: %w", day, err)
	}
	entries := panelDeals(doc.Find(panelSel).First(), biz.Deals)
	result.Days[day] = append(result.Days[day], entries...)
	slog.Info("Extracted deals", "day", day, "count", len(entries), "business", result.Name)
	return nil
}

func (c *Client) snapshot(ctx context.Context) (*goquery.Document, error) {
	html, err := c.page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return parseMarkup(html)
}

func tabDisabled(class, ariaDisabled string) bool {
	return strings.Contains(class, "disabled") || strings.EqualFold(strings.TrimSpace(ariaDisabled), "true")
}
