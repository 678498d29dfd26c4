package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/dealiem-scraper/internal/browser"
	"github.com/pauljones0/dealiem-scraper/internal/models"
)

const panelSlot = "<!--panel-->"

// fakeSite is one page served by fakePage. base may contain panelSlot, which
// is replaced by the panel of the last clicked tab.
type fakeSite struct {
	base        string
	afterSelect string // replaces base once the expected filter label is selected
	selectLabel string
	panels      map[string]string
}

// fakePage renders canned markup and emulates tab clicks by swapping panels.
type fakePage struct {
	sites       map[string]*fakeSite
	current     *fakeSite
	activePanel string
	navigated   []string
	selected    []string
	clicked     []string
	navErr      error
	closed      bool
}

var _ browser.Page = (*fakePage)(nil)

func newFakePage() *fakePage {
	return &fakePage{sites: make(map[string]*fakeSite)}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	if p.navErr != nil {
		return p.navErr
	}
	p.navigated = append(p.navigated, url)
	site, ok := p.sites[url]
	if !ok {
		site = &fakeSite{base: "<html><body></body></html>"}
	}
	p.current = site
	p.activePanel = ""
	return nil
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	if p.current == nil {
		return "", errors.New("no page loaded")
	}
	panel := ""
	if p.activePanel != "" {
		if content, ok := p.current.panels[p.activePanel]; ok {
			panel = fmt.Sprintf(`<div id="%s" role="tabpanel">%s</div>`, p.activePanel, content)
		}
	}
	return strings.Replace(p.current.base, panelSlot, panel, 1), nil
}

func (p *fakePage) query(ctx context.Context, selector string) (*goquery.Selection, error) {
	html, err := p.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return doc.Find(selector), nil
}

func (p *fakePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	sel, err := p.query(ctx, selector)
	if err != nil {
		return err
	}
	if sel.Length() == 0 {
		return fmt.Errorf("%w: %q", models.ErrPageNotReady, selector)
	}
	return nil
}

func (p *fakePage) FindAll(ctx context.Context, selector string) ([]browser.Element, error) {
	sel, err := p.query(ctx, selector)
	if err != nil {
		return nil, err
	}
	var elements []browser.Element
	sel.Each(func(_ int, s *goquery.Selection) {
		attrs := make(map[string]string)
		for _, a := range s.Nodes[0].Attr {
			attrs[a.Key] = a.Val
		}
		elements = append(elements, &fakeElement{page: p, text: s.Text(), attrs: attrs})
	})
	return elements, nil
}

func (p *fakePage) SelectOption(ctx context.Context, selector, label string) error {
	sel, err := p.query(ctx, selector)
	if err != nil {
		return err
	}
	if sel.Length() == 0 {
		return fmt.Errorf("no %q to select from", selector)
	}
	p.selected = append(p.selected, label)
	if p.current.afterSelect != "" && label == p.current.selectLabel {
		p.current.base = p.current.afterSelect
	}
	return nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type fakeElement struct {
	page  *fakePage
	text  string
	attrs map[string]string
}

func (e *fakeElement) Text(ctx context.Context) (string, error) {
	return e.text, nil
}

func (e *fakeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, ok := e.attrs[name]
	return v, ok, nil
}

func (e *fakeElement) Click(ctx context.Context) error {
	if _, broken := e.attrs["data-broken"]; broken {
		return errors.New("element is not clickable")
	}
	e.page.clicked = append(e.page.clicked, strings.TrimSpace(e.text))
	e.page.activePanel = e.attrs["aria-controls"]
	return nil
}
