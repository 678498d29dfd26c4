package scraper

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/dealiem-scraper/internal/models"
	"github.com/pauljones0/dealiem-scraper/internal/util"
)

func parseMarkup(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page markup: %w", err)
	}
	return doc, nil
}

// textOf returns the trimmed text of the first match of selector under s, or
// "" when nothing matches. Inner whitespace is kept as the page renders it.
func textOf(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	match := s.Find(selector).First()
	if match.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(match.Text())
}

// idSelector matches an element by id without requiring the id to be a valid
// CSS identifier (panel ids may start with a digit).
func idSelector(id string) string {
	return `[id="` + strings.ReplaceAll(id, `"`, `\"`) + `"]`
}

func pageDetails(doc *goquery.Document, pageURL string, sel BusinessSelectors, result *models.ExtractionResult) {
	if name := textOf(doc.Selection, sel.Name); name != "" {
		result.Name = name
	}

	if address := textOf(doc.Selection, sel.Address); address != "" {
		result.Address = address
	} else {
		slog.Warn("Address not found", "business", result.Name, "url", pageURL)
	}

	seen := make(map[string]bool)
	doc.Find(sel.Images).Each(func(_ int, img *goquery.Selection) {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		if src == "" || strings.HasPrefix(src, "data:") {
			// Lazy carousels keep the real source aside until the slide is shown.
			src = strings.TrimSpace(img.AttrOr("data-src", ""))
		}
		if src == "" {
			return
		}
		abs, err := util.ResolveURL(pageURL, src)
		if err != nil {
			slog.Warn("Ignoring unparsable image source", "src", src, "error", err)
			return
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		result.Images = append(result.Images, abs)
	})
}

// panelDeals collects the deals of one tab panel in document order.
func panelDeals(panel *goquery.Selection, sel DealSelectors) []models.DealEntry {
	var entries []models.DealEntry
	panel.Find(sel.Block).Each(func(_ int, block *goquery.Selection) {
		timeSlot := textOf(block, sel.TimeSlot)
		block.Find(sel.Item).Each(func(_ int, item *goquery.Selection) {
			entry, ok := models.NewDealEntry(timeSlot, textOf(item, sel.Price), textOf(item, sel.Description))
			if ok {
				entries = append(entries, entry)
			}
		})
	})
	return entries
}
