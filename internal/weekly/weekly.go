// Package weekly maps a per-tab extraction onto the fixed seven-day document.
package weekly

import (
	"slices"
	"time"

	"github.com/pauljones0/dealiem-scraper/internal/models"
)

// dayAbbreviation returns the tab label used for d on the site ("Sun" for Sunday).
func dayAbbreviation(d time.Weekday) string {
	return d.String()[:3]
}

// Build returns the canonical document for one business. Every day from
// Sunday to Saturday is present; days missing from the extraction get an
// empty, non-nil sequence.
func Build(res *models.ExtractionResult, url string) models.WeeklyDealDocument {
	doc := models.WeeklyDealDocument{
		Name:    res.Name,
		Address: res.Address,
		URL:     url,
		Images:  append([]string{}, res.Images...),
	}

	for d := time.Sunday; d <= time.Saturday; d++ {
		deals := make([]models.DealEntry, 0, len(res.Days[dayAbbreviation(d)]))
		deals = append(deals, res.Days[dayAbbreviation(d)]...)
		doc.Day(d.String()).Description = deals
	}
	return doc
}

// UnmappedDays lists the tab labels of res that are not one of the seven day
// abbreviations. Their deals do not make it into the document.
func UnmappedDays(res *models.ExtractionResult) []string {
	var unmapped []string
	for label := range res.Days {
		if !isDayAbbreviation(label) {
			unmapped = append(unmapped, label)
		}
	}
	slices.Sort(unmapped)
	return unmapped
}

func isDayAbbreviation(label string) bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if label == dayAbbreviation(d) {
			return true
		}
	}
	return false
}
