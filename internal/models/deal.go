package models

import (
	"errors"
	"strings"
)

var (
	// ErrPageNotReady is returned when a readiness element never appears within the render timeout.
	ErrPageNotReady = errors.New("page not ready")
	// ErrSkipped is returned by the extractor when a business page has no schedule tabs.
	ErrSkipped = errors.New("business has no schedule")
	// ErrMalformedURL is returned when no document key can be derived from a business URL.
	ErrMalformedURL = errors.New("malformed business url")
	// ErrDocumentExists is returned by a store when a write-if-absent targets an existing key.
	ErrDocumentExists = errors.New("document already exists")
	// ErrRendererUnavailable means the browser session itself is gone. It aborts the run.
	ErrRendererUnavailable = errors.New("renderer unavailable")
)

const (
	DefaultName    = "Unknown Restaurant"
	DefaultAddress = "Address not found"
)

// BusinessReference identifies one business page on the directory site.
type BusinessReference struct {
	URL string
}

// DealEntry is the free text of one deal, e.g. "11am-2pm: $10 - Lunch Special".
type DealEntry string

// NewDealEntry assembles a deal from its optional parts. Missing parts are
// left out together with their separator. ok is false when both price and
// description are empty, in which case the deal must be discarded.
func NewDealEntry(timeSlot, price, description string) (entry DealEntry, ok bool) {
	timeSlot = strings.TrimSpace(timeSlot)
	price = strings.TrimSpace(price)
	description = strings.TrimSpace(description)

	var info string
	switch {
	case price != "" && description != "":
		info = price + " - " + description
	case price != "":
		info = price
	case description != "":
		info = description
	default:
		return "", false
	}

	if timeSlot != "" {
		info = timeSlot + ": " + info
	}
	return DealEntry(info), true
}

// DaySchedule holds the deals of one day in panel order.
type DaySchedule []DealEntry

// ExtractionResult is what the tab extractor collects from one business page.
// Days is keyed by the tab label as shown on the page ("Mon", "Tue", ...).
type ExtractionResult struct {
	Name    string
	Address string
	Days    map[string]DaySchedule
	Images  []string
}

// NewExtractionResult returns a result pre-filled with the field defaults.
func NewExtractionResult() *ExtractionResult {
	return &ExtractionResult{
		Name:    DefaultName,
		Address: DefaultAddress,
		Days:    make(map[string]DaySchedule),
		Images:  []string{},
	}
}

// DayDeals is the per-day value of a persisted document.
type DayDeals struct {
	Description []DealEntry `firestore:"description" bson:"description" json:"description" validate:"required"`
}

// WeeklyDealDocument is the persisted record of one business. Field names are
// part of the storage contract shared with the consumers of the collection.
type WeeklyDealDocument struct {
	Sunday    DayDeals `firestore:"Sunday" bson:"Sunday" json:"Sunday"`
	Monday    DayDeals `firestore:"Monday" bson:"Monday" json:"Monday"`
	Tuesday   DayDeals `firestore:"Tuesday" bson:"Tuesday" json:"Tuesday"`
	Wednesday DayDeals `firestore:"Wednesday" bson:"Wednesday" json:"Wednesday"`
	Thursday  DayDeals `firestore:"Thursday" bson:"Thursday" json:"Thursday"`
	Friday    DayDeals `firestore:"Friday" bson:"Friday" json:"Friday"`
	Saturday  DayDeals `firestore:"Saturday" bson:"Saturday" json:"Saturday"`

	Name    string   `firestore:"name" bson:"name" json:"name" validate:"required"`
	Address string   `firestore:"address" bson:"address" json:"address" validate:"required"`
	URL     string   `firestore:"url" bson:"url" json:"url" validate:"required,url"`
	Images  []string `firestore:"images" bson:"images" json:"images" validate:"required,dive,required"`
}

// Day returns a pointer to the entry for a full day name, or nil if the name
// is not one of Sunday..Saturday.
func (d *WeeklyDealDocument) Day(name string) *DayDeals {
	switch name {
	case "Sunday":
		return &d.Sunday
	case "Monday":
		return &d.Monday
	case "Tuesday":
		return &d.Tuesday
	case "Wednesday":
		return &d.Wednesday
	case "Thursday":
		return &d.Thursday
	case "Friday":
		return &d.Friday
	case "Saturday":
		return &d.Saturday
	}
	return nil
}
