package scraper

import (
	"encoding/json"
	"fmt"
	"os"
)

type SelectorConfig struct {
	Directory DirectorySelectors `json:"directory"`
	Business  BusinessSelectors  `json:"business"`
}

type DirectorySelectors struct {
	DayFilter     string `json:"day_filter"`     // readiness signal and filter control
	AnyDayLabel   string `json:"any_day_label"`  // option that shows the unfiltered listing
	BusinessLinks string `json:"business_links"` // anchors inside the business list
	BusinessPath  string `json:"business_path"`  // href prefix of business pages, also the key marker
}

type BusinessSelectors struct {
	TabsContainer string        `json:"tabs_container"`
	Tab           string        `json:"tab"`
	PanelRefAttr  string        `json:"panel_ref_attr"` // attribute on a tab naming its panel id
	Name          string        `json:"name"`
	Address       string        `json:"address"`
	Images        string        `json:"images"`
	Deals         DealSelectors `json:"deals"`
}

// DealSelectors are evaluated relative to a tab panel.
type DealSelectors struct {
	Block       string `json:"block"`
	TimeSlot    string `json:"time_slot"`
	Item        string `json:"item"`
	Price       string `json:"price"`
	Description string `json:"description"`
}

// LoadSelectors loads the selector configuration from the specified JSON file.
func LoadSelectors(path string) (SelectorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to read selector config file: %w", err)
	}

	return LoadSelectorsFromBytes(data)
}

// LoadSelectorsFromBytes parses selector configuration from raw JSON bytes.
// Fields left out of the JSON keep their default value.
func LoadSelectorsFromBytes(data []byte) (SelectorConfig, error) {
	config := DefaultSelectors()
	if err := json.Unmarshal(data, &config); err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to parse selector config JSON: %w", err)
	}

	return config, nil
}

// DefaultSelectors returns the fallback configuration if no JSON file is loaded.
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		Directory: DirectorySelectors{
			DayFilter:     "select.filter-item.day-filter",
			AnyDayLabel:   "Any Day",
			BusinessLinks: "div.business-list a[href^='/business/']",
			BusinessPath:  "/business/",
		},
		Business: BusinessSelectors{
			TabsContainer: "div.RRT__tabs",
			Tab:           "div.RRT__tabs div.RRT__tab",
			PanelRefAttr:  "aria-controls",
			Name:          "h1.biz-detail-name",
			Address:       "p.biz-detail-address a",
			Images:        "div.biz-detail-carousel img",
			Deals: DealSelectors{
				Block:       "div.deals-details",
				TimeSlot:    "div.time-slots",
				Item:        "div.deal-description",
				Price:       "div.price-after",
				Description: "div.description",
			},
		},
	}
}
