package models

import (
	"time"
)

// ProductProperties holds the raw text read from a product page. Nothing is
// parsed into numbers; values are written out exactly as displayed.
type ProductProperties struct {
	Price       string  `json:"price"`
	PriceOld    *string `json:"price_old"`
	Rating      string  `json:"rating"`
	ReviewCount string  `json:"review_count"`
}

// Observation is one successfully persisted product reading.
type Observation struct {
	RunID          string            `json:"run_id"`
	ProductID      string            `json:"product_id"`
	Region         string            `json:"region"`
	URL            string            `json:"url"`
	DateString     string            `json:"date_string"`
	ScrapedAt      time.Time         `json:"scraped_at"`
	Attempt        int               `json:"attempt"`
	Properties     ProductProperties `json:"properties"`
	TextPath       string            `json:"text_path"`
	ScreenshotPath string            `json:"screenshot_path"`
}

// OldPriceOrNull renders the old price the way the record file expects it.
func (p *ProductProperties) OldPriceOrNull() string {
	if p.PriceOld == nil {
		return "null"
	}
	return *p.PriceOld
}

// Validate lists the violated record invariants. An empty result means the
// properties may be written.
func (p *ProductProperties) Validate() []string {
	var errors []string

	if p.Price == "" {
		errors = append(errors, "price is required")
	}

	if p.Rating == "" {
		errors = append(errors, "rating is required")
	}

	if p.ReviewCount == "" {
		errors = append(errors, "review count is required")
	}

	if p.PriceOld != nil && *p.PriceOld == "" {
		errors = append(errors, "old price must be absent rather than empty")
	}

	return errors
}
