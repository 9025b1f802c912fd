package scraper

import (
	"errors"
	"fmt"

	"github.com/maltedev/vprok-price-parser/internal/models"
	"github.com/maltedev/vprok-price-parser/internal/parser"
)

type ProductExtractor struct {
	parser parser.Parser
}

func NewProductExtractor(p parser.Parser) *ProductExtractor {
	return &ProductExtractor{parser: p}
}

// ExtractProperties reads price, old price, rating and review count from a
// page that already shows the requested region.
func (pe *ProductExtractor) ExtractProperties(page Page) (*models.ProductProperties, error) {
	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to get page content: %w", err)
	}

	props, err := pe.parser.ParseProductProperties(html)
	if err != nil {
		if errors.Is(err, parser.ErrIncompleteProperties) {
			return nil, newError(KindExtractionFailed, "extract properties", err)
		}
		return nil, fmt.Errorf("failed to parse product page: %w", err)
	}

	return props, nil
}

// pageError looks for the site's error blocks on whatever the page currently
// shows. A page that cannot be read reports no error block.
func (pe *ProductExtractor) pageError(page Page) parser.PageError {
	html, err := page.Content()
	if err != nil {
		return parser.PageErrorNone
	}
	found, err := pe.parser.DetectPageError(html)
	if err != nil {
		return parser.PageErrorNone
	}
	return found
}
