package parser

import (
	"github.com/maltedev/vprok-price-parser/internal/models"
)

type Parser interface {
	ParseProductProperties(html string) (*models.ProductProperties, error)
	DetectPageError(html string) (PageError, error)
}

var _ Parser = (*VprokParser)(nil)
