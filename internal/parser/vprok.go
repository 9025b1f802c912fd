package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/vprok-price-parser/internal/models"
)

var ErrIncompleteProperties = errors.New("product properties are incomplete")

const (
	priceSelector         = `[class^="BuyQuant_price"] span[class*="Price_size"]`
	priceDiscountSelector = `[class^="BuyQuant_price"] span[class*="Price_role_discount"]`
	priceOldSelector      = `[class^="BuyQuant_price"] span[class*="Price_role_old"]`
	ratingSelector        = `[class^="Summary_reviewsContainer"] [itemprop="ratingValue"]`
	reviewCountSelector   = `[class*="Summary_reviewsCountContainer"] [class^="Summary_title"]`

	unknownErrorSelector  = `div[class^="UnknownError"]`
	notFoundErrorSelector = `div[class^="NotFoundError"]`
)

// PageError names the error block a product page rendered instead of a product.
type PageError string

const (
	PageErrorNone     PageError = ""
	PageErrorUnknown  PageError = "unknown_error"
	PageErrorNotFound PageError = "not_found"
)

type VprokParser struct {
	nonDigits *regexp.Regexp
}

func NewVprokParser() *VprokParser {
	return &VprokParser{
		nonDigits: regexp.MustCompile(`\D`),
	}
}

// ParseProductProperties reads the buy block and review summary of a rendered
// product page.
func (p *VprokParser) ParseProductProperties(html string) (*models.ProductProperties, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	price := FirstToken(textOf(doc, priceSelector))
	priceDiscount := FirstToken(textOf(doc, priceDiscountSelector))
	priceOld := FirstToken(textOf(doc, priceOldSelector))
	rating := strings.TrimSpace(textOf(doc, ratingSelector))
	reviewCount := p.DigitsOnly(textOf(doc, reviewCountSelector))

	var missing []string
	if price == "" {
		missing = append(missing, "price")
	}
	if rating == "" {
		missing = append(missing, "rating")
	}
	if reviewCount == "" {
		missing = append(missing, "reviewCount")
	}
	if priceDiscount != "" && priceOld == "" {
		missing = append(missing, "priceOld")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrIncompleteProperties, strings.Join(missing, ", "))
	}

	props := &models.ProductProperties{
		Price:       price,
		Rating:      rating,
		ReviewCount: reviewCount,
	}
	if priceOld != "" {
		props.PriceOld = &priceOld
	}

	return props, nil
}

// DetectPageError reports whether the page shows the site's "unknown error"
// or "not found" block.
func (p *VprokParser) DetectPageError(html string) (PageError, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return PageErrorNone, fmt.Errorf("failed to parse HTML: %w", err)
	}

	if doc.Find(unknownErrorSelector).Length() > 0 {
		return PageErrorUnknown, nil
	}
	if doc.Find(notFoundErrorSelector).Length() > 0 {
		return PageErrorNotFound, nil
	}

	return PageErrorNone, nil
}

// FirstToken keeps the label up to the first ASCII space, dropping the
// currency or unit suffix. Non-breaking spaces are thousands separators on
// the site and stay inside the token.
func FirstToken(text string) string {
	token, _, _ := strings.Cut(strings.TrimLeft(text, " \t\r\n"), " ")
	return token
}

func (p *VprokParser) DigitsOnly(text string) string {
	return p.nonDigits.ReplaceAllString(text, "")
}

func textOf(doc *goquery.Document, selector string) string {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return ""
	}
	return sel.Text()
}
