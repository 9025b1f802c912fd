package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/maltedev/vprok-price-parser/internal/models"
)

const DefaultResultsDir = "parse_results"

var ErrInvalidProperties = errors.New("invalid product properties")

// ResultWriter lays out parse results as
// <root>/<region>/<productID>_product.txt plus one screenshot per run.
type ResultWriter struct {
	root   string
	logger *slog.Logger
}

func NewResultWriter(root string, logger *slog.Logger) *ResultWriter {
	return &ResultWriter{
		root:   root,
		logger: logger.With("component", "result_writer"),
	}
}

func (w *ResultWriter) Root() string {
	return w.root
}

// RegionDir returns the directory for region. Dots are dropped so that names
// like "г. Москва" map to a plain directory name.
func (w *ResultWriter) RegionDir(region string) string {
	return filepath.Join(w.root, strings.ReplaceAll(region, ".", ""))
}

func (w *ResultWriter) TextPath(regionDir, productID string) string {
	return filepath.Join(regionDir, productID+"_product.txt")
}

func (w *ResultWriter) ScreenshotPath(regionDir, dateString, productID string) string {
	return filepath.Join(regionDir, dateString+"_#"+productID+"_screenshot.jpg")
}

func (w *ResultWriter) EnsureDir(regionDir string) error {
	if err := os.MkdirAll(regionDir, 0755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	return nil
}

// Persist appends one record block to the product's text file and returns
// the file path. Earlier content is never touched, and properties that fail
// validation are rejected before the file is opened.
func (w *ResultWriter) Persist(dateString string, props *models.ProductProperties, productID, regionDir string) (string, error) {
	if problems := props.Validate(); len(problems) > 0 {
		return "", fmt.Errorf("%w: %s", ErrInvalidProperties, strings.Join(problems, "; "))
	}

	if err := w.EnsureDir(regionDir); err != nil {
		return "", err
	}

	path := w.TextPath(regionDir, productID)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open result file: %w", err)
	}

	if _, err := f.WriteString(FormatRecord(dateString, props)); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to append result: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close result file: %w", err)
	}

	w.logger.Debug("result appended", "path", path, "product_id", productID)
	return path, nil
}

// FormatRecord renders the block appended for a single run, blank line
// included.
func FormatRecord(dateString string, props *models.ProductProperties) string {
	var b strings.Builder
	b.WriteString(dateString + "\n")
	b.WriteString("price=" + props.Price + "\n")
	b.WriteString("priceOld=" + props.OldPriceOrNull() + "\n")
	b.WriteString("rating=" + props.Rating + "\n")
	b.WriteString("reviewCount=" + props.ReviewCount + "\n")
	b.WriteString("\n")
	return b.String()
}

// DateString formats t as Y-M-D_h-m-s without zero padding, e.g.
// 2024-3-7_9-5-2.
func DateString(t time.Time) string {
	return fmt.Sprintf("%d-%d-%d_%d-%d-%d",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}
