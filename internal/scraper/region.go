package scraper

import (
	"fmt"
	"log/slog"
)

const (
	pageRootSelector      = "#__next"
	regionButtonSelector  = `div[class^="FirstHeader_region"]`
	currentRegionSelector = `div[class^="FirstHeader_region"] > span`
	regionItemSelector    = `[class^="RegionModal_item"]`
	regionItemTag         = "div"
)

type RegionSelector struct {
	logger *slog.Logger
}

func NewRegionSelector(logger *slog.Logger) *RegionSelector {
	return &RegionSelector{
		logger: logger.With("component", "region_selector"),
	}
}

// SelectRegion makes target the active delivery region of the page. It does
// nothing when target is already active.
func (rs *RegionSelector) SelectRegion(page Page, target string) error {
	if err := page.WaitForSelector(pageRootSelector); err != nil {
		return fmt.Errorf("failed to wait for page root: %w", err)
	}
	if err := page.Click(pageRootSelector); err != nil {
		return fmt.Errorf("failed to focus page: %w", err)
	}

	if err := page.WaitForSelector(regionButtonSelector); err != nil {
		return fmt.Errorf("failed to wait for region button: %w", err)
	}

	current, err := page.TextContent(currentRegionSelector)
	if err != nil {
		return fmt.Errorf("failed to read current region: %w", err)
	}
	if current == target {
		rs.logger.Debug("region already active", "region", target)
		return nil
	}

	rs.logger.Info("changing region", "from", current, "to", target)

	if err := page.Hover(regionButtonSelector); err != nil {
		return fmt.Errorf("failed to hover region button: %w", err)
	}
	if err := page.Click(regionButtonSelector); err != nil {
		return fmt.Errorf("failed to open region picker: %w", err)
	}
	if err := page.WaitForSelector(regionItemSelector); err != nil {
		return fmt.Errorf("failed to wait for region list: %w", err)
	}

	count, err := page.CountExactText(regionItemTag, target)
	if err != nil {
		return fmt.Errorf("failed to look up region %q: %w", target, err)
	}
	if count == 0 {
		return newError(KindWrongRegion, "select region", fmt.Errorf("no region named %q", target))
	}

	if err := page.ClickExactTextAndWait(regionItemTag, target); err != nil {
		return fmt.Errorf("failed to switch region to %q: %w", target, err)
	}

	return nil
}
