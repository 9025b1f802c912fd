package browser

import (
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"
)

func (s *Session) SetCookie(name, value, domain string) error {
	err := s.context.AddCookies([]playwright.OptionalCookie{
		{
			Name:   name,
			Value:  value,
			Domain: playwright.String(domain),
			Path:   playwright.String("/"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to add cookie %s: %w", name, err)
	}
	return nil
}

func (s *Session) Navigate(url string) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	return nil
}

func (s *Session) WaitForSelector(selector string) error {
	err := s.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State: playwright.WaitForSelectorStateAttached,
	})
	if err != nil {
		return fmt.Errorf("selector %s did not appear: %w", selector, err)
	}
	return nil
}

func (s *Session) Click(selector string) error {
	return s.page.Locator(selector).First().Click()
}

func (s *Session) Hover(selector string) error {
	return s.page.Locator(selector).First().Hover()
}

func (s *Session) TextContent(selector string) (string, error) {
	loc := s.page.Locator(selector)
	count, err := loc.Count()
	if err != nil {
		return "", err
	}
	if count == 0 {
		return "", nil
	}
	return loc.First().TextContent()
}

func (s *Session) CountExactText(tag, text string) (int, error) {
	return s.page.Locator(exactTextXPath(tag, text)).Count()
}

// ClickExactTextAndWait starts waiting for the navigation before the click
// so a fast reload is not missed, then waits for the remaining load states.
func (s *Session) ClickExactTextAndWait(tag, text string) error {
	target := s.page.Locator(exactTextXPath(tag, text)).First()

	if err := target.Hover(); err != nil {
		return fmt.Errorf("failed to hover %q: %w", text, err)
	}

	_, err := s.page.ExpectNavigation(func() error {
		return target.Click()
	}, playwright.PageExpectNavigationOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		return fmt.Errorf("navigation after clicking %q failed: %w", text, err)
	}

	for _, state := range []*playwright.LoadState{playwright.LoadStateDomcontentloaded, playwright.LoadStateNetworkidle} {
		if err := s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{State: state}); err != nil {
			return fmt.Errorf("failed waiting for %s: %w", *state, err)
		}
	}

	s.logger.Debug("navigation settled", "text", text, "url", s.page.URL())
	return nil
}

func (s *Session) Content() (string, error) {
	return s.page.Content()
}

func (s *Session) Screenshot(path string) error {
	_, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
		Type:     playwright.ScreenshotTypeJpeg,
	})
	if err != nil {
		return fmt.Errorf("failed to save screenshot: %w", err)
	}
	return nil
}

// exactTextXPath selects tag elements with a text node equal to text.
func exactTextXPath(tag, text string) string {
	return fmt.Sprintf("xpath=//%s[text()=%s]", tag, xpathLiteral(text))
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
