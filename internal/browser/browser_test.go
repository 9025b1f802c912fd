package browser

import (
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if !opts.Headless {
		t.Error("Expected headless to be true by default")
	}

	if opts.Timeout != 30*time.Second {
		t.Errorf("Expected timeout to be 30s, got %v", opts.Timeout)
	}

	if opts.ViewportWidth != 1080 || opts.ViewportHeight != 1024 {
		t.Errorf("Expected viewport to be 1080x1024, got %dx%d", opts.ViewportWidth, opts.ViewportHeight)
	}

	if opts.Locale != "ru-RU" {
		t.Errorf("Expected locale to be ru-RU, got %s", opts.Locale)
	}
}

func TestExactTextXPath(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"Plain", "Москва и область", "xpath=//div[text()='Москва и область']"},
		{"Single quote", "Кот д'Ивуар", `xpath=//div[text()="Кот д'Ивуар"]`},
		{"Both quotes", `a'b"c`, `xpath=//div[text()=concat('a', "'", 'b"c')]`},
		{"Leading quote", `'x"`, `xpath=//div[text()=concat("'", 'x"')]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exactTextXPath("div", tt.text); got != tt.expected {
				t.Errorf("exactTextXPath(%q) = %s, want %s", tt.text, got, tt.expected)
			}
		})
	}
}
