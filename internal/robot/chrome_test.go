package robot

import (
	"testing"
	"time"

	"labbot/internal/config"
)

func TestNewChromeBrowser(t *testing.T) {
	t.Run("uses webdriver settings and defaults", func(t *testing.T) {
		b := NewChromeBrowser(config.BrowserConfig{ChromeDriver: "/opt/chrome/chrome", Headless: true})

		if b.execPath != "/opt/chrome/chrome" {
			t.Errorf("expected exec path to be set, got %q", b.execPath)
		}
		if !b.headless {
			t.Error("expected headless")
		}
		if b.selectors != DefaultSelectors {
			t.Errorf("expected default selectors, got %+v", b.selectors)
		}
		if b.timeout != DefaultLoginTimeout {
			t.Errorf("expected default timeout, got %v", b.timeout)
		}
	})

	t.Run("applies options", func(t *testing.T) {
		custom := Selectors{Email: "#email", Password: "#pw", Submit: "#go"}
		b := NewChromeBrowser(config.BrowserConfig{}, WithSelectors(custom), WithLoginTimeout(time.Second))

		if b.selectors != custom {
			t.Errorf("expected custom selectors, got %+v", b.selectors)
		}
		if b.timeout != time.Second {
			t.Errorf("expected 1s timeout, got %v", b.timeout)
		}
	})

	t.Run("allocator options grow with exec path", func(t *testing.T) {
		without := NewChromeBrowser(config.BrowserConfig{}).allocatorOptions()
		with := NewChromeBrowser(config.BrowserConfig{ChromeDriver: "/usr/bin/chromium"}).allocatorOptions()

		if len(with) != len(without)+1 {
			t.Errorf("expected exec path option to be appended, got %d vs %d", len(with), len(without))
		}
	})
}
