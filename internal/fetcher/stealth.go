package fetcher

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// StealthConfig configures the fingerprint a session presents.
type StealthConfig struct {
	// Patch the page with go-rod/stealth before first use
	Enabled bool

	// Viewport; zero means leave the browser default
	ViewportWidth  int
	ViewportHeight int

	// UserAgent override; empty keeps Chromium's own
	UserAgent string

	// Language reported through Accept-Language
	Language string
}

// ParseWindowSize parses "W,H" as used by Chromium's --window-size flag.
func ParseWindowSize(s string) (width, height int, err error) {
	if s == "" {
		return 0, 0, nil
	}
	ws, hs, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("window size %q: expected W,H", s)
	}
	width, err = strconv.Atoi(strings.TrimSpace(ws))
	if err != nil {
		return 0, 0, fmt.Errorf("window size %q: %w", s, err)
	}
	height, err = strconv.Atoi(strings.TrimSpace(hs))
	if err != nil {
		return 0, 0, fmt.Errorf("window size %q: %w", s, err)
	}
	return width, height, nil
}

// apply sets the viewport and user agent on a fresh page.
func (sc *StealthConfig) apply(page *rod.Page) error {
	if sc.ViewportWidth > 0 && sc.ViewportHeight > 0 {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             sc.ViewportWidth,
			Height:            sc.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
	}

	if sc.UserAgent != "" {
		lang := sc.Language
		if lang == "" {
			lang = "en-US"
		}
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      sc.UserAgent,
			AcceptLanguage: lang + ",en;q=0.9",
		})
		if err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}
	return nil
}
