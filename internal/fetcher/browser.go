package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/TrendGoat/internal/config"
)

// Launcher starts one Chromium session per call.
type Launcher struct {
	cfg        *config.BrowserConfig
	stealthCfg *StealthConfig
	proxy      *ProxyEndpoint
	tlsLax     bool
	logger     *slog.Logger
}

// NewLauncher creates a Launcher from configuration.
func NewLauncher(cfg *config.Config, logger *slog.Logger) (*Launcher, error) {
	proxy, err := NewProxyEndpoint(cfg)
	if err != nil {
		return nil, err
	}

	w, h, err := ParseWindowSize(cfg.Browser.WindowSize)
	if err != nil {
		return nil, err
	}

	l := &Launcher{
		cfg: &cfg.Browser,
		stealthCfg: &StealthConfig{
			Enabled:        cfg.Browser.Stealth,
			ViewportWidth:  w,
			ViewportHeight: h,
			UserAgent:      cfg.Browser.UserAgent,
			Language:       "en-US",
		},
		proxy:  proxy,
		tlsLax: proxy != nil && cfg.Proxy.TLSInsecure,
		logger: logger.With("component", "browser_launcher"),
	}
	return l, nil
}

// Launch starts Chromium, connects to it and opens a page. Anything started
// before a failure is torn down before Launch returns.
func (l *Launcher) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ln := l.newProcess()
	controlURL, err := ln.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		ln.Kill()
		ln.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	s := &rodSession{
		launcher: ln,
		browser:  browser,
		logger:   l.logger,
	}

	if l.proxy != nil {
		if user, pass, ok := l.proxy.Credentials(); ok {
			wait := browser.HandleAuth(user, pass)
			go func() {
				if err := wait(); err != nil {
					l.logger.Debug("proxy auth handler ended", "error", err)
				}
			}()
		}
	}

	page, err := l.newPage(browser)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.page = page

	l.logger.Info("browser session ready",
		"headless", l.cfg.Headless,
		"stealth", l.stealthCfg.Enabled,
		"proxy", l.proxy != nil,
	)
	return s, nil
}

// newProcess configures the Chromium command line.
func (l *Launcher) newProcess() *launcher.Launcher {
	ln := launcher.New().
		Headless(l.cfg.Headless).
		NoSandbox(l.cfg.NoSandbox).
		Leakless(l.cfg.Leakless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled")

	if l.cfg.Bin != "" {
		ln = ln.Bin(l.cfg.Bin)
	}
	if l.cfg.Headless {
		if l.cfg.WindowSize != "" {
			ln = ln.Set("window-size", l.cfg.WindowSize)
		}
	} else {
		ln = ln.Set("start-maximized")
	}
	if l.proxy != nil {
		ln = ln.Proxy(l.proxy.ServerAddr())
		if l.tlsLax {
			ln = ln.Set("ignore-certificate-errors")
		}
	}
	return ln
}

func (l *Launcher) newPage(browser *rod.Browser) (*rod.Page, error) {
	var page *rod.Page
	var err error
	if l.stealthCfg.Enabled {
		page, err = stealth.Page(browser)
		if err != nil {
			return nil, fmt.Errorf("stealth page: %w", err)
		}
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
		if err != nil {
			return nil, fmt.Errorf("open page: %w", err)
		}
	}

	// Windowed sessions are maximized; only headless ones get an explicit viewport.
	sc := *l.stealthCfg
	if !l.cfg.Headless {
		sc.ViewportWidth, sc.ViewportHeight = 0, 0
	}
	if err := sc.apply(page); err != nil {
		_ = page.Close()
		return nil, err
	}
	return page, nil
}

// rodSession owns the Chromium process, the connection and the page.
type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	logger   *slog.Logger

	once     sync.Once
	closed   atomic.Bool
	closeErr error
}

func (s *rodSession) Page() Page {
	if s.closed.Load() {
		return closedPage{}
	}
	return NewRodPage(s.page)
}

// Close releases the page, the browser and its profile directory. Safe to call twice.
func (s *rodSession) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		if s.page != nil {
			_ = s.page.Close()
		}
		if s.browser != nil {
			s.closeErr = s.browser.Close()
		}
		if s.launcher != nil {
			if s.closeErr != nil {
				s.launcher.Kill()
			}
			s.launcher.Cleanup()
		}
		s.logger.Debug("browser session closed", "error", s.closeErr)
	})
	return s.closeErr
}
