package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if cfg.Browser.WindowSize != "" && !windowSizeRe.MatchString(cfg.Browser.WindowSize) {
		return fmt.Errorf("browser.window_size must look like 1920,1080, got %q", cfg.Browser.WindowSize)
	}

	if cfg.Proxy.Enabled {
		if strings.Contains(cfg.Proxy.URL, APIKeyPlaceholder) && cfg.Proxy.APIKey == "" {
			return fmt.Errorf("proxy.api_key is required by proxy.url")
		}
		u, err := url.Parse(cfg.ExpandAPIKey(cfg.Proxy.URL))
		if err != nil {
			return fmt.Errorf("invalid proxy URL: %w", err)
		}
		if u.Host == "" {
			return fmt.Errorf("proxy.url must have a host")
		}
	}

	if err := ValidateURL(cfg.Login.URL); err != nil {
		return fmt.Errorf("login.url: %w", err)
	}
	if cfg.Login.HandleSelector == "" || cfg.Login.PasswordSelector == "" {
		return fmt.Errorf("login selectors must not be empty")
	}
	if _, err := regexp.Compile(cfg.Login.HomePattern); err != nil {
		return fmt.Errorf("login.home_pattern: %w", err)
	}
	for name, d := range map[string]int64{
		"login.navigate_timeout":     int64(cfg.Login.NavigateTimeout),
		"login.handle_timeout":       int64(cfg.Login.HandleTimeout),
		"login.verification_timeout": int64(cfg.Login.VerificationTimeout),
		"login.password_timeout":     int64(cfg.Login.PasswordTimeout),
		"login.home_timeout":         int64(cfg.Login.HomeTimeout),
		"extract.item_timeout":       int64(cfg.Extract.ItemTimeout),
		"egress.timeout":             int64(cfg.Egress.Timeout),
		"storage.timeout":            int64(cfg.Storage.Timeout),
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	if cfg.Login.SettleDelay < 0 {
		return fmt.Errorf("login.settle_delay must be >= 0")
	}

	switch cfg.Extract.Strategy {
	case StrategyPositional:
		if len(cfg.Extract.Positions) == 0 {
			return fmt.Errorf("extract.positions must not be empty for the positional strategy")
		}
	case StrategyPattern:
		if cfg.Extract.Pattern == "" {
			return fmt.Errorf("extract.pattern must not be empty for the pattern strategy")
		}
	default:
		return fmt.Errorf("extract.strategy must be 'positional' or 'pattern', got %q", cfg.Extract.Strategy)
	}
	if strings.Count(cfg.Extract.Placeholder, "%d") != 1 {
		return fmt.Errorf("extract.placeholder must contain exactly one %%d, got %q", cfg.Extract.Placeholder)
	}
	if cfg.Extract.MaxItems < 0 {
		return fmt.Errorf("extract.max_items must be >= 0, got %d", cfg.Extract.MaxItems)
	}

	if err := ValidateURL(cfg.ExpandAPIKey(cfg.Egress.URL)); err != nil {
		return fmt.Errorf("egress.url: %w", err)
	}

	switch cfg.Storage.Type {
	case StorageMongo:
		if cfg.Storage.URI == "" {
			return fmt.Errorf("storage.uri is required for mongodb")
		}
		if cfg.Storage.Database == "" || cfg.Storage.Collection == "" {
			return fmt.Errorf("storage.database and storage.collection are required for mongodb")
		}
	case StorageJSONL:
		if cfg.Storage.OutputPath == "" {
			return fmt.Errorf("storage.output_path is required for jsonl")
		}
	default:
		return fmt.Errorf("storage.type %q is not supported (valid: mongodb, jsonl)", cfg.Storage.Type)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	return nil
}

var windowSizeRe = regexp.MustCompile(`^\d+,\d+$`)

// ValidateURL checks if a URL string is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
