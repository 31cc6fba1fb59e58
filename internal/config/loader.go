package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// legacyEnv maps config keys to the unprefixed environment names older deployments used.
var legacyEnv = map[string]string{
	"storage.uri":             "MONGO_URI",
	"proxy.api_key":           "SCRAPERAPI_KEY",
	"login.handle":            "TWITTER_USERNAME",
	"login.password":          "TWITTER_PASSWORD",
	"login.verification_name": "TWITTER_NAME",
}

// Load reads configuration from file, environment, and a .env file.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("TRENDGOAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		envKey := "TRENDGOAT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", legacy, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("trendgoat")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".trendgoat"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper.
// Every key must be registered so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)

	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.no_sandbox", cfg.Browser.NoSandbox)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.leakless", cfg.Browser.Leakless)
	v.SetDefault("browser.bin", cfg.Browser.Bin)
	v.SetDefault("browser.window_size", cfg.Browser.WindowSize)
	v.SetDefault("browser.user_agent", cfg.Browser.UserAgent)

	v.SetDefault("proxy.enabled", cfg.Proxy.Enabled)
	v.SetDefault("proxy.url", cfg.Proxy.URL)
	v.SetDefault("proxy.api_key", cfg.Proxy.APIKey)
	v.SetDefault("proxy.tls_insecure", cfg.Proxy.TLSInsecure)

	v.SetDefault("login.url", cfg.Login.URL)
	v.SetDefault("login.handle", cfg.Login.Handle)
	v.SetDefault("login.verification_name", cfg.Login.VerificationName)
	v.SetDefault("login.password", cfg.Login.Password)
	v.SetDefault("login.handle_selector", cfg.Login.HandleSelector)
	v.SetDefault("login.password_selector", cfg.Login.PasswordSelector)
	v.SetDefault("login.home_pattern", cfg.Login.HomePattern)
	v.SetDefault("login.navigate_timeout", cfg.Login.NavigateTimeout)
	v.SetDefault("login.handle_timeout", cfg.Login.HandleTimeout)
	v.SetDefault("login.verification_timeout", cfg.Login.VerificationTimeout)
	v.SetDefault("login.password_timeout", cfg.Login.PasswordTimeout)
	v.SetDefault("login.home_timeout", cfg.Login.HomeTimeout)
	v.SetDefault("login.settle_delay", cfg.Login.SettleDelay)

	v.SetDefault("extract.strategy", cfg.Extract.Strategy)
	v.SetDefault("extract.positions", cfg.Extract.Positions)
	v.SetDefault("extract.pattern", cfg.Extract.Pattern)
	v.SetDefault("extract.placeholder", cfg.Extract.Placeholder)
	v.SetDefault("extract.item_timeout", cfg.Extract.ItemTimeout)
	v.SetDefault("extract.max_items", cfg.Extract.MaxItems)
	v.SetDefault("extract.require_match", cfg.Extract.RequireMatch)

	v.SetDefault("egress.url", cfg.Egress.URL)
	v.SetDefault("egress.via_proxy", cfg.Egress.ViaProxy)
	v.SetDefault("egress.timeout", cfg.Egress.Timeout)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.uri", cfg.Storage.URI)
	v.SetDefault("storage.database", cfg.Storage.Database)
	v.SetDefault("storage.collection", cfg.Storage.Collection)
	v.SetDefault("storage.output_path", cfg.Storage.OutputPath)
	v.SetDefault("storage.timeout", cfg.Storage.Timeout)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}

// ExpandAPIKey substitutes the proxy access key into a URL template.
func (c *Config) ExpandAPIKey(raw string) string {
	return strings.ReplaceAll(raw, APIKeyPlaceholder, c.Proxy.APIKey)
}

// Redacted returns a copy with credentials masked, safe to print or log.
func (c *Config) Redacted() Config {
	out := *c
	out.Extract.Positions = append([]string(nil), c.Extract.Positions...)
	out.Login.Password = mask(c.Login.Password)
	out.Proxy.APIKey = mask(c.Proxy.APIKey)
	out.Storage.URI = maskURI(c.Storage.URI)
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

// maskURI hides the password part of a connection string's userinfo.
func maskURI(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return raw
	}
	user, _, hasPass := strings.Cut(rest[:at], ":")
	if !hasPass {
		return raw
	}
	return scheme + "://" + user + ":****" + rest[at:]
}
