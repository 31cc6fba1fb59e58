package config

import (
	"fmt"
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Extraction strategies.
const (
	StrategyPositional = "positional"
	StrategyPattern    = "pattern"
)

// Storage backends.
const (
	StorageMongo = "mongodb"
	StorageJSONL = "jsonl"
)

// APIKeyPlaceholder is replaced by Proxy.APIKey in proxy and egress URLs.
const APIKeyPlaceholder = "{api_key}"

// Config is the root configuration for TrendGoat.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"  yaml:"server"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Proxy   ProxyConfig   `mapstructure:"proxy"   yaml:"proxy"`
	Login   LoginConfig   `mapstructure:"login"   yaml:"login"`
	Extract ExtractConfig `mapstructure:"extract" yaml:"extract"`
	Egress  EgressConfig  `mapstructure:"egress"  yaml:"egress"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Host            string        `mapstructure:"host"             yaml:"host"`
	Port            int           `mapstructure:"port"             yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// BrowserConfig controls the Chromium session.
type BrowserConfig struct {
	Headless   bool   `mapstructure:"headless"    yaml:"headless"`
	NoSandbox  bool   `mapstructure:"no_sandbox"  yaml:"no_sandbox"`
	Stealth    bool   `mapstructure:"stealth"     yaml:"stealth"`
	Leakless   bool   `mapstructure:"leakless"    yaml:"leakless"`
	Bin        string `mapstructure:"bin"         yaml:"bin"`
	WindowSize string `mapstructure:"window_size" yaml:"window_size"`
	UserAgent  string `mapstructure:"user_agent"  yaml:"user_agent"`
}

// ProxyConfig controls the HTTP proxy shared by the browser and the egress lookup.
type ProxyConfig struct {
	Enabled     bool   `mapstructure:"enabled"      yaml:"enabled"`
	URL         string `mapstructure:"url"          yaml:"url"`
	APIKey      string `mapstructure:"api_key"      yaml:"api_key"`
	TLSInsecure bool   `mapstructure:"tls_insecure" yaml:"tls_insecure"`
}

// LoginConfig controls the login sequence.
type LoginConfig struct {
	URL                 string        `mapstructure:"url"                   yaml:"url"`
	Handle              string        `mapstructure:"handle"                yaml:"handle"`
	VerificationName    string        `mapstructure:"verification_name"     yaml:"verification_name"`
	Password            string        `mapstructure:"password"              yaml:"password"`
	HandleSelector      string        `mapstructure:"handle_selector"       yaml:"handle_selector"`
	PasswordSelector    string        `mapstructure:"password_selector"     yaml:"password_selector"`
	HomePattern         string        `mapstructure:"home_pattern"          yaml:"home_pattern"`
	NavigateTimeout     time.Duration `mapstructure:"navigate_timeout"      yaml:"navigate_timeout"`
	HandleTimeout       time.Duration `mapstructure:"handle_timeout"        yaml:"handle_timeout"`
	VerificationTimeout time.Duration `mapstructure:"verification_timeout"  yaml:"verification_timeout"`
	PasswordTimeout     time.Duration `mapstructure:"password_timeout"      yaml:"password_timeout"`
	HomeTimeout         time.Duration `mapstructure:"home_timeout"          yaml:"home_timeout"`
	SettleDelay         time.Duration `mapstructure:"settle_delay"          yaml:"settle_delay"`
}

// ExtractConfig controls how trends are read from the home page.
type ExtractConfig struct {
	Strategy     string        `mapstructure:"strategy"      yaml:"strategy"` // positional, pattern
	Positions    []string      `mapstructure:"positions"     yaml:"positions"`
	Pattern      string        `mapstructure:"pattern"       yaml:"pattern"`
	Placeholder  string        `mapstructure:"placeholder"   yaml:"placeholder"`
	ItemTimeout  time.Duration `mapstructure:"item_timeout"  yaml:"item_timeout"`
	MaxItems     int           `mapstructure:"max_items"     yaml:"max_items"`
	RequireMatch bool          `mapstructure:"require_match" yaml:"require_match"`
}

// EgressConfig controls the IP-echo lookup.
type EgressConfig struct {
	URL      string        `mapstructure:"url"       yaml:"url"`
	ViaProxy bool          `mapstructure:"via_proxy" yaml:"via_proxy"`
	Timeout  time.Duration `mapstructure:"timeout"   yaml:"timeout"`
}

// StorageConfig controls where snapshots are persisted.
type StorageConfig struct {
	Type       string        `mapstructure:"type"        yaml:"type"`
	URI        string        `mapstructure:"uri"         yaml:"uri"`
	Database   string        `mapstructure:"database"    yaml:"database"`
	Collection string        `mapstructure:"collection"  yaml:"collection"`
	OutputPath string        `mapstructure:"output_path" yaml:"output_path"`
	Timeout    time.Duration `mapstructure:"timeout"     yaml:"timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// trendXPath is the absolute path of the Nth trend cell in the explore sidebar.
const trendXPath = "/html/body/div[1]/div/div/div[2]/main/div/div/div/div[2]/div/div[2]/div/div/div/div[4]/section/div/div/div[%d]/div/div/div/div[2]"

// DefaultPositions returns the four absolute trend paths.
func DefaultPositions() []string {
	positions := make([]string, 0, 4)
	for row := 3; row <= 6; row++ {
		positions = append(positions, fmt.Sprintf(trendXPath, row))
	}
	return positions
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "",
			Port:            5000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute, // a run holds the response open
			ShutdownTimeout: 10 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:   true,
			NoSandbox:  true,
			Stealth:    true,
			Leakless:   true,
			WindowSize: "1920,1080",
		},
		Proxy: ProxyConfig{
			Enabled:     false,
			URL:         "http://scraperapi:" + APIKeyPlaceholder + "@proxy-server.scraperapi.com:8001",
			TLSInsecure: true,
		},
		Login: LoginConfig{
			URL:                 "https://twitter.com/i/flow/login",
			HandleSelector:      `input[name="text"]`,
			PasswordSelector:    `input[name="password"]`,
			HomePattern:         `/home`,
			NavigateTimeout:     30 * time.Second,
			HandleTimeout:       20 * time.Second,
			VerificationTimeout: 5 * time.Second,
			PasswordTimeout:     20 * time.Second,
			HomeTimeout:         20 * time.Second,
			SettleDelay:         3 * time.Second,
		},
		Extract: ExtractConfig{
			Strategy:    StrategyPositional,
			Positions:   DefaultPositions(),
			Pattern:     `[data-testid="trend"] div[dir="ltr"] > span`,
			Placeholder: "error fetching trend %d",
			ItemTimeout: 20 * time.Second,
			MaxItems:    0,
		},
		Egress: EgressConfig{
			URL:      "https://httpbin.org/ip",
			ViaProxy: true,
			Timeout:  15 * time.Second,
		},
		Storage: StorageConfig{
			Type:       StorageMongo,
			URI:        "mongodb://localhost:27017",
			Database:   "twitter_trends",
			Collection: "trend_data",
			OutputPath: "./output/snapshots.jsonl",
			Timeout:    10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
