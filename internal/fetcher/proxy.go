package fetcher

import (
	"fmt"
	"net/url"

	"github.com/IshaanNene/TrendGoat/internal/config"
)

// ProxyEndpoint is the proxy shared by the browser session and the egress lookup.
type ProxyEndpoint struct {
	u *url.URL
}

// NewProxyEndpoint builds the proxy from configuration, expanding the access key.
// It returns nil when the proxy is disabled.
func NewProxyEndpoint(cfg *config.Config) (*ProxyEndpoint, error) {
	if !cfg.Proxy.Enabled {
		return nil, nil
	}

	u, err := url.Parse(cfg.ExpandAPIKey(cfg.Proxy.URL))
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy URL %q has no host", u.Redacted())
	}
	if u.Scheme == "" {
		u.Scheme = "http"
	}
	return &ProxyEndpoint{u: u}, nil
}

// URL returns the full proxy URL including credentials, for http.Transport.
func (p *ProxyEndpoint) URL() *url.URL {
	u := *p.u
	return &u
}

// ServerAddr returns scheme://host:port, the form Chromium's --proxy-server accepts.
func (p *ProxyEndpoint) ServerAddr() string {
	return p.u.Scheme + "://" + p.u.Host
}

// Credentials returns the userinfo embedded in the proxy URL.
func (p *ProxyEndpoint) Credentials() (username, password string, ok bool) {
	if p.u.User == nil {
		return "", "", false
	}
	password, _ = p.u.User.Password()
	return p.u.User.Username(), password, true
}

// String returns the proxy URL with the password masked.
func (p *ProxyEndpoint) String() string {
	return p.u.Redacted()
}
