package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/TrendGoat/internal/config"
	"github.com/IshaanNene/TrendGoat/internal/types"
)

// maxEgressBody caps how much of the IP-echo response is read.
const maxEgressBody = 64 * 1024

// EgressIdentifier asks an IP-echo endpoint which address the proxy exits from.
type EgressIdentifier struct {
	client *http.Client
	url    string
	proxy  *ProxyEndpoint
	logger *slog.Logger
}

// NewEgressIdentifier creates an identifier that routes through the configured
// proxy when egress.via_proxy is set.
func NewEgressIdentifier(cfg *config.Config, logger *slog.Logger) (*EgressIdentifier, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  true, // We handle decompression ourselves (including brotli)
	}

	var proxy *ProxyEndpoint
	if cfg.Egress.ViaProxy {
		var err error
		proxy, err = NewProxyEndpoint(cfg)
		if err != nil {
			return nil, err
		}
	}
	if proxy != nil {
		transport.Proxy = http.ProxyURL(proxy.URL())
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: cfg.Proxy.TLSInsecure,
		}
	}

	return &EgressIdentifier{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Egress.Timeout,
		},
		url:    cfg.ExpandAPIKey(cfg.Egress.URL),
		proxy:  proxy,
		logger: logger.With("component", "egress_identifier"),
	}, nil
}

type ipEcho struct {
	Origin string `json:"origin"`
}

// Identify returns the egress address. It never fails the caller: on any
// problem it returns types.UnknownIP together with a KindEgressLookup error
// that is meant to be logged, not propagated.
func (e *EgressIdentifier) Identify(ctx context.Context) (string, error) {
	ip, err := e.lookup(ctx)
	if err != nil {
		return types.UnknownIP, types.NewError(types.KindEgressLookup, "identify", err)
	}
	e.logger.Debug("egress identified", "ip", ip, "via_proxy", e.proxy != nil)
	return ip, nil
}

func (e *EgressIdentifier) lookup(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	reader, err := decompressReader(resp, io.LimitReader(resp.Body, maxEgressBody))
	if errors.Is(err, io.EOF) {
		return "", fmt.Errorf("empty %s body", resp.Header.Get("Content-Encoding"))
	}
	if err != nil {
		return "", fmt.Errorf("decompress: %w", err)
	}
	defer reader.Close()

	var body ipEcho
	if err := json.NewDecoder(reader).Decode(&body); err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	if body.Origin == "" {
		return "", fmt.Errorf("response has no origin field")
	}
	return body.Origin, nil
}

// Close releases idle connections.
func (e *EgressIdentifier) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.ReadCloser, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return io.NopCloser(brotli.NewReader(reader)), nil
	default:
		return io.NopCloser(reader), nil
	}
}
