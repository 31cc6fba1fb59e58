package automation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IshaanNene/TrendGoat/internal/config"
	"github.com/IshaanNene/TrendGoat/internal/fetcher"
	"github.com/IshaanNene/TrendGoat/internal/types"
)

// Result is the outcome of one extraction.
type Result struct {
	Trends []string
	// Failed counts positional slots that hold a placeholder.
	Failed int
}

// Extractor reads trend labels from an authenticated page.
type Extractor struct {
	cfg    *config.ExtractConfig
	logger *slog.Logger
}

// NewExtractor creates an Extractor for the configured strategy.
func NewExtractor(cfg *config.ExtractConfig, logger *slog.Logger) (*Extractor, error) {
	switch cfg.Strategy {
	case config.StrategyPositional:
		if len(cfg.Positions) == 0 {
			return nil, fmt.Errorf("positional strategy needs at least one position")
		}
	case config.StrategyPattern:
		if cfg.Pattern == "" {
			return nil, fmt.Errorf("pattern strategy needs a selector")
		}
	default:
		return nil, fmt.Errorf("unknown extraction strategy %q", cfg.Strategy)
	}
	return &Extractor{
		cfg:    cfg,
		logger: logger.With("component", "extractor", "strategy", cfg.Strategy),
	}, nil
}

// Strategy returns the configured strategy name.
func (x *Extractor) Strategy() string { return x.cfg.Strategy }

// IsPlaceholder reports whether s is a slot the positional strategy could not read.
func (x *Extractor) IsPlaceholder(s string) bool {
	prefix, suffix, ok := strings.Cut(x.cfg.Placeholder, "%d")
	if !ok || !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, suffix) {
		return false
	}
	if len(prefix)+len(suffix) >= len(s) {
		return false
	}
	n := s[len(prefix) : len(s)-len(suffix)]
	for _, r := range n {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Extract runs the configured strategy.
func (x *Extractor) Extract(ctx context.Context, page fetcher.Page) (*Result, error) {
	if x.cfg.Strategy == config.StrategyPattern {
		return x.byPattern(ctx, page)
	}
	return x.byPosition(ctx, page), nil
}

// byPosition looks up every configured path independently. A slot that
// cannot be read gets the placeholder so the others survive.
func (x *Extractor) byPosition(ctx context.Context, page fetcher.Page) *Result {
	res := &Result{Trends: make([]string, len(x.cfg.Positions))}

	for i, path := range x.cfg.Positions {
		text, err := x.readOne(ctx, page, fetcher.XPath(path))
		if err != nil {
			x.logger.Warn("trend lookup failed", "slot", i+1, "error", err)
			res.Trends[i] = fmt.Sprintf(x.cfg.Placeholder, i+1)
			res.Failed++
			continue
		}
		x.logger.Debug("trend found", "slot", i+1, "text", text)
		res.Trends[i] = text
	}
	return res
}

func (x *Extractor) readOne(ctx context.Context, page fetcher.Page, sel fetcher.Selector) (string, error) {
	stepCtx, cancel := context.WithTimeout(ctx, x.cfg.ItemTimeout)
	defer cancel()

	el, err := page.Element(stepCtx, sel)
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w", sel, err)
	}
	return strings.TrimSpace(text), nil
}

// byPattern collects every non-empty match of the pattern in document order.
func (x *Extractor) byPattern(ctx context.Context, page fetcher.Page) (*Result, error) {
	stepCtx, cancel := context.WithTimeout(ctx, x.cfg.ItemTimeout)
	defer cancel()

	sel := fetcher.CSS(x.cfg.Pattern)
	els, err := page.Elements(stepCtx, sel)
	if err != nil {
		if x.cfg.RequireMatch {
			return nil, types.NewError(types.KindExtractionTimeout, "pattern", err)
		}
		x.logger.Warn("no trends matched", "selector", x.cfg.Pattern, "error", err)
		return &Result{Trends: []string{}}, nil
	}

	trends := make([]string, 0, len(els))
	seen := make(map[string]struct{}, len(els))
	for _, el := range els {
		text, err := el.Text()
		if err != nil {
			x.logger.Debug("skipping unreadable match", "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		trends = append(trends, text)
		if x.cfg.MaxItems > 0 && len(trends) == x.cfg.MaxItems {
			break
		}
	}

	if len(trends) == 0 && x.cfg.RequireMatch {
		return nil, types.NewError(types.KindExtractionTimeout, "pattern",
			fmt.Errorf("%w: no non-empty text under %s", types.ErrNotFound, sel))
	}
	return &Result{Trends: trends}, nil
}
