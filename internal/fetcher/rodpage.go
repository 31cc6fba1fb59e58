package fetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"

	"github.com/IshaanNene/TrendGoat/internal/types"
)

// rodPage implements Page over a live rod page.
type rodPage struct {
	page *rod.Page
}

// NewRodPage wraps an existing rod page.
func NewRodPage(page *rod.Page) Page {
	return &rodPage{page: page}
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w navigating to %s", types.ErrTimeout, url)
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := pg.WaitLoad(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w waiting for %s to load", types.ErrTimeout, url)
		}
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

func (p *rodPage) Element(ctx context.Context, sel Selector) (Element, error) {
	pg := p.page.Context(ctx)

	var el *rod.Element
	var err error
	switch sel.Kind {
	case SelectorXPath:
		el, err = pg.ElementX(sel.Expr)
	default:
		el, err = pg.Element(sel.Expr)
	}
	if err != nil {
		return nil, waitErr(ctx, sel, err)
	}

	// Detach from the lookup deadline so the element stays usable after it.
	return &rodElement{el: el.Context(p.page.GetContext())}, nil
}

func (p *rodPage) Elements(ctx context.Context, sel Selector) ([]Element, error) {
	if _, err := p.Element(ctx, sel); err != nil {
		return nil, err
	}

	var els rod.Elements
	var err error
	switch sel.Kind {
	case SelectorXPath:
		els, err = p.page.ElementsX(sel.Expr)
	default:
		els, err = p.page.Elements(sel.Expr)
	}
	if err != nil {
		return nil, fmt.Errorf("find all %s: %w", sel, err)
	}

	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func (p *rodPage) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.URL, nil
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Text() (string, error) { return e.el.Text() }

func (e *rodElement) Input(text string) error { return e.el.Input(text) }

func (e *rodElement) Submit() error { return e.el.Type(input.Enter) }
