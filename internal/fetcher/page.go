package fetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/IshaanNene/TrendGoat/internal/types"
)

// SelectorKind tells a Page how to interpret a selector expression.
type SelectorKind int

const (
	SelectorCSS SelectorKind = iota
	SelectorXPath
)

// Selector locates nodes on a page.
type Selector struct {
	Kind SelectorKind
	Expr string
}

// CSS returns a CSS selector.
func CSS(expr string) Selector { return Selector{Kind: SelectorCSS, Expr: expr} }

// XPath returns an XPath selector.
func XPath(expr string) Selector { return Selector{Kind: SelectorXPath, Expr: expr} }

func (s Selector) String() string {
	if s.Kind == SelectorXPath {
		return "xpath:" + s.Expr
	}
	return "css:" + s.Expr
}

// Page is the subset of page control the login and extraction steps need.
// Lookups wait for a match until ctx is done.
type Page interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error

	// Element returns the first node matching sel.
	Element(ctx context.Context, sel Selector) (Element, error)

	// Elements waits for at least one match and returns all of them in document order.
	Elements(ctx context.Context, sel Selector) ([]Element, error)

	// URL returns the current location.
	URL(ctx context.Context) (string, error)
}

// Element is a located DOM node.
type Element interface {
	Text() (string, error)
	Input(text string) error
	// Submit presses Enter on the element.
	Submit() error
}

// Session is one running browser with a single page.
type Session interface {
	Page() Page
	Close() error
}

// waitErr normalizes lookup failures so callers can test for types.ErrTimeout.
func waitErr(ctx context.Context, sel Selector, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w waiting for %s", types.ErrTimeout, sel)
	}
	return fmt.Errorf("find %s: %w", sel, err)
}

// closedPage is handed out by a session after Close.
type closedPage struct{}

func (closedPage) Navigate(context.Context, string) error { return types.ErrSessionClosed }
func (closedPage) Element(context.Context, Selector) (Element, error) {
	return nil, types.ErrSessionClosed
}
func (closedPage) Elements(context.Context, Selector) ([]Element, error) {
	return nil, types.ErrSessionClosed
}
func (closedPage) URL(context.Context) (string, error) { return "", types.ErrSessionClosed }
