package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/TrendGoat/internal/types"
)

// ErrReadOnly is returned when a static page is asked to accept input.
var ErrReadOnly = errors.New("static page does not accept input")

// StaticPage implements Page over a saved HTML document. Nothing on it ever
// changes, so lookups fail immediately instead of waiting.
type StaticPage struct {
	url  string
	root *html.Node
	doc  *goquery.Document
}

// NewStaticPage parses an HTML document served at pageURL.
func NewStaticPage(pageURL string, r io.Reader) (*StaticPage, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &StaticPage{
		url:  pageURL,
		root: root,
		doc:  goquery.NewDocumentFromNode(root),
	}, nil
}

// LoadStaticPage reads a saved page from disk.
func LoadStaticPage(path string) (*StaticPage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return NewStaticPage("file://"+path, f)
}

// Navigate only records the new location; the document is fixed.
func (p *StaticPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.url = url
	return nil
}

func (p *StaticPage) Element(ctx context.Context, sel Selector) (Element, error) {
	els, err := p.Elements(ctx, sel)
	if err != nil {
		return nil, err
	}
	return els[0], nil
}

func (p *StaticPage) Elements(ctx context.Context, sel Selector) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, waitErr(ctx, sel, err)
	}

	nodes, err := p.query(sel)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrNotFound, sel)
	}

	out := make([]Element, len(nodes))
	for i, n := range nodes {
		out[i] = &staticElement{node: n}
	}
	return out, nil
}

func (p *StaticPage) URL(ctx context.Context) (string, error) {
	return p.url, nil
}

func (p *StaticPage) query(sel Selector) ([]*html.Node, error) {
	switch sel.Kind {
	case SelectorXPath:
		nodes, err := htmlquery.QueryAll(p.root, sel.Expr)
		if err != nil {
			return nil, fmt.Errorf("invalid xpath %q: %w", sel.Expr, err)
		}
		return nodes, nil
	default:
		return p.doc.Find(sel.Expr).Nodes, nil
	}
}

type staticElement struct {
	node *html.Node
}

func (e *staticElement) Text() (string, error) {
	return strings.TrimSpace(htmlquery.InnerText(e.node)), nil
}

func (e *staticElement) Input(string) error { return ErrReadOnly }

func (e *staticElement) Submit() error { return ErrReadOnly }
