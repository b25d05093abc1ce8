// browser/dom/document.go
package dom

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

var (
	// ErrInvalidSelector wraps selector syntax errors.
	ErrInvalidSelector = errors.New("invalid selector")
	// ErrNoMatch is returned by lookups that find nothing.
	ErrNoMatch = errors.New("no matching element")
	// ErrNotElement is returned when synthesis is asked about a non-element node.
	ErrNotElement = errors.New("node is not an element")
)

// Matcher answers "how many elements does this selector match" for the
// document the synthesizer is working against.
type Matcher interface {
	CountMatches(selector string) (int, error)
}

// Document is a parsed, static snapshot of a page.
type Document struct {
	doc *goquery.Document
}

// ParseDocument parses HTML from r.
func ParseDocument(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{doc: doc}, nil
}

// NewDocument wraps an already parsed tree.
func NewDocument(root *html.Node) *Document {
	return &Document{doc: goquery.NewDocumentFromNode(root)}
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.doc.Nodes[0]
}

// CountMatches compiles selector and counts the matching elements. Syntax
// errors are reported as ErrInvalidSelector.
func (d *Document) CountMatches(selector string) (int, error) {
	sel, err := compile(selector)
	if err != nil {
		return 0, err
	}
	return d.doc.FindMatcher(sel).Length(), nil
}

// FindFirst returns the first element in document order matching selector.
func (d *Document) FindFirst(selector string) (*html.Node, error) {
	sel, err := compile(selector)
	if err != nil {
		return nil, err
	}
	found := d.doc.FindMatcher(sel).First()
	if found.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, selector)
	}
	return found.Nodes[0], nil
}

// FindXPath returns the first element matching an XPath expression.
func (d *Document) FindXPath(expr string) (*html.Node, error) {
	node, err := htmlquery.Query(d.Root(), expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	if node == nil || node.Type != html.ElementNode {
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, expr)
	}
	return node, nil
}

// FindByAttr returns the first element whose attribute name equals value.
func (d *Document) FindByAttr(name, value string) (*html.Node, error) {
	return d.FindFirst(fmt.Sprintf("[%s=%s]", name, QuoteString(value)))
}

// RemoveAttr strips an attribute from every element in the document.
func (d *Document) RemoveAttr(name string) {
	d.doc.Find("[" + name + "]").RemoveAttr(name)
}

// OuterHTML renders a single node, mostly for diagnostics.
func OuterHTML(n *html.Node) string {
	if n == nil {
		return ""
	}
	return htmlquery.OutputHTML(n, true)
}

func compile(selector string) (cascadia.Selector, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, fmt.Errorf("%w: empty selector", ErrInvalidSelector)
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSelector, selector, err)
	}
	return sel, nil
}
