// browser/dom/synthesizer.go
package dom

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/clickseq/api/schemas"
)

// PriorityAttributes are the stable hooks tried, in order, after the id.
var PriorityAttributes = []string{
	"data-testid",
	"data-test",
	"data-cy",
	"data-qa",
	"aria-label",
	"aria-labelledby",
	"name",
	"placeholder",
	"for",
	"role",
	"type",
	"value",
}

// Synthesizer turns an element into a selector that re-selects it.
type Synthesizer struct {
	matcher Matcher
	logger  *zap.Logger
}

// NewSynthesizer creates a synthesizer that tests uniqueness against m.
func NewSynthesizer(m Matcher, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{matcher: m, logger: logger.Named("synthesizer")}
}

// Synthesize returns a selector for el. Simple mode yields the full path.
// Smart mode prefers, in order: a unique id, a unique priority attribute,
// a link href or image alt, the shortest unique ancestor path, and finally
// the full path. The result always matches el.
func (s *Synthesizer) Synthesize(el *html.Node, mode schemas.PickMode) (string, error) {
	if !isElement(el) {
		return "", ErrNotElement
	}
	if mode != schemas.ModeSmart {
		return FullPath(el), nil
	}
	return s.smart(el), nil
}

func (s *Synthesizer) smart(el *html.Node) string {
	tag := tagName(el)

	if id := htmlquery.SelectAttr(el, "id"); id != "" {
		if sel := "#" + EscapeIdent(id); s.isUnique(sel) {
			return sel
		}
	}

	for _, name := range PriorityAttributes {
		val := htmlquery.SelectAttr(el, name)
		if val == "" {
			continue
		}
		sel := attrSelector(name, val)
		if s.isUnique(sel) {
			return sel
		}
		if s.isUnique(tag + sel) {
			return tag + sel
		}
	}

	switch tag {
	case "a":
		if href := htmlquery.SelectAttr(el, "href"); usableHref(href) {
			if sel := "a" + attrSelector("href", href); s.isUnique(sel) {
				return sel
			}
		}
	case "img":
		if alt := htmlquery.SelectAttr(el, "alt"); alt != "" {
			if sel := "img" + attrSelector("alt", alt); s.isUnique(sel) {
				return sel
			}
		}
	}

	if sel, ok := s.shortestPath(el); ok {
		return sel
	}

	s.logger.Debug("No unique smart selector, falling back to full path.", zap.String("tag", tag))
	return FullPath(el)
}

// shortestPath grows a path upward one optimal part at a time and stops at
// the first prefix that is unique in the document.
func (s *Synthesizer) shortestPath(el *html.Node) (string, bool) {
	var parts []string
	for n := el; isElement(n); n = n.Parent {
		parts = append([]string{s.optimalPart(n)}, parts...)
		sel := strings.Join(parts, pathSeparator)
		if s.isUnique(sel) {
			return sel, true
		}
	}
	return "", false
}

// optimalPart picks the most specific cheap descriptor for one level.
func (s *Synthesizer) optimalPart(n *html.Node) string {
	tag := tagName(n)

	if id := htmlquery.SelectAttr(n, "id"); id != "" {
		if sel := "#" + EscapeIdent(id); s.isUnique(sel) {
			return sel
		}
	}

	if n.Parent != nil {
		for _, cls := range classList(n) {
			sel := tag + "." + EscapeIdent(cls)
			if matchingSiblings(n.Parent, sel) == 1 {
				return sel
			}
		}
	}

	if sameTagSiblings(n) > 1 {
		return fmt.Sprintf("%s:nth-of-type(%d)", tag, sameTagIndex(n))
	}
	return tag
}

func (s *Synthesizer) isUnique(selector string) bool {
	count, err := s.matcher.CountMatches(selector)
	if err != nil {
		s.logger.Debug("Selector rejected.", zap.String("selector", selector), zap.Error(err))
		return false
	}
	return count == 1
}

// matchingSiblings counts element children of parent matched by selector.
func matchingSiblings(parent *html.Node, selector string) int {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return 0
	}
	count := 0
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c) && sel.Match(c) {
			count++
		}
	}
	return count
}

func attrSelector(name, value string) string {
	return "[" + name + "=" + QuoteString(value) + "]"
}

// usableHref rejects empty, fragment-only and script hrefs.
func usableHref(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	return !strings.HasPrefix(strings.ToLower(strings.TrimSpace(href)), "javascript:")
}

// classList splits the class attribute on ASCII whitespace.
func classList(n *html.Node) []string {
	return strings.FieldsFunc(htmlquery.SelectAttr(n, "class"), func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '\f', '\r':
			return true
		}
		return false
	})
}
