// browser/dom/fullpath.go
package dom

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// pathSeparator joins path parts with the child combinator.
const pathSeparator = " > "

// FullPath builds the structural selector for an element: one part per
// ancestor, anchored at the nearest element carrying an id.
func FullPath(node *html.Node) string {
	if !isElement(node) {
		return ""
	}

	var path []string
	// Traverse up the tree from the node to the root.
	for n := node; isElement(n); n = n.Parent {
		// An id anchors the path; nothing above it is needed.
		if id := htmlquery.SelectAttr(n, "id"); id != "" {
			path = append(path, "#"+EscapeIdent(id))
			break
		}

		tag := tagName(n)
		if k := sameTagIndex(n); k > 1 {
			tag = fmt.Sprintf("%s:nth-of-type(%d)", tag, k)
		}
		path = append(path, tag)
	}

	// Reverse the path to go from root (or id anchor) to the node.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return strings.Join(path, pathSeparator)
}

// sameTagIndex is the 1-based position of n among its same-tag siblings.
func sameTagIndex(n *html.Node) int {
	tag := tagName(n)
	index := 1
	for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
		if isElement(prev) && tagName(prev) == tag {
			index++
		}
	}
	return index
}

// sameTagSiblings counts the element children of n's parent sharing n's tag,
// n included.
func sameTagSiblings(n *html.Node) int {
	if n.Parent == nil {
		return 1
	}
	tag := tagName(n)
	count := 0
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c) && tagName(c) == tag {
			count++
		}
	}
	return count
}

func isElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// tagName is the lowercased element name, as in nodeName.toLowerCase().
func tagName(n *html.Node) string {
	return strings.ToLower(n.Data)
}
