package htmldom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// IsElement reports whether n is an element with the given tag name.
func IsElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == tag
}

// TagName returns the lowercase tag name of an element node, or "" for
// any other node type.
func TagName(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return n.Data
}

// Attr returns the value of attribute key on n, and whether it was present.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// Classes returns the set of CSS classes on n.
func Classes(n *html.Node) map[string]bool {
	out := make(map[string]bool)
	v, ok := Attr(n, "class")
	if !ok {
		return out
	}
	for _, c := range strings.Fields(v) {
		out[c] = true
	}
	return out
}

// HasClass reports whether n carries CSS class c.
func HasClass(n *html.Node, c string) bool {
	return Classes(n)[c]
}

// Children returns the element and text children of n, in source order.
func Children(n *html.Node) []*html.Node {
	if n == nil {
		return nil
	}
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// ElementChildren returns only the element children of n, in source order.
func ElementChildren(n *html.Node) []*html.Node {
	if n == nil {
		return nil
	}
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// TextContent concatenates all descendant text node data of n.
func TextContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(x *html.Node) {
		if x.Type == html.TextNode {
			b.WriteString(x.Data)
		}
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// IsBlank reports whether n's text content is empty or all whitespace.
func IsBlank(n *html.Node) bool {
	return strings.TrimSpace(TextContent(n)) == ""
}

// FindAll returns every descendant element matching tag, depth-first.
func FindAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(x *html.Node) {
		if IsElement(x, tag) {
			out = append(out, x)
		}
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// FindFirst returns the first descendant element matching tag, or nil.
func FindFirst(n *html.Node, tag string) *html.Node {
	if IsElement(n, tag) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := FindFirst(c, tag); f != nil {
			return f
		}
	}
	return nil
}

// headingLevel returns 1-6 for h1-h6 elements, 0 otherwise.
func headingLevel(n *html.Node) int {
	switch TagName(n) {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	default:
		return 0
	}
}

// HeadingLevel is the exported form of headingLevel.
func HeadingLevel(n *html.Node) int { return headingLevel(n) }

// IsVoidElement reports whether tag never carries children (img, br, hr...).
func IsVoidElement(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Img, atom.Br, atom.Hr, atom.Input, atom.Meta, atom.Link, atom.Col, atom.Area, atom.Base, atom.Embed, atom.Source, atom.Track, atom.Wbr:
		return true
	}
	return false
}
