// Package htmldom wraps golang.org/x/net/html with the typed helpers and
// source-repair pass the extraction pipeline needs. Nothing here talks
// Notion; it only produces a clean, walkable *html.Node tree.
package htmldom

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/sn2notion/sn2notion/internal/convctx"
)

// placeholderTag matches a bare angle-bracket placeholder such as
// <plugin-name> or <your-instance-id> that authors leave in prose: not a
// real element, but indistinguishable from one to a tolerant HTML parser
// unless it is protected first.
var placeholderTag = regexp.MustCompile(`<([a-zA-Z][\w-]*(?:\s+[a-zA-Z][\w-]*)*)>`)

// knownElementNames are tag names the parser actually understands;
// a bracketed token matching one of these is a real element, not prose.
var knownElementNames = map[string]bool{
	"a": true, "b": true, "i": true, "u": true, "p": true, "div": true,
	"span": true, "br": true, "hr": true, "img": true, "ul": true, "ol": true,
	"li": true, "table": true, "thead": true, "tbody": true, "tr": true,
	"td": true, "th": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "strong": true, "em": true, "code": true,
	"pre": true, "blockquote": true, "dl": true, "dt": true, "dd": true,
	"figure": true, "figcaption": true, "caption": true, "sub": true,
	"sup": true, "s": true, "strike": true, "del": true, "ins": true,
	"kbd": true, "samp": true, "var": true, "mark": true, "abbr": true,
	"html": true, "head": true, "body": true, "title": true, "meta": true,
	"link": true, "style": true, "script": true, "col": true, "colgroup": true,
	"section": true, "article": true, "nav": true, "aside": true, "header": true,
	"footer": true, "main": true, "iframe": true, "tfoot": true, "svg": true,
}

var repeatedBreaks = regexp.MustCompile(`(?:<br\s*/?>\s*){2,}`)
var blankParagraph = regexp.MustCompile(`<p>(?:\s|&nbsp;)*</p>`)

var articleOpen = regexp.MustCompile(`(?i)<article(?:\s[^>]*)?>`)
var articleClose = regexp.MustCompile(`(?i)</article\s*>`)

// tableDivCloseRun matches a table's closing tag immediately followed by
// two or more bare closing </div> tags, the shape upstream extraction
// leaves behind when it drops a table into nested layout wrappers that
// unwrapServiceNowWrappers never sees because they carry no known class.
var tableDivCloseRun = regexp.MustCompile(`(?i)</table>(?:\s*</div>){2,}`)

// NormalizeHTML runs the source-repair pass documented for raw DITA-flavored
// export HTML and returns the parsed body's child nodes ready to walk:
//
//  1. Bare angle-bracket placeholders that aren't real elements (e.g.
//     <plugin-name>) are swapped for opaque sentinels before parsing and
//     restored in emitted text afterward, so the parser never mistakes
//     them for malformed tags.
//  2. Runs of two or more consecutive <br> are collapsed to a single break.
//  3. Empty paragraphs (no text, no non-whitespace content) are dropped.
//  4. The parser's own error-correcting tree construction repairs unclosed
//     or mismatched tags, including stray trailing </article>/</table>
//     closers left by upstream extraction.
//  5. HTML comments and <script>/<style>/<svg> subtrees are dropped.
//  6. Elements matching a fixed UI-chrome class deny-list are removed.
//  7. ServiceNow-specific wrapper divs are unwrapped to their children,
//     iteratively to a fixed point (bounded to 10 passes).
//  8. Menu-cascade widgets are collapsed to a single joined run.
//  9. The result is reduced to <body>'s children, discarding the
//     synthesized <html>/<head> wrapper.
func NormalizeHTML(conv *convctx.Conversion, raw string) ([]*html.Node, error) {
	s := raw

	s = protectPlaceholders(conv, s)
	s = repeatedBreaks.ReplaceAllString(s, "<br/>")
	s = blankParagraph.ReplaceAllString(s, "")
	s = stripExcessArticleClosers(conv, s)
	s = collapseTableDivCloseRuns(conv, s)

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return nil, err
	}

	body := findBody(doc)
	if body == nil {
		return nil, nil
	}

	stripNonContent(body)
	stripChromeByClass(conv, body)
	unwrapServiceNowWrappers(body)
	collapseMenuCascades(conv, body)

	var out []*html.Node
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out, nil
}

// chromeClassDenyList names CSS classes for UI chrome carrying no authored
// content: export controls, mini-TOC sidebars, filter widgets, copy
// buttons, and "on this page" navigation.
var chromeClassDenyList = map[string]bool{
	"export-button":       true,
	"dropdown-menu":       true,
	"mini-toc":            true,
	"zDocsTocToggle":      true,
	"filtercontrol":       true,
	"code-toolbar":        true,
	"copy-to-clipboard":   true,
	"onThisPage":          true,
	"zDocsOnThisPage":     true,
	"breadcrumbs":         true,
	"zDocsBreadcrumbs":    true,
	"feedback-widget":     true,
}

// wrapperDivClasses are ServiceNow-specific wrapper divs unwrapped to
// their children, iteratively to a fixed point.
var wrapperDivClasses = map[string]bool{
	"dataTables_wrapper":   true,
	"zDocsFilterTableDiv":  true,
	"dataTables_scroll":    true,
	"dataTables_scrollBody": true,
}

// stripChromeByClass removes elements matching the UI-chrome deny-list.
// When conv.Options.PreserveUIControlsAsParagraphs is set, a denied
// element is not dropped outright but demoted to a bare <p> carrying its
// text content, so export controls and the like survive as inert prose
// instead of vanishing — useful when auditing a document for content the
// deny-list might be over-matching.
func stripChromeByClass(conv *convctx.Conversion, n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.ElementNode && classDenied(c) {
			if conv.Options.PreserveUIControlsAsParagraphs {
				n.InsertBefore(demoteToParagraph(c), c)
			}
			n.RemoveChild(c)
			conv.Audit.RecordRepair("ui_chrome_removed")
			continue
		}
		stripChromeByClass(conv, c)
	}
}

// demoteToParagraph builds a plain <p> text node standing in for a
// chrome element whose content is being preserved rather than discarded.
func demoteToParagraph(c *html.Node) *html.Node {
	p := &html.Node{Type: html.ElementNode, Data: "p"}
	if text := strings.TrimSpace(textOf(c)); text != "" {
		p.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return p
}

func classDenied(n *html.Node) bool {
	for cls := range classSet(n) {
		if chromeClassDenyList[cls] {
			return true
		}
	}
	return false
}

func classSet(n *html.Node) map[string]bool {
	out := make(map[string]bool)
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, "class") {
			for _, c := range strings.Fields(a.Val) {
				out[c] = true
			}
		}
	}
	return out
}

// unwrapServiceNowWrappers replaces known wrapper divs with their children,
// iterating to a fixed point bounded at 10 passes.
func unwrapServiceNowWrappers(n *html.Node) {
	for pass := 0; pass < 10; pass++ {
		changed := false
		var walk func(*html.Node)
		walk = func(x *html.Node) {
			var next *html.Node
			for c := x.FirstChild; c != nil; c = next {
				next = c.NextSibling
				if c.Type == html.ElementNode {
					for cls := range classSet(c) {
						if wrapperDivClasses[cls] {
							unwrapNode(x, c)
							changed = true
							break
						}
					}
				}
				walk(c)
			}
		}
		walk(n)
		if !changed {
			return
		}
	}
}

// unwrapNode replaces child c of parent with c's own children, in place.
func unwrapNode(parent, c *html.Node) {
	first := c.FirstChild
	for first != nil {
		next := first.NextSibling
		c.RemoveChild(first)
		parent.InsertBefore(first, c)
		first = next
	}
	parent.RemoveChild(c)
}

// collapseMenuCascades finds span.menucascade widgets and replaces each
// with a single uicontrol span joining its visible labels with " > ".
func collapseMenuCascades(conv *convctx.Conversion, n *html.Node) {
	for _, cascade := range findByClass(n, "menucascade") {
		var labels []string
		for _, lbl := range findByClass(cascade, "uicontrol") {
			labels = append(labels, strings.TrimSpace(textOf(lbl)))
		}
		if len(labels) == 0 {
			continue
		}
		joined := strings.Join(labels, " > ")

		replacement := &html.Node{
			Type: html.ElementNode,
			Data: "span",
			Attr: []html.Attribute{{Key: "class", Val: "uicontrol"}},
		}
		replacement.AppendChild(&html.Node{Type: html.TextNode, Data: joined})

		parent := cascade.Parent
		if parent == nil {
			continue
		}
		parent.InsertBefore(replacement, cascade)
		parent.RemoveChild(cascade)
		conv.Audit.RecordRepair("menu_cascade")
	}
}

func findByClass(n *html.Node, class string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(x *html.Node) {
		if x.Type == html.ElementNode && classSet(x)[class] {
			out = append(out, x)
		}
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func textOf(n *html.Node) string {
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

// stripExcessArticleClosers counts open and close </article> tags and
// drops trailing closers beyond the number of openers, the shape left
// behind when upstream extraction truncates a document mid-article but
// still appends its boilerplate closing tags.
func stripExcessArticleClosers(conv *convctx.Conversion, s string) string {
	opens := len(articleOpen.FindAllString(s, -1))
	closes := articleClose.FindAllStringIndex(s, -1)
	excess := len(closes) - opens
	if excess <= 0 {
		return s
	}

	var b strings.Builder
	last := 0
	for _, loc := range closes[len(closes)-excess:] {
		b.WriteString(s[last:loc[0]])
		last = loc[1]
	}
	b.WriteString(s[last:])
	conv.Audit.RecordRepair("excess_article_closer")
	return b.String()
}

// collapseTableDivCloseRuns collapses a table's closing tag followed by a
// run of bare </div> closers down to a single one, undoing the extra
// layout-wrapper nesting ServiceNow exports leave around tables whose
// wrapper divs carry no recognized class for unwrapServiceNowWrappers to
// act on.
func collapseTableDivCloseRuns(conv *convctx.Conversion, s string) string {
	return tableDivCloseRun.ReplaceAllStringFunc(s, func(match string) string {
		conv.Audit.RecordRepair("table_div_close_run")
		return "</table></div>"
	})
}

func protectPlaceholders(conv *convctx.Conversion, s string) string {
	return placeholderTag.ReplaceAllStringFunc(s, func(match string) string {
		inner := strings.TrimSuffix(strings.TrimPrefix(match, "<"), ">")
		name := strings.ToLower(strings.Fields(inner)[0])
		if knownElementNames[name] {
			return match
		}
		return conv.ProtectPlaceholder(match)
	})
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// stripNonContent removes comment nodes and <script>/<style>/<svg> subtrees
// in place, depth-first.
func stripNonContent(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		switch {
		case c.Type == html.CommentNode:
			n.RemoveChild(c)
		case c.Type == html.ElementNode && (c.Data == "script" || c.Data == "style" || c.Data == "svg"):
			n.RemoveChild(c)
		default:
			stripNonContent(c)
		}
	}
}
