// Package richtext implements ClassifyInline and TokenizeRichText: turning
// an inline HTML fragment into annotated text runs plus any images or
// embeds that must be extracted as sibling blocks.
package richtext

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/sn2notion/sn2notion/internal/convctx"
	"github.com/sn2notion/sn2notion/internal/htmldom"
)

// Annotations is the formatting flag set carried by a Run.
type Annotations struct {
	Bold          bool
	Italic        bool
	Strikethrough bool
	Underline     bool
	Code          bool
	Color         string // "" means default
}

// Run is one annotated text span.
type Run struct {
	Content     string
	Annotations Annotations
	Link        string
}

// Image is an <img> extracted from inline content, to be emitted as a
// sibling Image block.
type Image struct {
	SourceURL string
	Alt       string
	Width     int
	Height    int
}

// MediaKind distinguishes a recognized video embed from a generic embed.
type MediaKind int

const (
	MediaVideo MediaKind = iota
	MediaEmbed
)

// Media is an <iframe> extracted from inline content.
type Media struct {
	Kind MediaKind
	URL  string
}

// Result is TokenizeRichText's output.
type Result struct {
	Runs   []Run
	Images []Image
	Media  []Media
}

// videoHosts recognizes known video-embed providers; anything else
// extracted from an <iframe> becomes a generic Embed.
var videoHosts = []string{
	"youtube.com", "youtu.be", "vimeo.com", "wistia.com", "wistia.net",
	"loom.com", "brightcove.com", "vidyard.com",
}

func classifyIframeHost(rawURL string) MediaKind {
	lower := strings.ToLower(rawURL)
	for _, h := range videoHosts {
		if strings.Contains(lower, h) {
			return MediaVideo
		}
	}
	return MediaEmbed
}

var urlPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
var technicalIdentifier = regexp.MustCompile(`^[A-Za-z0-9]+(?:[._][A-Za-z0-9]+)+$`)
var embeddedIdentifier = regexp.MustCompile(`\b[A-Za-z0-9]+(?:[._][A-Za-z0-9]+)+\b`)
var roleListLabel = regexp.MustCompile(`(?i)role required:\s*`)
var whitespaceRun = regexp.MustCompile(`[ \t]+`)
var blankLines = regexp.MustCompile(`\n{2,}`)

func looksLikeURL(s string) bool { return urlPattern.MatchString(strings.TrimSpace(s)) }

func looksLikeTechnicalIdentifier(s string) bool {
	return technicalIdentifier.MatchString(strings.TrimSpace(s))
}

// normalizeHref rewrites a site-relative href to its absolute form and
// reports whether the result is a usable link.
func normalizeHref(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	if strings.HasPrefix(href, "/") {
		href = "https://www.servicenow.com" + href
	}
	if !urlPattern.MatchString(href) {
		return "", false
	}
	return href, true
}

// builder accumulates runs while walking inline content with an active
// annotation stack.
type builder struct {
	conv   *convctx.Conversion
	runs   []Run
	images []Image
	media  []Media
}

// TokenizeRichText walks the children of node (an element whose inline
// content is being extracted) and produces ordered annotated runs plus any
// images/embeds found within, per the documented algorithm: whitespace
// normalization, iframe/img extraction, ClassifyInline annotation mapping,
// technical-identifier heuristics, run splitting at the configured limits,
// and placeholder restoration.
func TokenizeRichText(conv *convctx.Conversion, node *html.Node) Result {
	return TokenizeNodes(conv, htmldom.Children(node))
}

// TokenizeNodes is the general form of TokenizeRichText: it tokenizes an
// arbitrary slice of sibling nodes (text and/or elements) rather than
// requiring them to share a single live parent. WalkDOM uses this for
// mixed inline/block runs of text that aren't already collected under one
// container element.
func TokenizeNodes(conv *convctx.Conversion, nodes []*html.Node) Result {
	b := &builder{conv: conv}
	b.walkInline(nodes, Annotations{}, "")
	b.applyIdentifierHeuristics()
	b.mergeAdjacent()
	runs := b.splitOverlong(conv.Options.MaxContentChars)
	runs = restorePlaceholdersIn(conv, runs)

	return Result{Runs: runs, Images: b.images, Media: b.media}
}

func restorePlaceholdersIn(conv *convctx.Conversion, runs []Run) []Run {
	for i := range runs {
		runs[i].Content = conv.RestorePlaceholders(runs[i].Content)
	}
	return runs
}

func (b *builder) emit(text string, ann Annotations, link string) {
	text = normalizeWhitespace(text)
	if text == "" {
		return
	}
	b.runs = append(b.runs, Run{Content: text, Annotations: ann, Link: link})
}

func normalizeWhitespace(s string) string {
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n")
	return s
}

// walkInline recursively classifies each node in nodes per ClassifyInline,
// threading the active annotation set and active link down the tree.
func (b *builder) walkInline(nodes []*html.Node, ann Annotations, link string) {
	for _, c := range nodes {
		switch c.Type {
		case html.TextNode:
			b.emit(c.Data, ann, link)
		case html.ElementNode:
			b.walkElement(c, ann, link)
		}
	}
}

func (b *builder) walkChildrenOf(n *html.Node, ann Annotations, link string) {
	b.walkInline(htmldom.Children(n), ann, link)
}

func (b *builder) walkElement(n *html.Node, ann Annotations, link string) {
	tag := htmldom.TagName(n)
	classes := htmldom.Classes(n)

	switch tag {
	case "strong", "b":
		ann.Bold = true
		b.walkChildrenOf(n, ann, link)
		return
	case "em", "i", "dfn":
		ann.Italic = true
		b.walkChildrenOf(n, ann, link)
		return
	case "s", "strike", "del":
		ann.Strikethrough = true
		b.walkChildrenOf(n, ann, link)
		return
	case "u", "ins":
		ann.Underline = true
		b.walkChildrenOf(n, ann, link)
		return
	case "code", "samp":
		ann.Code = true
		b.emit(strings.TrimSpace(htmldom.TextContent(n)), ann, link)
		return
	case "kbd":
		content := htmldom.TextContent(n)
		if looksLikeURL(content) || looksLikeTechnicalIdentifier(strings.TrimSpace(content)) {
			ann.Code = true
		} else {
			ann.Bold = true
		}
		b.emit(content, ann, link)
		return
	case "a":
		if href, ok := htmldom.Attr(n, "href"); ok {
			if abs, usable := normalizeHref(href); usable {
				link = abs
			}
		}
		b.walkChildrenOf(n, ann, link)
		return
	case "br":
		b.emit("\n", ann, link)
		return
	case "abbr":
		b.walkChildrenOf(n, ann, link)
		return
	case "span":
		switch {
		case classes["uicontrol"]:
			ann.Bold = true
			ann.Color = "blue"
			b.emit(htmldom.TextContent(n), ann, link)
			return
		case classes["ph"] && classes["sectiontitle"] && classes["tasklabel"]:
			ann.Bold = true
			b.emit(htmldom.TextContent(n), ann, link)
			return
		case classes["keyword"], classes["parmname"], classes["codeph"]:
			ann.Code = true
			b.emit(htmldom.TextContent(n), ann, link)
			return
		default:
			// class="ph" alone, or any other unrecognized span, is
			// transparent: strip the tag, keep walking so identifier
			// heuristics still see the plain text.
			b.walkChildrenOf(n, ann, link)
			return
		}
	case "img":
		b.extractImage(n)
		return
	case "iframe":
		b.extractIframe(n)
		return
	default:
		b.walkChildrenOf(n, ann, link)
		return
	}
}

func (b *builder) extractImage(n *html.Node) {
	src, _ := htmldom.Attr(n, "src")
	if src == "" {
		return
	}
	alt, _ := htmldom.Attr(n, "alt")
	w := attrInt(n, "width")
	h := attrInt(n, "height")
	minDim := b.conv.Options.ImageMinDimension
	if w > 0 && h > 0 && (w < minDim || h < minDim) {
		return
	}
	b.images = append(b.images, Image{SourceURL: src, Alt: alt, Width: w, Height: h})
}

func (b *builder) extractIframe(n *html.Node) {
	src, _ := htmldom.Attr(n, "src")
	if src == "" {
		return
	}
	b.media = append(b.media, Media{Kind: classifyIframeHost(src), URL: src})
}

func attrInt(n *html.Node, key string) int {
	v, ok := htmldom.Attr(n, key)
	if !ok {
		return 0
	}
	n2 := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return 0
		}
		n2 = n2*10 + int(r-'0')
	}
	return n2
}

// applyIdentifierHeuristics wraps bare technical identifiers in
// uncoded text runs as inline code, and does the same for each role name
// listed after a "Role required:" label.
func (b *builder) applyIdentifierHeuristics() {
	var out []Run
	for _, r := range b.runs {
		if r.Annotations.Code {
			out = append(out, r)
			continue
		}
		out = append(out, splitIdentifiers(r)...)
	}
	b.runs = out
}

func splitIdentifiers(r Run) []Run {
	if r.Link != "" {
		// Anchor text is never reinterpreted as a bare identifier.
		return []Run{r}
	}

	if loc := roleListLabel.FindStringIndex(r.Content); loc != nil {
		label := r.Content[:loc[1]]
		rest := r.Content[loc[1]:]
		out := []Run{{Content: label, Annotations: r.Annotations, Link: r.Link}}
		out = append(out, splitRoleList(rest, r.Annotations, r.Link)...)
		return out
	}

	matches := embeddedIdentifier.FindAllStringIndex(r.Content, -1)
	if len(matches) == 0 {
		return []Run{r}
	}

	codeAnn := r.Annotations
	codeAnn.Code = true

	var out []Run
	cursor := 0
	for _, m := range matches {
		if m[0] > cursor {
			out = append(out, Run{Content: r.Content[cursor:m[0]], Annotations: r.Annotations, Link: r.Link})
		}
		out = append(out, Run{Content: r.Content[m[0]:m[1]], Annotations: codeAnn, Link: r.Link})
		cursor = m[1]
	}
	if cursor < len(r.Content) {
		out = append(out, Run{Content: r.Content[cursor:], Annotations: r.Annotations, Link: r.Link})
	}
	return out
}

func splitRoleList(s string, ann Annotations, link string) []Run {
	sep := regexp.MustCompile(`\s*,\s*|\s+or\s+`)
	parts := sep.Split(strings.TrimSpace(s), -1)
	var out []Run
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i > 0 {
			out = append(out, Run{Content: ", ", Annotations: ann, Link: link})
		}
		codeAnn := ann
		codeAnn.Code = true
		out = append(out, Run{Content: p, Annotations: codeAnn, Link: link})
	}
	if len(out) == 0 {
		return []Run{{Content: s, Annotations: ann, Link: link}}
	}
	return out
}

// mergeAdjacent coalesces consecutive runs sharing identical annotations
// and link, keeping the run count tight against the 100-run cap.
func (b *builder) mergeAdjacent() {
	if len(b.runs) == 0 {
		return
	}
	out := b.runs[:1]
	for _, r := range b.runs[1:] {
		last := &out[len(out)-1]
		if last.Annotations == r.Annotations && last.Link == r.Link {
			last.Content += r.Content
			continue
		}
		out = append(out, r)
	}
	b.runs = out
}

// splitOverlong breaks any run exceeding maxChars at a safe boundary
// (preferring a newline, else a word break), preserving annotations.
func (b *builder) splitOverlong(maxChars int) []Run {
	if maxChars <= 0 {
		maxChars = 2000
	}
	var out []Run
	for _, r := range b.runs {
		out = append(out, splitRun(r, maxChars)...)
	}
	return out
}

func splitRun(r Run, maxChars int) []Run {
	content := []rune(r.Content)
	if len(content) <= maxChars {
		return []Run{r}
	}
	var out []Run
	for len(content) > maxChars {
		cut := findSplitPoint(content, maxChars)
		out = append(out, Run{Content: string(content[:cut]), Annotations: r.Annotations, Link: r.Link})
		content = content[cut:]
	}
	if len(content) > 0 {
		out = append(out, Run{Content: string(content), Annotations: r.Annotations, Link: r.Link})
	}
	return out
}

// findSplitPoint finds a cut index <= maxChars, preferring the last
// newline, then the last space, falling back to a hard cut.
func findSplitPoint(content []rune, maxChars int) int {
	for i := maxChars; i > maxChars/2; i-- {
		if content[i-1] == '\n' {
			return i
		}
	}
	for i := maxChars; i > maxChars/2; i-- {
		if content[i-1] == ' ' {
			return i
		}
	}
	return maxChars
}
