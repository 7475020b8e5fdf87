package blocks

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/sn2notion/sn2notion/internal/convctx"
	"github.com/sn2notion/sn2notion/internal/htmldom"
	"github.com/sn2notion/sn2notion/internal/richtext"
)

func walkStandaloneIframe(conv *convctx.Conversion, n *html.Node) []*Block {
	src, _ := htmldom.Attr(n, "src")
	if src == "" {
		return nil
	}
	kind := KindEmbed
	if isVideoHost(src) {
		kind = KindVideo
	}
	conv.Audit.RecordBlock(string(kind))
	return []*Block{{Kind: kind, URL: src}}
}

func isVideoHost(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, h := range []string{"youtube.com", "youtu.be", "vimeo.com", "wistia.com", "wistia.net", "loom.com", "brightcove.com", "vidyard.com"} {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

func walkStandaloneImage(conv *convctx.Conversion, n *html.Node) []*Block {
	src, _ := htmldom.Attr(n, "src")
	if src == "" || conv.SeenImageURL(src) {
		return nil
	}
	alt, _ := htmldom.Attr(n, "alt")
	var caption []richtext.Run
	if alt != "" {
		caption = []richtext.Run{{Content: alt}}
	}
	conv.Audit.RecordBlock(string(KindImage))
	return []*Block{{Kind: KindImage, Source: ImageSource{External: src}, Caption: caption}}
}

// walkDefinitionList renders each <dt> as a bold Paragraph and recurses
// into each <dd>.
func walkDefinitionList(conv *convctx.Conversion, n *html.Node, depth int) []*Block {
	var out []*Block
	for _, c := range htmldom.ElementChildren(n) {
		switch htmldom.TagName(c) {
		case "dt":
			res := richtext.TokenizeRichText(conv, c)
			for i := range res.Runs {
				res.Runs[i].Annotations.Bold = true
			}
			conv.Audit.RecordBlock(string(KindParagraph))
			out = append(out, &Block{Kind: KindParagraph, Runs: res.Runs})
			out = append(out, imagesAndMediaAsBlocks(conv, res)...)
		case "dd":
			out = append(out, WalkDOM(conv, htmldom.Children(c), depth)...)
		}
	}
	return out
}

// walkPrerequisite wraps a "Before you begin" section in a pushpin
// callout containing its text and nested blocks.
func walkPrerequisite(conv *convctx.Conversion, n *html.Node, depth int) []*Block {
	return wrapAsCallout(conv, n, depth, "📍", "default")
}

func wrapAsCallout(conv *convctx.Conversion, n *html.Node, depth int, icon, color string) []*Block {
	directNodes, nestedNodes, _ := splitListItemContent(n)
	res := richtext.TokenizeNodes(conv, directNodes)
	var children []*Block
	if len(nestedNodes) > 0 {
		children = WalkDOM(conv, nestedNodes, depth+1)
	}
	conv.Audit.RecordBlock(string(KindCallout))
	blk := &Block{Kind: KindCallout, Icon: icon, Color: color, Runs: res.Runs, Children: children}
	return append([]*Block{blk}, imagesAndMediaAsBlocks(conv, res)...)
}

// walkRelatedContent renders a "Related Content" nav/placeholder as a
// toggleable Heading whose children are the listed links, deferred via
// marker since toggleable headings hold children only through
// orchestration once depth requires it; here the children are attached
// directly and nesting enforcement decides whether they must defer.
func walkRelatedContent(conv *convctx.Conversion, n *html.Node) []*Block {
	if conv.SeenTableFingerprint("related-content") {
		return nil
	}
	conv.SeenTableFingerprint("related-content")

	conv.Audit.RecordBlock(string(KindHeading))
	heading := &Block{Kind: KindHeading, Level: 3, Toggleable: true, Runs: []richtext.Run{{Content: "Related Content"}}}

	var children []*Block
	for _, li := range htmldom.FindAll(n, "li") {
		res := richtext.TokenizeRichText(conv, li)
		conv.Audit.RecordBlock(string(KindBulleted))
		children = append(children, &Block{Kind: KindBulleted, Runs: res.Runs})
	}
	heading.Children = children

	return []*Block{heading}
}

func walkCallout(conv *convctx.Conversion, n *html.Node, depth int) []*Block {
	classes := htmldom.Classes(n)
	icon, color := calloutStyle(classes, "")
	return buildCalloutBlock(conv, n, depth, icon, color, nil)
}

// walkCalloutFromLabel handles a <p>/<div class="p"> beginning with an
// admonition label (Note:/Warning:/...), which is classified as a
// Callout even though it carries no dedicated callout class.
func walkCalloutFromLabel(conv *convctx.Conversion, n *html.Node, depth int, label string) []*Block {
	icon, color := calloutStyle(map[string]bool{}, label)
	return buildCalloutBlock(conv, n, depth, icon, color, nil)
}

// buildCalloutBlock flattens a nested callout (Notion disallows nested
// callouts) by concatenating the inner callout's text into the outer's
// runs, while the inner callout's own nested blocks still defer via
// marker at the nesting-enforcement stage.
func buildCalloutBlock(conv *convctx.Conversion, n *html.Node, depth int, icon, color string, inherited []richtext.Run) []*Block {
	directNodes, nestedNodes, _ := splitListItemContent(n)
	res := richtext.TokenizeNodes(conv, directNodes)
	runs := append(append([]richtext.Run{}, inherited...), res.Runs...)

	var children []*Block
	var sidecars []*Block
	for _, nn := range nestedNodes {
		if Classify(nn) == ekCallout {
			inner := buildCalloutBlock(conv, nn, depth+1, icon, color, nil)
			if len(inner) > 0 {
				runs = append(runs, inner[0].Runs...)
				children = append(children, inner[0].Children...)
				sidecars = append(sidecars, inner[1:]...)
			}
			continue
		}
		children = append(children, WalkDOM(conv, []*html.Node{nn}, depth+1)...)
	}

	conv.Audit.RecordBlock(string(KindCallout))
	blk := &Block{Kind: KindCallout, Icon: icon, Color: color, Runs: runs, Children: children}
	out := append([]*Block{blk}, imagesAndMediaAsBlocks(conv, res)...)
	return append(out, sidecars...)
}
