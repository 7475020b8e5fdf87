package blocks

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"golang.org/x/net/html"

	"github.com/sn2notion/sn2notion/internal/convctx"
	"github.com/sn2notion/sn2notion/internal/htmldom"
	"github.com/sn2notion/sn2notion/internal/richtext"
)

// tableCaptionPattern recognizes a standalone "Table N. Title" caption
// paragraph that precedes (or, duplicated, appears elsewhere after) a
// <table>.
var tableCaptionPattern = regexpMustCompileTableCaption()

// WalkTopLevel is the entry point Convert calls with the document's
// top-level nodes. Per §6's strictSourceOrder option: when set, it is a
// plain depth-first walk in literal document order. When unset (the
// default), it collects content section by section first — every
// top-level <section>/<article> is walked to completion before any
// top-level content that sits outside a section wrapper, since that
// stray content is typically boilerplate (trailing scripts-turned-text,
// orphaned captions) that reads better appended after the document body
// than interleaved with it. The two modes agree whenever top-level
// content consists entirely of (or entirely lacks) section wrappers,
// which is the common case; they diverge only for documents mixing both.
func WalkTopLevel(conv *convctx.Conversion, nodes []*html.Node, depth int) []*Block {
	if conv.Options.StrictSourceOrder {
		return WalkDOM(conv, nodes, depth)
	}

	var sections, stray []*html.Node
	for _, n := range nodes {
		if n.Type == html.ElementNode && (htmldom.TagName(n) == "section" || htmldom.TagName(n) == "article") {
			sections = append(sections, n)
		} else {
			stray = append(stray, n)
		}
	}
	if len(sections) == 0 || len(stray) == 0 {
		return WalkDOM(conv, nodes, depth)
	}

	out := WalkDOM(conv, sections, depth)
	return append(out, WalkDOM(conv, stray, depth)...)
}

// WalkDOM recursively extracts an ordered block stream from nodes, the
// normalized top-level (or container) children being walked. depth starts
// at 0 for the document root; each level of Children nesting increases it
// by one.
func WalkDOM(conv *convctx.Conversion, nodes []*html.Node, depth int) []*Block {
	var out []*Block
	var pendingText []*html.Node

	flushText := func() {
		if len(pendingText) == 0 {
			return
		}
		out = append(out, paragraphFrom(conv, pendingText)...)
		pendingText = nil
	}

	for i := 0; i < len(nodes); i++ {
		n := nodes[i]
		switch n.Type {
		case html.TextNode:
			if !htmldom.IsBlank(n) {
				pendingText = append(pendingText, n)
			}
		case html.ElementNode:
			kind := Classify(n)
			if kind == ekTransparent {
				// Text before a transparent wrapper is not "before a
				// block child" in the sense §4.4 describes (transparent
				// wrappers carry no block identity of their own), so
				// just recurse into its children in place.
				flushText()
				out = append(out, WalkDOM(conv, htmldom.Children(n), depth)...)
				continue
			}
			// A "Related Content" heading followed by a list is one
			// related-content block: the list's links become its children.
			if kind == ekHeading && strings.EqualFold(strings.TrimSpace(htmldom.TextContent(n)), "related content") {
				j := i + 1
				for j < len(nodes) && nodes[j].Type == html.TextNode && htmldom.IsBlank(nodes[j]) {
					j++
				}
				if j < len(nodes) && Classify(nodes[j]) == ekList {
					flushText()
					out = append(out, walkRelatedContent(conv, nodes[j])...)
					i = j
					continue
				}
			}
			flushText()
			out = append(out, dispatch(conv, n, kind, depth)...)
		}
	}
	flushText()

	return out
}

func paragraphFrom(conv *convctx.Conversion, nodes []*html.Node) []*Block {
	res := richtext.TokenizeNodes(conv, nodes)
	blocks := imagesAndMediaAsBlocks(conv, res)
	if len(res.Runs) > 0 {
		blocks = append(splitRunsIntoBlocks(conv, KindParagraph, res.Runs), blocks...)
	}
	return blocks
}

// splitRunsIntoBlocks packages runs into one or more sibling blocks of
// kind k, respecting the per-block run-count cap.
func splitRunsIntoBlocks(conv *convctx.Conversion, k Kind, runs []richtext.Run) []*Block {
	max := conv.Options.MaxRichTextRuns
	if max <= 0 {
		max = 100
	}
	if len(runs) == 0 {
		return []*Block{{Kind: k, Runs: nil}}
	}
	var out []*Block
	for len(runs) > 0 {
		n := len(runs)
		if n > max {
			n = max
		}
		out = append(out, &Block{Kind: k, Runs: runs[:n]})
		runs = runs[n:]
	}
	return out
}

func imagesAndMediaAsBlocks(conv *convctx.Conversion, res richtext.Result) []*Block {
	var out []*Block
	for _, img := range res.Images {
		if b := imageBlockFrom(conv, img); b != nil {
			out = append(out, b)
		}
	}
	for _, m := range res.Media {
		if m.Kind == richtext.MediaVideo {
			out = append(out, &Block{Kind: KindVideo, URL: m.URL})
		} else {
			out = append(out, &Block{Kind: KindEmbed, URL: m.URL})
		}
	}
	return out
}

func imageBlockFrom(conv *convctx.Conversion, img richtext.Image) *Block {
	if conv.SeenImageURL(img.SourceURL) {
		return nil
	}
	var caption []richtext.Run
	if img.Alt != "" {
		caption = []richtext.Run{{Content: img.Alt}}
	}
	return &Block{
		Kind:    KindImage,
		Source:  ImageSource{External: img.SourceURL},
		Caption: caption,
	}
}

func dispatch(conv *convctx.Conversion, n *html.Node, kind elementKind, depth int) []*Block {
	switch kind {
	case ekHeading:
		return walkHeading(conv, n, depth)
	case ekParagraph:
		return walkParagraph(conv, n, depth)
	case ekList:
		return walkList(conv, n, depth)
	case ekTable:
		return walkTable(conv, n, depth)
	case ekCode:
		return walkCode(conv, n)
	case ekFigure:
		return walkFigure(conv, n, depth)
	case ekIframe:
		return walkStandaloneIframe(conv, n)
	case ekImage:
		return walkStandaloneImage(conv, n)
	case ekDefinitionList:
		return walkDefinitionList(conv, n, depth)
	case ekPrerequisite:
		return walkPrerequisite(conv, n, depth)
	case ekRelatedContent:
		return walkRelatedContent(conv, n)
	case ekCallout:
		return walkCallout(conv, n, depth)
	case ekSuppressed:
		return nil
	default:
		return WalkDOM(conv, htmldom.Children(n), depth)
	}
}

func walkHeading(conv *convctx.Conversion, n *html.Node, depth int) []*Block {
	level := htmldom.HeadingLevel(n)
	if level > 3 {
		level = 3
	}
	res := richtext.TokenizeRichText(conv, n)
	conv.Audit.RecordBlock(string(KindHeading))
	blk := &Block{Kind: KindHeading, Level: level, Runs: res.Runs}
	return append([]*Block{blk}, imagesAndMediaAsBlocks(conv, res)...)
}

func walkParagraph(conv *convctx.Conversion, n *html.Node, depth int) []*Block {
	text := htmldom.TextContent(n)
	if m := admonitionLabel.FindStringSubmatch(text); m != nil {
		return walkCalloutFromLabel(conv, n, depth, m[1])
	}

	if captioned, ok := tableCaptionFor(conv, n); ok {
		return captioned
	}

	res := richtext.TokenizeRichText(conv, n)
	out := splitRunsIntoBlocks(conv, KindParagraph, res.Runs)
	for range out {
		conv.Audit.RecordBlock(string(KindParagraph))
	}
	return append(out, imagesAndMediaAsBlocks(conv, res)...)
}

func tableCaptionFor(conv *convctx.Conversion, n *html.Node) ([]*Block, bool) {
	text := strings.TrimSpace(htmldom.TextContent(n))
	if !tableCaptionPattern.MatchString(text) {
		return nil, false
	}
	fp := fingerprint("", text)
	if conv.SeenTableFingerprint("caption:" + fp) {
		// A duplicate "Table N." caption elsewhere in the document is
		// suppressed; its text still reads fine as a plain paragraph if
		// no table follows, but per the spec the duplicate is dropped.
		return []*Block{}, true
	}
	res := richtext.TokenizeRichText(conv, n)
	conv.Audit.RecordBlock(string(KindHeading))
	return []*Block{{Kind: KindHeading, Level: 3, Runs: res.Runs}}, true
}

func fingerprint(id, text string) string {
	h := sha1.New()
	h.Write([]byte(id))
	h.Write([]byte("|"))
	if len(text) > 100 {
		text = text[:100]
	}
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
