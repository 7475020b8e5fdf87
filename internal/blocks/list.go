package blocks

import (
	"golang.org/x/net/html"

	"github.com/sn2notion/sn2notion/internal/convctx"
	"github.com/sn2notion/sn2notion/internal/htmldom"
	"github.com/sn2notion/sn2notion/internal/richtext"
)

// walkList expands a <ul>/<ol> into a sequence of sibling list-item
// blocks, one per <li>, splitting any item whose rich-text run count would
// exceed the configured cap into sibling items of the same kind.
func walkList(conv *convctx.Conversion, n *html.Node, depth int) []*Block {
	ordered := htmldom.TagName(n) == "ol"

	var out []*Block
	for _, li := range htmldom.ElementChildren(n) {
		if htmldom.TagName(li) != "li" {
			continue
		}
		out = append(out, buildListItem(conv, li, depth+1, ordered)...)
	}
	return out
}

func itemKindFor(li *html.Node, ordered bool) Kind {
	if cb := htmldom.FindFirst(li, "input"); cb != nil {
		if t, _ := htmldom.Attr(cb, "type"); t == "checkbox" {
			return KindToDo
		}
	}
	if ordered {
		return KindNumbered
	}
	return KindBulleted
}

// buildListItem implements the list-item state machine: Start -> HasText?
// -> HasNestedBlocks? -> FirstNestedIsPromotableParagraph? -> Done.
func buildListItem(conv *convctx.Conversion, li *html.Node, depth int, ordered bool) []*Block {
	kind := itemKindFor(li, ordered)
	directNodes, nestedNodes, firstFromStepxmp := splitListItemContent(li)

	res := richtext.TokenizeNodes(conv, directNodes)
	runs := res.Runs
	sidecars := imagesAndMediaAsBlocks(conv, res)

	var nested []*Block
	if len(nestedNodes) > 0 {
		nested = WalkDOM(conv, nestedNodes, depth)
	}

	if len(runs) == 0 && len(nested) > 0 && nested[0].Kind == KindParagraph && !firstFromStepxmp {
		runs = nested[0].Runs
		nested = nested[1:]
	}

	checked := false
	if kind == KindToDo {
		checked = isTaskChecked(li)
	}

	conv.Audit.RecordBlock(string(kind))
	items := splitListItemRuns(conv, kind, runs, nested, checked)
	return append(items, sidecars...)
}

// splitListItemRuns packages runs (and, on the first resulting item,
// children) honoring the run-count cap: an item with >100 formatting runs
// becomes sibling items of the same kind, text split accordingly, the
// first carrying the item's children.
func splitListItemRuns(conv *convctx.Conversion, kind Kind, runs []richtext.Run, children []*Block, checked bool) []*Block {
	max := conv.Options.MaxRichTextRuns
	if max <= 0 {
		max = 100
	}
	if len(runs) <= max {
		return []*Block{{Kind: kind, Runs: runs, Children: children, Checked: checked}}
	}

	var out []*Block
	first := true
	for len(runs) > 0 {
		n := len(runs)
		if n > max {
			n = max
		}
		blk := &Block{Kind: kind, Runs: runs[:n], Checked: checked}
		if first {
			blk.Children = children
			first = false
		}
		out = append(out, blk)
		runs = runs[n:]
	}
	return out
}

func isTaskChecked(li *html.Node) bool {
	cb := htmldom.FindFirst(li, "input")
	if cb == nil {
		return false
	}
	_, checked := htmldom.Attr(cb, "checked")
	return checked
}

// isNestedBlockKind classifies which element kinds count as "nested
// blocks" (vs. direct inline content) when splitting a list item's
// children.
func isNestedBlockKind(k elementKind) bool {
	switch k {
	case ekList, ekTable, ekParagraph, ekCode, ekFigure, ekDefinitionList,
		ekPrerequisite, ekCallout, ekHeading, ekRelatedContent:
		return true
	default:
		return false
	}
}

// splitListItemContent separates a list item's children into direct
// inline content (text and inline-formatting elements, tokenized directly
// into the item's own runs) and nested block-level children. Transparent
// wrapper divs (itemgroup) are flattened one level so their contents
// participate in the same classification; a stepxmp wrapper is kept
// intact (not flattened) so its first child is never eligible for
// paragraph promotion.
func splitListItemContent(n *html.Node) (direct []*html.Node, nested []*html.Node, firstFromStepxmp bool) {
	first := true
	for _, c := range htmldom.Children(n) {
		switch c.Type {
		case html.TextNode:
			direct = append(direct, c)
		case html.ElementNode:
			kind := Classify(c)
			switch {
			case isNestedBlockKind(kind):
				if first {
					firstFromStepxmp = false
				}
				nested = append(nested, c)
				first = false
			case kind == ekTransparent && htmldom.HasClass(c, "stepxmp"):
				if first {
					firstFromStepxmp = true
				}
				nested = append(nested, c)
				first = false
			case kind == ekTransparent && htmldom.TagName(c) == "div":
				d2, n2, stepFlag := splitListItemContent(c)
				direct = append(direct, d2...)
				if first && len(n2) > 0 {
					firstFromStepxmp = stepFlag
					first = false
				} else if len(n2) > 0 {
					first = false
				}
				nested = append(nested, n2...)
			default:
				direct = append(direct, c)
			}
		}
	}
	return direct, nested, firstFromStepxmp
}
