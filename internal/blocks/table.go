package blocks

import (
	"regexp"

	"golang.org/x/net/html"

	"github.com/sn2notion/sn2notion/internal/convctx"
	"github.com/sn2notion/sn2notion/internal/htmldom"
	"github.com/sn2notion/sn2notion/internal/richtext"
)

func regexpMustCompileTableCaption() *regexp.Regexp {
	return regexp.MustCompile(`(?i)^Table\s+\d+\.\s*.+`)
}

// walkTable builds a Table block from a <table> element. Caption handling
// (the preceding "Table N." paragraph becoming a Heading) is done
// separately, by walkParagraph when it walks that paragraph; here we only
// fingerprint the table itself to suppress accidental re-emission.
func walkTable(conv *convctx.Conversion, n *html.Node, depth int) []*Block {
	id, _ := htmldom.Attr(n, "id")
	fp := fingerprint(id, htmldom.TextContent(n))
	if conv.SeenTableFingerprint("table:" + fp) {
		return nil
	}

	headerCells, bodyRows := tableRowsOf(n)

	width := 0
	if len(headerCells) > 0 {
		width = len(headerCells)
	} else if len(bodyRows) > 0 {
		width = len(bodyRows[0])
	}

	var sidecars []*Block
	var rows []TableRow

	addRow := func(cells []*html.Node) {
		row := TableRow{}
		for i, cell := range cells {
			if i >= width {
				break
			}
			cellRuns, extracted := tableCellContent(conv, cell, depth)
			row.Cells = append(row.Cells, cellRuns)
			sidecars = append(sidecars, extracted...)
		}
		for len(row.Cells) < width {
			row.Cells = append(row.Cells, nil)
		}
		rows = append(rows, row)
	}

	if len(headerCells) > 0 {
		addRow(headerCells)
	}
	for _, r := range bodyRows {
		addRow(r)
	}

	conv.Audit.RecordBlock(string(KindTable))
	tbl := &Block{
		Kind:            KindTable,
		TableWidth:      width,
		HasColumnHeader: len(headerCells) > 0,
		Rows:            rows,
	}
	return append([]*Block{tbl}, sidecars...)
}

// tableRowsOf collects the header row's cells (if any) separately from the
// body rows, handling <thead>/<tbody> wrappers or a bare sequence of <tr>.
func tableRowsOf(table *html.Node) (header []*html.Node, body [][]*html.Node) {
	var allRows []*html.Node
	hasThead := false

	var collect func(*html.Node)
	collect = func(n *html.Node) {
		for _, c := range htmldom.ElementChildren(n) {
			switch htmldom.TagName(c) {
			case "thead":
				hasThead = true
				for _, tr := range htmldom.FindAll(c, "tr") {
					header = cellsOf(tr)
				}
			case "tbody", "tfoot":
				for _, tr := range htmldom.FindAll(c, "tr") {
					allRows = append(allRows, tr)
				}
			case "tr":
				allRows = append(allRows, c)
			default:
				collect(c)
			}
		}
	}
	collect(table)

	if !hasThead && len(allRows) > 0 && rowIsAllHeaderCells(allRows[0]) {
		header = cellsOf(allRows[0])
		allRows = allRows[1:]
	}

	for _, tr := range allRows {
		body = append(body, cellsOf(tr))
	}
	return header, body
}

func rowIsAllHeaderCells(tr *html.Node) bool {
	cells := htmldom.ElementChildren(tr)
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		if htmldom.TagName(c) != "th" {
			return false
		}
	}
	return true
}

func cellsOf(tr *html.Node) []*html.Node {
	var out []*html.Node
	for _, c := range htmldom.ElementChildren(tr) {
		if htmldom.TagName(c) == "td" || htmldom.TagName(c) == "th" {
			out = append(out, c)
		}
	}
	return out
}

// tableCellPlaceholderText is the cell text that stands in for block
// content a Notion table cell can never hold — images, callouts, lists, or
// nested tables (§3, §8 invariant 7): tableCellContent replaces such
// content found in a source <td> with this run and re-emits it as a
// sibling block after the table.
var tableCellPlaceholderText = "[see below]"

func tableCellContent(conv *convctx.Conversion, cell *html.Node, depth int) ([]richtext.Run, []*Block) {
	if hoistable := htmldom.FindFirst(cell, "img"); hoistable != nil {
		extracted := WalkDOM(conv, []*html.Node{hoistable}, depth+1)
		return []richtext.Run{{Content: tableCellPlaceholderText}}, extracted
	}
	if hoistable := findFirstCallout(cell); hoistable != nil {
		extracted := WalkDOM(conv, []*html.Node{hoistable}, depth+1)
		return []richtext.Run{{Content: tableCellPlaceholderText}}, extracted
	}
	for _, tag := range []string{"table", "ul", "ol"} {
		if hoistable := htmldom.FindFirst(cell, tag); hoistable != nil {
			extracted := WalkDOM(conv, []*html.Node{hoistable}, depth+1)
			return []richtext.Run{{Content: tableCellPlaceholderText}}, extracted
		}
	}

	res := richtext.TokenizeRichText(conv, cell)
	return res.Runs, imagesAndMediaAsBlocks(conv, res)
}

// findFirstCallout returns the first descendant Classify identifies as a
// callout, depth-first — mirroring FindFirst's shape but keyed on
// Classify's class-based rule rather than a single tag name, since a
// callout is a div/section carrying one of several class keywords, not
// its own tag.
func findFirstCallout(n *html.Node) *html.Node {
	if Classify(n) == ekCallout {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := findFirstCallout(c); f != nil {
			return f
		}
	}
	return nil
}
