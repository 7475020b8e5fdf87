package convert

import (
	"regexp"
	"strings"

	"github.com/jomei/notionapi"
)

var markerToken = regexp.MustCompile(`\(marker:([a-z2-7]+)\)`)

// HostInfo identifies the persisted block a marker token's deferred
// subtree must be appended to: its store-assigned id, for AppendChildren,
// and the block value itself, so the rich-text-strip update after a
// successful append can build a type-correct BlockUpdateRequest.
type HostInfo struct {
	ID    string
	Block notionapi.Block
}

// ResolveHostIDs walks a BlockStore's echo of a persisted tree (the blocks
// CreatePage/AppendChildren returned, which carry store-assigned ids and
// the same nested Children the caller submitted) and returns a map from
// marker token to the HostInfo of the block whose rich text carries it.
// Callers pass this directly as Orchestrate's hosts argument.
func ResolveHostIDs(persisted []notionapi.Block) map[string]HostInfo {
	hosts := make(map[string]HostInfo)
	var walk func(notionapi.Block)
	walk = func(b notionapi.Block) {
		id, runs, children := blockFields(b)
		for _, r := range runs {
			if r.Text == nil {
				continue
			}
			for _, m := range markerToken.FindAllStringSubmatch(r.Text.Content, -1) {
				hosts[m[1]] = HostInfo{ID: id, Block: b}
			}
		}
		for _, c := range children {
			walk(c)
		}
	}
	for _, b := range persisted {
		walk(b)
	}
	return hosts
}

// StripMarker returns a copy of host's rich text with the given marker
// token's "(marker:XXXX)" substring removed, for the post-append update
// that leaves the host's visible text clean.
func StripMarker(host notionapi.Block, marker string) []notionapi.RichText {
	_, runs, _ := blockFields(host)
	token := "(marker:" + marker + ")"
	out := make([]notionapi.RichText, 0, len(runs))
	for _, r := range runs {
		if r.Text == nil || !strings.Contains(r.Text.Content, token) {
			out = append(out, r)
			continue
		}
		stripped := strings.Replace(r.Text.Content, " "+token, "", 1)
		stripped = strings.Replace(stripped, token, "", 1)
		if stripped == "" {
			continue
		}
		rt := r
		text := *r.Text
		text.Content = stripped
		rt.Text = &text
		out = append(out, rt)
	}
	return out
}

// blockFields extracts the id, rich text, and children of whichever
// concrete Block variant this store ever creates, mirroring the
// reference lineage's exhaustive block-type-switch pattern.
func blockFields(block notionapi.Block) (id string, runs []notionapi.RichText, children []notionapi.Block) {
	switch b := block.(type) {
	case *notionapi.ParagraphBlock:
		return string(b.ID), b.Paragraph.RichText, b.Paragraph.Children
	case *notionapi.Heading1Block:
		return string(b.ID), b.Heading1.RichText, b.Heading1.Children
	case *notionapi.Heading2Block:
		return string(b.ID), b.Heading2.RichText, b.Heading2.Children
	case *notionapi.Heading3Block:
		return string(b.ID), b.Heading3.RichText, b.Heading3.Children
	case *notionapi.BulletedListItemBlock:
		return string(b.ID), b.BulletedListItem.RichText, b.BulletedListItem.Children
	case *notionapi.NumberedListItemBlock:
		return string(b.ID), b.NumberedListItem.RichText, b.NumberedListItem.Children
	case *notionapi.ToDoBlock:
		return string(b.ID), b.ToDo.RichText, b.ToDo.Children
	case *notionapi.ToggleBlock:
		return string(b.ID), b.Toggle.RichText, b.Toggle.Children
	case *notionapi.CalloutBlock:
		return string(b.ID), b.Callout.RichText, b.Callout.Children
	case *notionapi.CodeBlock:
		return string(b.ID), b.Code.RichText, nil
	default:
		return "", nil, nil
	}
}
