package convert

import (
	"github.com/jomei/notionapi"

	"github.com/sn2notion/sn2notion/internal/blocks"
	"github.com/sn2notion/sn2notion/internal/richtext"
)

// wireRichText converts a run slice to the notionapi rich-text wire shape.
// Every run in the core's internal representation is a plain text span
// (no mentions/equations), mirroring the transform path this codebase's
// reference lineage uses for its own rich-text construction.
func wireRichText(runs []richtext.Run) []notionapi.RichText {
	if len(runs) == 0 {
		return nil
	}
	out := make([]notionapi.RichText, 0, len(runs))
	for _, r := range runs {
		rt := notionapi.RichText{
			Type:        notionapi.ObjectTypeText,
			Text:        &notionapi.Text{Content: r.Content},
			Annotations: wireAnnotations(r.Annotations),
		}
		if r.Link != "" {
			rt.Text.Link = &notionapi.Link{Url: r.Link}
		}
		out = append(out, rt)
	}
	return out
}

func wireAnnotations(a richtext.Annotations) *notionapi.Annotations {
	out := &notionapi.Annotations{
		Bold:          a.Bold,
		Italic:        a.Italic,
		Strikethrough: a.Strikethrough,
		Underline:     a.Underline,
		Code:          a.Code,
	}
	if a.Color != "" {
		out.Color = notionapi.Color(a.Color)
	}
	return out
}

func basicBlock(t notionapi.BlockType) notionapi.BasicBlock {
	return notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: t}
}

// WireBlocks serializes a slice of the core's internal Block values,
// along with each one's already-nested children, into notionapi.Block
// values ready for BlockStore.CreatePage / AppendChildren. It does not
// look at Marker: by the time a payload reaches here, Collect & Emit has
// already removed every marker-tagged block from Children.
func WireBlocks(in []*blocks.Block) []notionapi.Block {
	if len(in) == 0 {
		return nil
	}
	out := make([]notionapi.Block, 0, len(in))
	for _, b := range in {
		if w := WireBlock(b); w != nil {
			out = append(out, w)
		}
	}
	return out
}

// WireBlock serializes one Block, recursing into Children where the
// target kind supports them.
func WireBlock(b *blocks.Block) notionapi.Block {
	switch b.Kind {
	case blocks.KindParagraph:
		return &notionapi.ParagraphBlock{
			BasicBlock: basicBlock(notionapi.BlockTypeParagraph),
			Paragraph: notionapi.Paragraph{
				RichText: wireRichText(b.Runs),
				Children: WireBlocks(b.Children),
			},
		}
	case blocks.KindHeading:
		return wireHeading(b)
	case blocks.KindBulleted:
		return &notionapi.BulletedListItemBlock{
			BasicBlock: basicBlock(notionapi.BlockTypeBulletedListItem),
			BulletedListItem: notionapi.ListItem{
				RichText: wireRichText(b.Runs),
				Children: WireBlocks(b.Children),
			},
		}
	case blocks.KindNumbered:
		return &notionapi.NumberedListItemBlock{
			BasicBlock: basicBlock(notionapi.BlockTypeNumberedListItem),
			NumberedListItem: notionapi.ListItem{
				RichText: wireRichText(b.Runs),
				Children: WireBlocks(b.Children),
			},
		}
	case blocks.KindToDo:
		return &notionapi.ToDoBlock{
			BasicBlock: basicBlock(notionapi.BlockTypeToDo),
			ToDo: notionapi.ToDo{
				RichText: wireRichText(b.Runs),
				Checked:  b.Checked,
				Children: WireBlocks(b.Children),
			},
		}
	case blocks.KindToggle:
		return &notionapi.ToggleBlock{
			BasicBlock: basicBlock(notionapi.BlockTypeToggle),
			Toggle: notionapi.Toggle{
				RichText: wireRichText(b.Runs),
				Children: WireBlocks(b.Children),
			},
		}
	case blocks.KindCallout:
		return wireCallout(b)
	case blocks.KindCode:
		return &notionapi.CodeBlock{
			BasicBlock: basicBlock(notionapi.BlockTypeCode),
			Code: notionapi.Code{
				Language: wireLanguage(b.Language),
				RichText: wireRichText(b.Runs),
			},
		}
	case blocks.KindImage:
		return wireImage(b)
	case blocks.KindTable:
		return wireTable(b)
	case blocks.KindVideo:
		return &notionapi.VideoBlock{
			BasicBlock: basicBlock(notionapi.BlockTypeVideo),
			Video: notionapi.Video{
				Type:     notionapi.FileTypeExternal,
				External: &notionapi.FileObject{URL: b.URL},
			},
		}
	case blocks.KindEmbed:
		return &notionapi.EmbedBlock{
			BasicBlock: basicBlock(notionapi.BlockTypeEmbed),
			Embed:      notionapi.Embed{URL: b.URL},
		}
	default:
		return nil
	}
}

func wireLanguage(lang string) string {
	if lang == "" {
		return "plain text"
	}
	return lang
}

func wireHeading(b *blocks.Block) notionapi.Block {
	level := b.Level
	if level < 1 {
		level = 1
	}
	if level > 3 {
		level = 3
	}
	h := notionapi.Heading{
		RichText:     wireRichText(b.Runs),
		IsToggleable: b.Toggleable,
	}
	var children []notionapi.Block
	if b.Toggleable {
		children = WireBlocks(b.Children)
	}
	switch level {
	case 1:
		h.Children = children
		return &notionapi.Heading1Block{BasicBlock: basicBlock(notionapi.BlockTypeHeading1), Heading1: h}
	case 2:
		h.Children = children
		return &notionapi.Heading2Block{BasicBlock: basicBlock(notionapi.BlockTypeHeading2), Heading2: h}
	default:
		h.Children = children
		return &notionapi.Heading3Block{BasicBlock: basicBlock(notionapi.BlockTypeHeading3), Heading3: h}
	}
}

// wireCallout serializes a Callout block. Notion disallows nested
// callouts, but the walker has already flattened those before this stage
// ever sees them (see blocks.buildCalloutBlock); any remaining children
// here are non-callout subtrees, carried straight through.
func wireCallout(b *blocks.Block) notionapi.Block {
	icon := notionapi.Emoji(b.Icon)
	color := notionapi.Color(b.Color)
	return &notionapi.CalloutBlock{
		BasicBlock: basicBlock(notionapi.BlockTypeCallout),
		Callout: notionapi.Callout{
			RichText: wireRichText(b.Runs),
			Icon:     &notionapi.Icon{Type: "emoji", Emoji: &icon},
			Color:    color,
			Children: WireBlocks(b.Children),
		},
	}
}

// wireImage serializes an Image block. Both tags of the internal
// ImageSource union resolve to an external-type image: ImageUploader's
// upload-id result is itself a servable URL (the reference lineage's
// own image handling never goes further than external URLs either,
// falling back to a placeholder callout rather than a native upload
// block when a URL isn't usable), so there is no separate wire shape to
// fabricate for the upload-id case.
func wireImage(b *blocks.Block) notionapi.Block {
	url := b.Source.External
	if url == "" {
		url = b.Source.UploadID
	}
	return &notionapi.ImageBlock{
		BasicBlock: basicBlock(notionapi.BlockTypeImage),
		Image: notionapi.Image{
			Type:     notionapi.FileTypeExternal,
			External: &notionapi.FileObject{URL: url},
			Caption:  wireRichText(b.Caption),
		},
	}
}

func wireTable(b *blocks.Block) notionapi.Block {
	rows := make([]notionapi.Block, 0, len(b.Rows))
	for _, r := range b.Rows {
		cells := make([][]notionapi.RichText, 0, len(r.Cells))
		for _, c := range r.Cells {
			cells = append(cells, wireRichText(c))
		}
		rows = append(rows, &notionapi.TableRowBlock{
			BasicBlock: basicBlock(notionapi.BlockTypeTableRowBlock),
			TableRow:   notionapi.TableRow{Cells: cells},
		})
	}
	return &notionapi.TableBlock{
		BasicBlock: basicBlock(notionapi.BlockTypeTableBlock),
		Table: notionapi.Table{
			TableWidth:      b.TableWidth,
			HasColumnHeader: b.HasColumnHeader,
			HasRowHeader:    false,
			Children:        rows,
		},
	}
}
