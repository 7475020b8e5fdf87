// Package blocks implements ClassifyBlock and WalkDOM: turning a
// normalized DOM into an ordered tree of target blocks, and the in-memory
// Block representation those blocks live in until they're serialized to
// the target wire model.
package blocks

import "github.com/sn2notion/sn2notion/internal/richtext"

// Kind tags the variant a Block represents.
type Kind string

const (
	KindParagraph Kind = "paragraph"
	KindHeading   Kind = "heading"
	KindBulleted  Kind = "bulleted_list_item"
	KindNumbered  Kind = "numbered_list_item"
	KindToDo      Kind = "to_do"
	KindToggle    Kind = "toggle"
	KindCallout   Kind = "callout"
	KindCode      Kind = "code"
	KindImage     Kind = "image"
	KindTable     Kind = "table"
	KindVideo     Kind = "video"
	KindEmbed     Kind = "embed"
)

// ImageSource is a tagged union: exactly one of UploadID or External is set.
type ImageSource struct {
	UploadID string
	External string
}

// TableRow holds one row's cells, each a run slice; every row in a Table
// has exactly Table.Width cells.
type TableRow struct {
	Cells [][]richtext.Run
}

// Block is the tagged-union in-memory representation of one target block.
// Only the fields relevant to Kind are meaningful; the zero value of the
// others is ignored during serialization.
type Block struct {
	Kind Kind

	Runs     []richtext.Run
	Children []*Block

	// Marker, when non-empty, means this block has been deferred: it
	// must be removed from its current location and placed into the
	// marker map under this token rather than serialized in place.
	Marker string

	// Heading
	Level      int
	Toggleable bool

	// Callout
	Icon  string
	Color string

	// Code
	Language string

	// Image
	Source  ImageSource
	Caption []richtext.Run

	// Table
	TableWidth      int
	HasColumnHeader bool
	Rows            []TableRow

	// Video / Embed
	URL string

	// checked is meaningful only for KindToDo.
	Checked bool
}

// IsListItemKind reports whether k is one of the list-item-shaped kinds
// (bulleted, numbered, to-do) whose direct children EnforceNesting screens
// with ChildKindAllowedInListItem.
func IsListItemKind(k Kind) bool {
	switch k {
	case KindBulleted, KindNumbered, KindToDo:
		return true
	default:
		return false
	}
}

// ChildKindAllowedInListItem reports whether a block of kind k may appear
// as a direct child of a list-item-shaped block (bulleted, numbered,
// to-do; see IsListItemKind) in the initial payload.
func ChildKindAllowedInListItem(k Kind) bool {
	switch k {
	case KindBulleted, KindNumbered, KindToDo, KindToggle, KindImage:
		return true
	case KindCallout:
		// A nested callout is allowed as a list-item child whatever it
		// contains; EnforceNesting limits the callout's own children by
		// depth, not by kind.
		return true
	default:
		return false
	}
}
