// Package nesting implements the marker-and-orchestration layer:
// EnforceNesting, Markers, and Collect & Emit. Together they reconcile the
// unconstrained tree WalkDOM produces with the target model's two-level
// nesting cap and parent/child restrictions, by deferring violating
// subtrees to a flat marker map instead of dropping them.
package nesting

import (
	"github.com/sn2notion/sn2notion/internal/blocks"
	"github.com/sn2notion/sn2notion/internal/convctx"
	"github.com/sn2notion/sn2notion/internal/richtext"
)

// maxNestingDepth is the target model's child-nesting cap: a block at this
// depth or deeper may not carry nonempty children in the initial payload.
// Depths 0, 1, and 2 may all have children; only a depth-3 block's own
// children are stripped.
const maxNestingDepth = 3

// EnforceNesting strips children that violate the two-level depth cap, the
// list-item child-kind restriction, or the list-items-need-a-list-item-host
// restriction, allocating a marker token (via Markers) for each group it
// strips. It mutates the tree in place and returns the top-level roots,
// augmented with every block it deferred — deferred blocks come to rest at
// depth 0, tagged with Marker, exactly as §4.5/§4.6 describe.
func EnforceNesting(conv *convctx.Conversion, roots []*blocks.Block) []*blocks.Block {
	out := append([]*blocks.Block{}, roots...)
	for _, b := range roots {
		out = append(out, enforce(conv, b, 0)...)
	}
	return out
}

// enforce strips b's own violating children (if any), recurses into the
// surviving children, and returns every block deferred anywhere within b's
// subtree — these belong at top level, not as b's children.
func enforce(conv *convctx.Conversion, b *blocks.Block, depth int) []*blocks.Block {
	var toDefer []*blocks.Block
	kept := b.Children

	switch {
	case depth >= maxNestingDepth && len(kept) > 0:
		toDefer = append(toDefer, kept...)
		kept = nil
	default:
		// The list-item child-kind restriction is only re-checked for a
		// top-level (depth 0) list item. A list item nested inside
		// another (depth >= 1) already got there by being an allowed
		// child kind itself; its own children are subject only to the
		// depth cap above, not a second pass of kind screening.
		if depth == 0 && blocks.IsListItemKind(b.Kind) {
			var k []*blocks.Block
			for _, c := range kept {
				if blocks.ChildKindAllowedInListItem(c.Kind) {
					k = append(k, c)
				} else {
					toDefer = append(toDefer, c)
				}
			}
			kept = k
		}

		// A list-item-kind block is never a direct child of a non-list-item
		// host (callout, toggleable heading, ...) in the initial payload:
		// Notion nests list items under a parent list item of the same
		// family natively, but populating a list under any other block
		// kind at creation time isn't possible, so it's always deferred.
		if !blocks.IsListItemKind(b.Kind) {
			var k []*blocks.Block
			for _, c := range kept {
				if blocks.IsListItemKind(c.Kind) {
					toDefer = append(toDefer, c)
				} else {
					k = append(k, c)
				}
			}
			kept = k
		}
	}
	b.Children = kept

	var deferredElsewhere []*blocks.Block
	for _, c := range b.Children {
		deferredElsewhere = append(deferredElsewhere, enforce(conv, c, depth+1)...)
	}

	if len(toDefer) > 0 {
		deferredElsewhere = append(deferredElsewhere, Markers(conv, b, toDefer)...)
	}

	return deferredElsewhere
}

// Markers allocates one fresh marker token for the group of children being
// deferred from host, embeds the token as a plain run in host's rich text,
// tags each deferred child with that token, and recurses each deferred
// child back through EnforceNesting at depth 0 (a deferred subtree is
// itself subject to the same depth/child-kind rules once it is re-appended
// during orchestration). It returns the deferred children plus anything
// further deferred from within them, all destined for top level.
func Markers(conv *convctx.Conversion, host *blocks.Block, deferred []*blocks.Block) []*blocks.Block {
	if len(deferred) == 0 {
		return nil
	}

	token := conv.Markers.Next()
	host.Runs = append(host.Runs, richtext.Run{Content: " (marker:" + token + ")"})
	conv.Audit.MarkersAllocated++

	out := make([]*blocks.Block, 0, len(deferred))
	for _, c := range deferred {
		c.Marker = token
		conv.Audit.DeferredChildren++
		out = append(out, c)
		out = append(out, enforce(conv, c, 0)...)
	}
	return out
}
