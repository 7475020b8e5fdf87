package nesting

import "github.com/sn2notion/sn2notion/internal/blocks"

// CollectAndEmit traverses the block tree depth-first and buckets every
// marker-tagged block into markerMap, in the order encountered, removing it
// from wherever it sits (a children array or the top-level list). The
// returned payload carries no block with Marker set. Order among deferred
// siblings sharing one marker is preserved.
//
// EnforceNesting already keeps deferred blocks off every Children array (it
// promotes them straight to the flat top-level list it returns), so in
// practice this pass only needs to separate roots by Marker; the recursive
// walk over Children is kept anyway so the contract holds even if a marker
// were ever set by a path other than nesting.Markers.
func CollectAndEmit(roots []*blocks.Block) (payload []*blocks.Block, markerMap map[string][]*blocks.Block) {
	markerMap = make(map[string][]*blocks.Block)
	payload = collect(roots, markerMap)
	for token, children := range markerMap {
		if len(children) == 0 {
			delete(markerMap, token)
		}
	}
	return payload, markerMap
}

func collect(list []*blocks.Block, markerMap map[string][]*blocks.Block) []*blocks.Block {
	var kept []*blocks.Block
	for _, b := range list {
		b.Children = collect(b.Children, markerMap)
		if b.Marker != "" {
			markerMap[b.Marker] = append(markerMap[b.Marker], b)
			continue
		}
		kept = append(kept, b)
	}
	return kept
}
