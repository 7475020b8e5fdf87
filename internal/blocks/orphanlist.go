package blocks

import (
	"strings"

	"github.com/sn2notion/sn2notion/internal/convctx"
)

// RepairOrphanLists implements the experimental SN2N_ORPHAN_LIST_REPAIR
// heuristic (§9 Open Questions): a numbered list that immediately follows
// a colon-terminated bulleted item, with no intervening paragraph, is very
// often the author's continuation of that bullet rather than a sibling
// list — the source simply fails to nest the <ol> inside the <li>. When
// conv.Options.OrphanListRepair is set, such a run of numbered items is
// re-parented under the preceding bullet instead of staying a flat run of
// siblings. It is opt-in and off by default: the heuristic occasionally
// absorbs an unrelated trailing numbered list, so a reimplementation
// preserves it as experimental rather than making it the default
// behavior.
//
// Applied once, after WalkDOM and before EnforceNesting, recursively so a
// nested list's own orphaned continuation is repaired too.
func RepairOrphanLists(conv *convctx.Conversion, list []*Block) []*Block {
	if !conv.Options.OrphanListRepair {
		return list
	}
	return repairOrphans(list)
}

func repairOrphans(list []*Block) []*Block {
	var out []*Block
	i := 0
	for i < len(list) {
		b := list[i]
		b.Children = repairOrphans(b.Children)

		if b.Kind == KindBulleted && len(b.Children) == 0 && endsWithColon(b) {
			j := i + 1
			var absorbed []*Block
			for j < len(list) && list[j].Kind == KindNumbered {
				absorbed = append(absorbed, list[j])
				j++
			}
			if len(absorbed) > 0 {
				b.Children = absorbed
				out = append(out, b)
				i = j
				continue
			}
		}

		out = append(out, b)
		i++
	}
	return out
}

func endsWithColon(b *Block) bool {
	if len(b.Runs) == 0 {
		return false
	}
	last := strings.TrimRight(b.Runs[len(b.Runs)-1].Content, " \t\n")
	return strings.HasSuffix(last, ":")
}
