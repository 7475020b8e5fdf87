package blocks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sn2notion/sn2notion/internal/convctx"
	"github.com/sn2notion/sn2notion/internal/htmldom"
)

func walkWithOptions(t *testing.T, raw string, opts convctx.Options) []*Block {
	t.Helper()
	conv := convctx.New(opts, nil)
	nodes, err := htmldom.NormalizeHTML(conv, raw)
	require.NoError(t, err)
	roots := WalkTopLevel(conv, nodes, 0)
	return RepairOrphanLists(conv, roots)
}

const orphanListHTML = `<ul><li>Do the following:</li></ul><ol><li>First</li><li>Second</li></ol>`

func TestRepairOrphanLists_OffByDefault(t *testing.T) {
	out := walkWithOptions(t, orphanListHTML, convctx.DefaultOptions())
	require.Len(t, out, 3)
	assert.Equal(t, KindBulleted, out[0].Kind)
	assert.Empty(t, out[0].Children)
	assert.Equal(t, KindNumbered, out[1].Kind)
	assert.Equal(t, KindNumbered, out[2].Kind)
}

func TestRepairOrphanLists_AbsorbsTrailingNumberedList(t *testing.T) {
	opts := convctx.DefaultOptions()
	opts.OrphanListRepair = true
	out := walkWithOptions(t, orphanListHTML, opts)

	require.Len(t, out, 1)
	assert.Equal(t, KindBulleted, out[0].Kind)
	require.Len(t, out[0].Children, 2)
	assert.Equal(t, "First", out[0].Children[0].Runs[0].Content)
	assert.Equal(t, "Second", out[0].Children[1].Runs[0].Content)
}

func TestRepairOrphanLists_NoRepairWithoutColon(t *testing.T) {
	opts := convctx.DefaultOptions()
	opts.OrphanListRepair = true
	out := walkWithOptions(t, `<ul><li>Not a lead-in</li></ul><ol><li>First</li></ol>`, opts)

	require.Len(t, out, 2)
	assert.Empty(t, out[0].Children)
}

func TestWalkTopLevel_SectionsBeforeStrayContentByDefault(t *testing.T) {
	conv := convctx.New(convctx.DefaultOptions(), nil)
	nodes, err := htmldom.NormalizeHTML(conv, `<p>stray</p><section><p>in section</p></section>`)
	require.NoError(t, err)

	out := WalkTopLevel(conv, nodes, 0)
	require.Len(t, out, 2)
	var text0, text1 string
	for _, r := range out[0].Runs {
		text0 += r.Content
	}
	for _, r := range out[1].Runs {
		text1 += r.Content
	}
	assert.Equal(t, "in section", text0)
	assert.Equal(t, "stray", text1)
}

func TestWalkTopLevel_StrictPreservesDocumentOrder(t *testing.T) {
	opts := convctx.DefaultOptions()
	opts.StrictSourceOrder = true
	conv := convctx.New(opts, nil)
	nodes, err := htmldom.NormalizeHTML(conv, `<p>stray</p><section><p>in section</p></section>`)
	require.NoError(t, err)

	out := WalkTopLevel(conv, nodes, 0)
	require.Len(t, out, 2)
	var text0 string
	for _, r := range out[0].Runs {
		text0 += r.Content
	}
	assert.Equal(t, "stray", text0)
}
