package blocks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sn2notion/sn2notion/internal/convctx"
	"github.com/sn2notion/sn2notion/internal/htmldom"
)

func walk(t *testing.T, raw string) []*Block {
	t.Helper()
	conv := convctx.New(convctx.DefaultOptions(), nil)
	nodes, err := htmldom.NormalizeHTML(conv, raw)
	require.NoError(t, err)
	return WalkDOM(conv, nodes, 0)
}

func TestWalkDOM_EmptyInput(t *testing.T) {
	out := walk(t, "")
	assert.Empty(t, out)
}

func TestWalkDOM_WhitespaceOnlyInput(t *testing.T) {
	out := walk(t, "   \n\t  ")
	assert.Empty(t, out)
}

func TestWalkDOM_CalloutWithNestedList(t *testing.T) {
	out := walk(t, `<div class="note note_important"><span class="note__title">Important:</span> Read this. <ul><li>First</li><li>Second</li></ul></div>`)
	require.Len(t, out, 1)
	require.Equal(t, KindCallout, out[0].Kind)
	assert.Equal(t, "⚠️", out[0].Icon)
	assert.Equal(t, "red_background", out[0].Color)

	var text string
	for _, r := range out[0].Runs {
		text += r.Content
	}
	assert.Contains(t, text, "Important:")
	assert.Contains(t, text, "Read this.")

	require.Len(t, out[0].Children, 2)
	assert.Equal(t, KindBulleted, out[0].Children[0].Kind)
	assert.Equal(t, "First", out[0].Children[0].Runs[0].Content)
}

func TestWalkDOM_TableWithCaption(t *testing.T) {
	out := walk(t, `<p>Table 1. Role matrix</p><table><thead><tr><th>Role</th><th>Access</th></tr></thead><tbody><tr><td>admin</td><td>full</td></tr></tbody></table>`)
	require.Len(t, out, 2)
	assert.Equal(t, KindHeading, out[0].Kind)
	assert.Equal(t, 3, out[0].Level)

	tbl := out[1]
	require.Equal(t, KindTable, tbl.Kind)
	assert.Equal(t, 2, tbl.TableWidth)
	assert.True(t, tbl.HasColumnHeader)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "Role", tbl.Rows[0].Cells[0][0].Content)
}

func TestWalkDOM_ListItemWithTableChild(t *testing.T) {
	out := walk(t, `<ol><li>Configure the following settings: <table><tbody><tr><td>a</td></tr></tbody></table></li><li>Save.</li></ol>`)
	require.Len(t, out, 2)
	assert.Equal(t, KindNumbered, out[0].Kind)
	assert.Contains(t, out[0].Runs[0].Content, "Configure the following settings")
	require.Len(t, out[0].Children, 1)
	assert.Equal(t, KindTable, out[0].Children[0].Kind)

	assert.Equal(t, KindNumbered, out[1].Kind)
	assert.Equal(t, "Save.", out[1].Runs[0].Content)
}

func TestWalkDOM_RelatedContent(t *testing.T) {
	out := walk(t, `<h3>Related Content</h3><ul><li><a href="/docs/x">X</a></li><li><a href="/docs/y">Y</a></li></ul>`)
	require.Len(t, out, 1)
	assert.Equal(t, KindHeading, out[0].Kind)
	assert.True(t, out[0].Toggleable)
	require.Len(t, out[0].Children, 2)
	assert.Equal(t, "X", out[0].Children[0].Runs[0].Content)
}

func TestWalkDOM_CodeBlockSplitsOverlong(t *testing.T) {
	long := strings.Repeat("x", 10000)
	out := walk(t, "<pre>"+long+"</pre>")
	require.GreaterOrEqual(t, len(out), 5)

	var rebuilt string
	for _, b := range out {
		require.Equal(t, KindCode, b.Kind)
		require.LessOrEqual(t, len([]rune(b.Runs[0].Content)), 2000)
		rebuilt += b.Runs[0].Content
	}
	assert.Equal(t, long, rebuilt)
}

func TestWalkDOM_TableCellWithImageHoisted(t *testing.T) {
	out := walk(t, `<table><tbody><tr><td><img src="pic.png" width="800" height="600"></td></tr></tbody></table>`)
	require.Len(t, out, 2)
	require.Equal(t, KindTable, out[0].Kind)
	assert.Equal(t, "[see below]", out[0].Rows[0].Cells[0][0].Content)
	assert.Equal(t, KindImage, out[1].Kind)
	assert.Equal(t, "pic.png", out[1].Source.External)
}

func TestWalkDOM_TableCellWithCalloutHoisted(t *testing.T) {
	out := walk(t, `<table><tbody><tr><td><div class="note">Heads up.</div></td></tr></tbody></table>`)
	require.Len(t, out, 2)
	require.Equal(t, KindTable, out[0].Kind)
	assert.Equal(t, "[see below]", out[0].Rows[0].Cells[0][0].Content)
	assert.Equal(t, KindCallout, out[1].Kind)

	var text string
	for _, r := range out[1].Runs {
		text += r.Content
	}
	assert.Contains(t, text, "Heads up.")
}

func TestWalkDOM_ListItem120Runs(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 60; i++ {
		sb.WriteString("<strong>a</strong><em>b</em>")
	}
	out := walk(t, "<ul><li>"+sb.String()+"</li></ul>")
	require.Len(t, out, 2)
	assert.Equal(t, KindBulleted, out[0].Kind)
	assert.Equal(t, 100, len(out[0].Runs))
	assert.Equal(t, KindBulleted, out[1].Kind)
	assert.Equal(t, 20, len(out[1].Runs))

	var text string
	for _, r := range append(out[0].Runs, out[1].Runs...) {
		text += r.Content
	}
	assert.Equal(t, strings.Repeat("ab", 60), text)
}

func TestWalkDOM_StandaloneFigcaptionSuppressed(t *testing.T) {
	out := walk(t, `<p>before</p><figcaption>orphaned caption</figcaption><p>after</p>`)
	require.Len(t, out, 2)
	assert.Equal(t, "before", out[0].Runs[0].Content)
	assert.Equal(t, "after", out[1].Runs[0].Content)
}

func TestWalkDOM_NestedCalloutFlattened(t *testing.T) {
	out := walk(t, `<div class="note">Outer note. <div class="note">Inner note.</div></div>`)
	require.Len(t, out, 1)
	assert.Equal(t, KindCallout, out[0].Kind)
	var text string
	for _, r := range out[0].Runs {
		text += r.Content
	}
	assert.Contains(t, text, "Outer note.")
	assert.Contains(t, text, "Inner note.")
}
