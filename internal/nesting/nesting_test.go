package nesting_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sn2notion/sn2notion/internal/blocks"
	"github.com/sn2notion/sn2notion/internal/convctx"
	"github.com/sn2notion/sn2notion/internal/htmldom"
	"github.com/sn2notion/sn2notion/internal/nesting"
)

func roots(t *testing.T, raw string) (*convctx.Conversion, []*blocks.Block) {
	t.Helper()
	conv := convctx.New(convctx.DefaultOptions(), nil)
	nodes, err := htmldom.NormalizeHTML(conv, raw)
	require.NoError(t, err)
	return conv, blocks.WalkDOM(conv, nodes, 0)
}

func textOf(b *blocks.Block) string {
	var sb strings.Builder
	for _, r := range b.Runs {
		sb.WriteString(r.Content)
	}
	return sb.String()
}

func TestEnforceNesting_EmptyInput(t *testing.T) {
	out := nesting.EnforceNesting(convctx.New(convctx.DefaultOptions(), nil), nil)
	assert.Empty(t, out)
	payload, markerMap := nesting.CollectAndEmit(out)
	assert.Empty(t, payload)
	assert.Empty(t, markerMap)
}

// Scenario B: a callout whose text is followed by a nested list defers the
// list to a marker, leaving the callout's own concatenated text in place.
func TestPipeline_CalloutWithNestedList(t *testing.T) {
	conv, in := roots(t, `<div class="note note_important"><span class="note__title">Important:</span> Read this. <ul><li>First</li><li>Second</li></ul></div>`)
	out := nesting.EnforceNesting(conv, in)
	payload, markerMap := nesting.CollectAndEmit(out)

	require.Len(t, payload, 1)
	callout := payload[0]
	require.Equal(t, blocks.KindCallout, callout.Kind)
	assert.Equal(t, "⚠️", callout.Icon)
	assert.Equal(t, "red_background", callout.Color)
	assert.Empty(t, callout.Children)
	assert.Contains(t, textOf(callout), "Important: Read this.")
	assert.Regexp(t, `\(marker:[a-z2-7]+\)$`, textOf(callout))

	require.Len(t, markerMap, 1)
	for token, deferred := range markerMap {
		assert.Contains(t, textOf(callout), "(marker:"+token+")")
		require.Len(t, deferred, 2)
		assert.Equal(t, blocks.KindBulleted, deferred[0].Kind)
		assert.Equal(t, "First", deferred[0].Runs[0].Content)
		assert.Equal(t, blocks.KindBulleted, deferred[1].Kind)
		assert.Equal(t, "Second", deferred[1].Runs[0].Content)
	}
}

// Scenario D: a table inside a list item is never a direct child in the
// payload; it is deferred via marker to top level.
func TestPipeline_ListItemWithTableChild(t *testing.T) {
	conv, in := roots(t, `<ol><li>Configure the following settings: <table><tbody><tr><td>a</td></tr></tbody></table></li><li>Save.</li></ol>`)
	out := nesting.EnforceNesting(conv, in)
	payload, markerMap := nesting.CollectAndEmit(out)

	require.Len(t, payload, 2)
	first := payload[0]
	assert.Equal(t, blocks.KindNumbered, first.Kind)
	assert.Empty(t, first.Children)
	assert.Contains(t, textOf(first), "Configure the following settings:")
	assert.Regexp(t, `\(marker:[a-z2-7]+\)$`, textOf(first))

	assert.Equal(t, blocks.KindNumbered, payload[1].Kind)
	assert.Equal(t, "Save.", textOf(payload[1]))

	require.Len(t, markerMap, 1)
	for _, deferred := range markerMap {
		require.Len(t, deferred, 1)
		assert.Equal(t, blocks.KindTable, deferred[0].Kind)
	}
}

// Scenario F: Related Content's links are deferred via marker, the heading
// itself left with an empty Children slice and the marker token embedded.
func TestPipeline_RelatedContent(t *testing.T) {
	conv, in := roots(t, `<h3>Related Content</h3><ul><li><a href="/docs/x">X</a></li><li><a href="/docs/y">Y</a></li></ul>`)
	out := nesting.EnforceNesting(conv, in)
	payload, markerMap := nesting.CollectAndEmit(out)

	require.Len(t, payload, 1)
	heading := payload[0]
	assert.Equal(t, blocks.KindHeading, heading.Kind)
	assert.True(t, heading.Toggleable)
	assert.Empty(t, heading.Children)
	assert.Contains(t, textOf(heading), "Related Content")

	require.Len(t, markerMap, 1)
	for _, deferred := range markerMap {
		require.Len(t, deferred, 2)
		assert.Equal(t, "X", deferred[0].Runs[0].Content)
		assert.Equal(t, "Y", deferred[1].Runs[0].Content)
	}
}

// Scenario E: a code block two levels deep inside nested list items stays
// in place (depth 2 is still within the cap); nothing is deferred.
func TestPipeline_DeepNestingWithinCapStaysInPlace(t *testing.T) {
	conv, in := roots(t, `<ol><li>Step A <ol><li>Sub-step with <pre>code here</pre></li></ol></li></ol>`)
	out := nesting.EnforceNesting(conv, in)
	payload, markerMap := nesting.CollectAndEmit(out)

	require.Len(t, payload, 1)
	outer := payload[0]
	assert.Equal(t, blocks.KindNumbered, outer.Kind)
	require.Len(t, outer.Children, 1)

	inner := outer.Children[0]
	assert.Equal(t, blocks.KindNumbered, inner.Kind)
	require.Len(t, inner.Children, 1)
	assert.Equal(t, blocks.KindCode, inner.Children[0].Kind)

	assert.Empty(t, markerMap)
}

// A list item at depth 3 has its own children stripped entirely and
// deferred, regardless of child kind; depths 0-2 may all carry children.
func TestEnforceNesting_StripsAtDepthCapRegardlessOfKind(t *testing.T) {
	conv, in := roots(t, `<ol><li>A <ol><li>B <ol><li>C <ol><li>D <ol><li>E</li></ol></li></ol></li></ol></li></ol></li></ol>`)
	out := nesting.EnforceNesting(conv, in)
	payload, markerMap := nesting.CollectAndEmit(out)

	require.Len(t, payload, 1)
	a := payload[0] // depth 0
	require.Len(t, a.Children, 1)
	b := a.Children[0] // depth 1
	require.Len(t, b.Children, 1)
	c := b.Children[0] // depth 2, may still carry children
	require.Len(t, c.Children, 1)
	d := c.Children[0] // depth 3, its own children are stripped
	assert.Empty(t, d.Children)
	assert.Regexp(t, `\(marker:[a-z2-7]+\)$`, textOf(d))

	require.Len(t, markerMap, 1)
	for _, deferred := range markerMap {
		require.Len(t, deferred, 1)
		assert.Equal(t, "E", deferred[0].Runs[0].Content)
	}
}

func TestEnforceNesting_MarkerUniquenessAndSymmetry(t *testing.T) {
	conv, in := roots(t, `
		<div class="note">One. <ul><li>a</li></ul></div>
		<div class="note">Two. <ul><li>b</li></ul></div>
	`)
	out := nesting.EnforceNesting(conv, in)
	payload, markerMap := nesting.CollectAndEmit(out)

	require.Len(t, payload, 2)
	require.Len(t, markerMap, 2)

	tokens := map[string]bool{}
	for _, b := range payload {
		text := textOf(b)
		for token := range markerMap {
			if strings.Contains(text, "(marker:"+token+")") {
				assert.False(t, tokens[token], "token %s referenced by more than one host", token)
				tokens[token] = true
			}
		}
	}
	assert.Len(t, tokens, 2)
}
