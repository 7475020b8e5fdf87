package htmldom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sn2notion/sn2notion/internal/convctx"
)

func newConversion() *convctx.Conversion {
	return convctx.New(convctx.DefaultOptions(), nil)
}

func TestNormalizeHTML_DropsCommentsAndScripts(t *testing.T) {
	conv := newConversion()
	nodes, err := NormalizeHTML(conv, `<p>hello</p><!-- drop me --><script>evil()</script><style>.x{}</style><p>world</p>`)
	require.NoError(t, err)

	var tags []string
	for _, n := range nodes {
		tags = append(tags, TagName(n))
	}
	assert.Equal(t, []string{"p", "p"}, tags)
}

func TestNormalizeHTML_CollapsesRepeatedBreaks(t *testing.T) {
	conv := newConversion()
	nodes, err := NormalizeHTML(conv, `<p>a<br><br><br>b</p>`)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	brs := FindAll(nodes[0], "br")
	assert.Len(t, brs, 1)
}

func TestNormalizeHTML_DropsBlankParagraphs(t *testing.T) {
	conv := newConversion()
	nodes, err := NormalizeHTML(conv, `<p>  </p><p>keep</p><p>&nbsp;</p>`)
	require.NoError(t, err)

	require.Len(t, nodes, 1)
	assert.Equal(t, "keep", TextContent(nodes[0]))
}

func TestNormalizeHTML_ProtectsBarePlaceholderAngleBrackets(t *testing.T) {
	conv := newConversion()
	nodes, err := NormalizeHTML(conv, `<p>Replace <your-instance-id> with your value.</p>`)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	restored := conv.RestorePlaceholders(TextContent(nodes[0]))
	assert.Contains(t, restored, "<your-instance-id>")
}

func TestNormalizeHTML_RealTagsSurviveUnprotected(t *testing.T) {
	conv := newConversion()
	nodes, err := NormalizeHTML(conv, `<p>a <strong>bold</strong> word</p>`)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	strongs := FindAll(nodes[0], "strong")
	require.Len(t, strongs, 1)
	assert.Equal(t, "bold", TextContent(strongs[0]))
}

func TestNormalizeHTML_ChromeRemovedByDefault(t *testing.T) {
	conv := newConversion()
	nodes, err := NormalizeHTML(conv, `<p>a</p><div class="mini-toc">On this page</div><p>b</p>`)
	require.NoError(t, err)

	var tags []string
	for _, n := range nodes {
		tags = append(tags, TagName(n))
	}
	assert.Equal(t, []string{"p", "p"}, tags)
}

func TestNormalizeHTML_ChromePreservedAsParagraph(t *testing.T) {
	opts := convctx.DefaultOptions()
	opts.PreserveUIControlsAsParagraphs = true
	conv := convctx.New(opts, nil)
	nodes, err := NormalizeHTML(conv, `<p>a</p><div class="mini-toc">On this page</div><p>b</p>`)
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	assert.Equal(t, "p", TagName(nodes[1]))
	assert.Equal(t, "On this page", TextContent(nodes[1]))
}

func TestNormalizeHTML_EmptyInput(t *testing.T) {
	conv := newConversion()
	nodes, err := NormalizeHTML(conv, "")
	require.NoError(t, err)
	assert.Empty(t, nodes)
}
