package richtext

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sn2notion/sn2notion/internal/convctx"
	"github.com/sn2notion/sn2notion/internal/htmldom"
)

func firstNode(t *testing.T, conv *convctx.Conversion, fragment string) *html.Node {
	t.Helper()
	nodes, err := htmldom.NormalizeHTML(conv, fragment)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	return nodes[0]
}

func TestTokenizeRichText_BoldItalicLink(t *testing.T) {
	conv := convctx.New(convctx.DefaultOptions(), nil)
	node := firstNode(t, conv, `<p>a <strong>bold</strong> and <em>italic</em> and <a href="/foo">link</a></p>`)

	res := TokenizeRichText(conv, node)
	var texts []string
	for _, r := range res.Runs {
		texts = append(texts, r.Content)
	}
	assert.Contains(t, texts, "bold")
	assert.Contains(t, texts, "italic")

	found := false
	for _, r := range res.Runs {
		if r.Content == "link" {
			assert.Equal(t, "https://www.servicenow.com/foo", r.Link)
			found = true
		}
	}
	assert.True(t, found)
}

func TestTokenizeRichText_MenuCascade(t *testing.T) {
	conv := convctx.New(convctx.DefaultOptions(), nil)
	node := firstNode(t, conv, `<p>Navigate to <span class="menucascade"><span class="ph uicontrol">Workspace</span><abbr>&gt;</abbr><span class="ph uicontrol">Roles</span></span>.</p>`)

	res := TokenizeRichText(conv, node)
	require.Len(t, res.Runs, 3)
	assert.Equal(t, "Navigate to ", res.Runs[0].Content)
	assert.Equal(t, "Workspace > Roles", res.Runs[1].Content)
	assert.True(t, res.Runs[1].Annotations.Bold)
	assert.Equal(t, "blue", res.Runs[1].Annotations.Color)
	assert.Equal(t, ".", res.Runs[2].Content)
}

func TestTokenizeRichText_TechnicalIdentifier(t *testing.T) {
	conv := convctx.New(convctx.DefaultOptions(), nil)
	node := firstNode(t, conv, `<p>See com.snc.incident.ml for details.</p>`)

	res := TokenizeRichText(conv, node)
	var codeRun *Run
	for i := range res.Runs {
		if res.Runs[i].Content == "com.snc.incident.ml" {
			codeRun = &res.Runs[i]
		}
	}
	require.NotNil(t, codeRun)
	assert.True(t, codeRun.Annotations.Code)
}

func TestTokenizeRichText_RoleRequiredList(t *testing.T) {
	conv := convctx.New(convctx.DefaultOptions(), nil)
	node := firstNode(t, conv, `<p>Role required: admin, itil or approver_user</p>`)

	res := TokenizeRichText(conv, node)
	var roles []string
	for _, r := range res.Runs {
		if r.Annotations.Code {
			roles = append(roles, r.Content)
		}
	}
	assert.Equal(t, []string{"admin", "itil", "approver_user"}, roles)
}

func TestTokenizeRichText_KbdURLVsLabel(t *testing.T) {
	conv := convctx.New(convctx.DefaultOptions(), nil)

	urlNode := firstNode(t, conv, `<p><kbd>https://example.com/path</kbd></p>`)
	res := TokenizeRichText(conv, urlNode)
	require.Len(t, res.Runs, 1)
	assert.True(t, res.Runs[0].Annotations.Code)

	labelNode := firstNode(t, conv, `<p><kbd>Ctrl</kbd></p>`)
	res2 := TokenizeRichText(conv, labelNode)
	require.Len(t, res2.Runs, 1)
	assert.True(t, res2.Runs[0].Annotations.Bold)
	assert.False(t, res2.Runs[0].Annotations.Code)
}

func TestTokenizeRichText_ImageExtractionFiltersSmallIcons(t *testing.T) {
	conv := convctx.New(convctx.DefaultOptions(), nil)
	node := firstNode(t, conv, `<p>icon <img src="icon.png" width="16" height="16"> text <img src="big.png" width="800" height="600"></p>`)

	res := TokenizeRichText(conv, node)
	require.Len(t, res.Images, 1)
	assert.Equal(t, "big.png", res.Images[0].SourceURL)
}

func TestTokenizeRichText_IframeClassifiesVideoVsEmbed(t *testing.T) {
	conv := convctx.New(convctx.DefaultOptions(), nil)
	node := firstNode(t, conv, `<p><iframe src="https://www.youtube.com/embed/abc"></iframe><iframe src="https://example.com/widget"></iframe></p>`)

	res := TokenizeRichText(conv, node)
	require.Len(t, res.Media, 2)
	assert.Equal(t, MediaVideo, res.Media[0].Kind)
	assert.Equal(t, MediaEmbed, res.Media[1].Kind)
}

func TestTokenizeRichText_PlaceholderRoundTrip(t *testing.T) {
	conv := convctx.New(convctx.DefaultOptions(), nil)
	node := firstNode(t, conv, `<p>Replace <your-instance-id> with your value.</p>`)

	res := TokenizeRichText(conv, node)
	joined := ""
	for _, r := range res.Runs {
		joined += r.Content
	}
	assert.Contains(t, joined, "<your-instance-id>")
	assert.False(t, strings.Contains(joined, "PH0001") )
}

func TestTokenizeRichText_SplitsOverlongRun(t *testing.T) {
	conv := convctx.New(convctx.DefaultOptions(), nil)
	long := strings.Repeat("word ", 1000)
	node := firstNode(t, conv, "<p>"+long+"</p>")

	res := TokenizeRichText(conv, node)
	require.True(t, len(res.Runs) >= 2)
	for _, r := range res.Runs {
		assert.LessOrEqual(t, len([]rune(r.Content)), 2000)
	}
}
