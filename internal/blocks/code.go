package blocks

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/sn2notion/sn2notion/internal/convctx"
	"github.com/sn2notion/sn2notion/internal/htmldom"
	"github.com/sn2notion/sn2notion/internal/richtext"
)

// walkCode builds one or more sibling Code blocks from a <pre>, splitting
// content exceeding the configured character cap at a safe boundary
// (preferring a newline) so the original content is recovered exactly by
// concatenation.
func walkCode(conv *convctx.Conversion, n *html.Node) []*Block {
	lang := codeLanguageOf(n)
	content := htmldom.TextContent(n)
	content = strings.TrimRight(content, "\n")

	max := conv.Options.MaxContentChars
	if max <= 0 {
		max = 2000
	}

	chunks := splitCodeContent(content, max)
	out := make([]*Block, 0, len(chunks))
	for _, chunk := range chunks {
		conv.Audit.RecordBlock(string(KindCode))
		out = append(out, &Block{
			Kind:     KindCode,
			Language: lang,
			Runs:     []richtext.Run{{Content: chunk}},
		})
	}
	return out
}

func codeLanguageOf(n *html.Node) string {
	if v, ok := htmldom.Attr(n, "data-language"); ok && v != "" {
		return v
	}
	if lang := languageFromClass(n); lang != "" {
		return lang
	}
	if code := htmldom.FindFirst(n, "code"); code != nil {
		if v, ok := htmldom.Attr(code, "data-language"); ok && v != "" {
			return v
		}
		if lang := languageFromClass(code); lang != "" {
			return lang
		}
	}
	return "plain text"
}

func languageFromClass(n *html.Node) string {
	for cls := range htmldom.Classes(n) {
		if strings.HasPrefix(cls, "language-") {
			return strings.TrimPrefix(cls, "language-")
		}
	}
	return ""
}

// splitCodeContent breaks content into chunks no longer than max runes,
// preferring to cut at the last newline within range, falling back to a
// hard cut so no content is ever dropped.
func splitCodeContent(content string, max int) []string {
	runes := []rune(content)
	if len(runes) == 0 {
		return []string{""}
	}
	var out []string
	for len(runes) > max {
		cut := findCodeSplitPoint(runes, max)
		out = append(out, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

func findCodeSplitPoint(content []rune, max int) int {
	for i := max; i > max/2; i-- {
		if content[i-1] == '\n' {
			return i
		}
	}
	return max
}
