package blocks

import (
	"golang.org/x/net/html"

	"github.com/sn2notion/sn2notion/internal/convctx"
	"github.com/sn2notion/sn2notion/internal/htmldom"
	"github.com/sn2notion/sn2notion/internal/richtext"
)

// walkFigure builds one Image block from a <figure>'s <img>, with caption
// text from <figcaption>; any other children (paragraphs, lists) inside
// the figure are emitted as siblings following the image. A standalone
// <figcaption> outside a <figure> is suppressed elsewhere by simply never
// being walked as its own element kind.
func walkFigure(conv *convctx.Conversion, n *html.Node, depth int) []*Block {
	img := htmldom.FindFirst(n, "img")
	figcaption := htmldom.FindFirst(n, "figcaption")

	var out []*Block
	if img != nil {
		src, _ := htmldom.Attr(img, "src")
		if src != "" && !conv.SeenImageURL(src) {
			var caption []richtext.Run
			if figcaption != nil {
				caption = richtext.TokenizeRichText(conv, figcaption).Runs
			}
			conv.Audit.RecordBlock(string(KindImage))
			out = append(out, &Block{Kind: KindImage, Source: ImageSource{External: src}, Caption: caption})
		}
	}

	for _, c := range htmldom.ElementChildren(n) {
		if c == img || c == figcaption {
			continue
		}
		out = append(out, WalkDOM(conv, []*html.Node{c}, depth)...)
	}

	return out
}
