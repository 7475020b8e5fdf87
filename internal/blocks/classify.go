package blocks

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/sn2notion/sn2notion/internal/htmldom"
)

// elementKind is the dispatch key WalkDOM switches on; it is coarser than
// the tag name alone since class-carrying divs stand in for semantic
// elements throughout DITA-flavored export HTML.
type elementKind int

const (
	ekTransparent elementKind = iota
	ekHeading
	ekParagraph
	ekList
	ekTable
	ekCode
	ekFigure
	ekIframe
	ekImage
	ekDefinitionList
	ekPrerequisite
	ekRelatedContent
	ekCallout
	ekSuppressed
)

// calloutKeywords maps a recognized callout class keyword to its icon and
// background color. Matching is by keyword substring so that ServiceNow
// DITA variants (note_note, note_important, ...) still resolve.
var calloutKeywords = []struct {
	keyword string
	icon    string
	color   string
}{
	{"warning", "⚠️", "red_background"},
	{"important", "⚠️", "red_background"},
	{"caution", "⚠️", "orange_background"},
	{"tip", "💡", "green_background"},
	{"info", "ℹ️", "blue_background"},
	{"note", "📝", "gray_background"},
}

var admonitionLabel = regexp.MustCompile(`^\s*(Note|Warning|Important|Caution|Tip)\s*:`)

// transparentWrapperClasses are containers walked straight through: they
// carry no block semantics of their own, and take precedence over a
// co-occurring callout keyword (e.g. class="itemgroup info" is a
// transparent wrapper, not a callout).
var transparentWrapperClasses = map[string]bool{
	"itemgroup": true,
	"stepxmp":   true,
}

// Classify determines which elementKind n maps to. Class-based rules take
// precedence over bare tag rules since the same tag (div) serves many
// roles in this source format.
func Classify(n *html.Node) elementKind {
	if n == nil || n.Type != html.ElementNode {
		return ekTransparent
	}

	tag := htmldom.TagName(n)
	classes := htmldom.Classes(n)

	if htmldom.HeadingLevel(n) > 0 {
		return ekHeading
	}

	switch tag {
	case "figcaption":
		// A <figcaption> living inside a <figure> is consumed directly by
		// walkFigure as that image's caption; one found anywhere else
		// (malformed or hand-edited source) carries no meaning on its
		// own and is suppressed per the image-caption-fidelity invariant.
		return ekSuppressed
	case "table":
		return ekTable
	case "pre":
		return ekCode
	case "figure":
		return ekFigure
	case "iframe":
		return ekIframe
	case "img":
		return ekImage
	case "dl":
		return ekDefinitionList
	case "ul", "ol":
		return ekList
	}

	if isTransparentWrapper(classes) {
		return ekTransparent
	}

	if tag == "section" && classes["prereq"] {
		return ekPrerequisite
	}

	if isRelatedContentContainer(n, classes) {
		return ekRelatedContent
	}

	if (tag == "div" || tag == "section") && calloutClassName(classes) != "" {
		return ekCallout
	}

	if (tag == "p" || (tag == "div" && classes["p"])) && admonitionLabel.MatchString(htmldom.TextContent(n)) {
		return ekCallout
	}

	if tag == "p" || (tag == "div" && classes["p"]) {
		return ekParagraph
	}

	return ekTransparent
}

// calloutClassName returns the matched keyword for a callout-shaped class
// set, or "" if none match. itemgroup/stepxmp co-occurring with a callout
// keyword still count as transparent: Classify checks
// transparentWrapperClasses before it calls this.
func calloutClassName(classes map[string]bool) string {
	for _, ck := range calloutKeywords {
		for cls := range classes {
			if strings.Contains(cls, ck.keyword) {
				return ck.keyword
			}
		}
	}
	return ""
}

func calloutStyle(classes map[string]bool, labelText string) (icon, color string) {
	kw := calloutClassName(classes)
	if kw == "" {
		for _, ck := range calloutKeywords {
			if strings.Contains(strings.ToLower(labelText), ck.keyword) {
				return ck.icon, ck.color
			}
		}
		return "📝", "gray_background"
	}
	for _, ck := range calloutKeywords {
		if ck.keyword == kw {
			return ck.icon, ck.color
		}
	}
	return "📝", "gray_background"
}

func isTransparentWrapper(classes map[string]bool) bool {
	for cls := range classes {
		if transparentWrapperClasses[cls] {
			return true
		}
	}
	return false
}

func isRelatedContentContainer(n *html.Node, classes map[string]bool) bool {
	tag := htmldom.TagName(n)
	if tag != "nav" && !(tag == "div" && classes["contentPlaceholder"]) {
		return false
	}
	return strings.Contains(strings.ToLower(htmldom.TextContent(n)), "related content")
}
