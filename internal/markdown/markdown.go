// Package markdown implements C3: HTML-to-Markdown rewriting with the
// rule-based filters from spec §4.3. The rule-per-node-type design follows
// spec §9's guidance ("model as an ordered list of (predicate, replacement)
// variants"); DOM pruning and image discovery are grounded on the teacher's
// crawler/extractor.go and crawler/dom_handler.go (goquery-based DOM work),
// and node walking on crawler/text_extraction.go's RenderNodeToString
// (golang.org/x/net/html). The "retry without the plugin chain" fallback in
// spec §4.3 delegates to the teacher's literal htmltomarkdown.ConvertString
// call (crawler/text_extraction.go).
package markdown

import (
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Options controls the rewriter per spec §4.3.
type Options struct {
	NoRules               bool
	BaseURL               *url.URL
	ImgDataURLToObjectURL bool
	// ImgObjectOrigin is the "origin" used to build blob:{origin}/{md5}
	// pseudo object URLs when ImgDataURLToObjectURL is set.
	ImgObjectOrigin string
}

// ImageRef records one <img> rendered by img-generated-alt, so the
// formatter can build the images-summary mixin.
type ImageRef struct {
	Index int
	Alt   string
	Src   string
}

// Result is the detailed output of the rewriter.
type Result struct {
	Markdown string
	Images   []ImageRef
	// Links maps anchor text to resolved href; later duplicates overwrite
	// earlier ones, matching the formatter's links-summary mixin rule.
	Links map[string]string
}

// ToMarkdown implements toMarkdown(htmlFragment, options) -> string.
func ToMarkdown(htmlFragment string, opts Options) string {
	return Convert(htmlFragment, opts).Markdown
}

// Convert runs the rule engine over htmlFragment and, on failure or empty
// output, falls back to the library's default conversion, then to empty.
func Convert(htmlFragment string, opts Options) Result {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlFragment))
	if err != nil {
		return fallback(htmlFragment)
	}

	c := &converter{opts: opts, links: make(map[string]string)}
	if !opts.NoRules {
		pruneIrrelevant(doc)
	}

	var buf strings.Builder
	for _, root := range doc.Selection.Nodes {
		for child := root.FirstChild; child != nil; child = child.NextSibling {
			buf.WriteString(c.renderNode(child))
		}
	}

	md := collapseBlankRuns(strings.TrimSpace(buf.String()))
	if md == "" {
		return fallback(htmlFragment)
	}
	return Result{Markdown: md, Images: c.images, Links: c.links}
}

func fallback(htmlFragment string) Result {
	md, err := htmltomarkdown.ConvertString(htmlFragment)
	if err != nil {
		return Result{}
	}
	return Result{Markdown: strings.TrimSpace(md)}
}

// pruneIrrelevant implements rules 1-2: remove-irrelevant and truncate-svg.
func pruneIrrelevant(doc *goquery.Document) {
	doc.Find("meta, style, script, noscript, link, textarea, select, svg").Remove()
}

type converter struct {
	opts     Options
	imgCount int
	images   []ImageRef
	links    map[string]string
}

// renderNode dispatches on node type, applying rules 3-9 in order;
// anything unmatched gets baseline block/inline handling so normal prose
// (headings, lists, emphasis) still reads as markdown.
func (c *converter) renderNode(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return n.Data
	case html.ElementNode:
		return c.renderElement(n)
	case html.DocumentNode:
		return c.renderChildren(n)
	default:
		return ""
	}
}

func (c *converter) renderChildren(n *html.Node) string {
	var buf strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		buf.WriteString(c.renderNode(child))
	}
	return buf.String()
}

func (c *converter) renderElement(n *html.Node) string {
	switch n.Data {
	case "title":
		if c.opts.NoRules {
			return ""
		}
		return renderTitle(c.renderChildren(n))
	case "p":
		return renderParagraph(c.renderChildren(n))
	case "a":
		return c.renderLink(n)
	case "code":
		return c.renderCode(n)
	case "img":
		return c.renderImage(n)
	case "table":
		return c.renderTable(n)
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return renderHeading(n.Data, c.renderChildren(n))
	case "strong", "b":
		return "**" + collapseSpace(c.renderChildren(n)) + "**"
	case "em", "i":
		return "_" + collapseSpace(c.renderChildren(n)) + "_"
	case "br":
		return "\n"
	case "hr":
		return "\n\n---\n\n"
	case "blockquote":
		return renderBlockquote(c.renderChildren(n))
	case "ul":
		return c.renderList(n, false)
	case "ol":
		return c.renderList(n, true)
	case "pre":
		return c.renderPre(n)
	default:
		// Transparent container: div, span, section, article, body, html,
		// head, header, footer, nav, main, figure, figcaption, li-outside-
		// of-list, and anything else not named by a rule.
		return c.renderChildren(n)
	}
}
