package markdown

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// renderTitle implements rule 3: title-as-h1.
func renderTitle(text string) string {
	text = strings.TrimSpace(text)
	return text + "\n" + strings.Repeat("=", 15) + "\n\n"
}

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// renderParagraph implements rule 5: improved-paragraph.
func renderParagraph(inner string) string {
	text := strings.TrimSpace(inner)
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	if text == "" {
		return ""
	}
	return text + "\n\n"
}

// renderHeading gives baseline markdown syntax to h1-h6 so prose outside
// the 9 listed rules still converts sensibly.
func renderHeading(tag, inner string) string {
	level := int(tag[1] - '0')
	return strings.Repeat("#", level) + " " + collapseSpace(inner) + "\n\n"
}

func renderBlockquote(inner string) string {
	lines := strings.Split(strings.TrimSpace(inner), "\n")
	var buf strings.Builder
	for _, l := range lines {
		buf.WriteString("> " + l + "\n")
	}
	buf.WriteString("\n")
	return buf.String()
}

func (c *converter) renderList(n *html.Node, ordered bool) string {
	var buf strings.Builder
	i := 1
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode || child.Data != "li" {
			continue
		}
		item := strings.TrimSpace(c.renderChildren(child))
		if ordered {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i, item))
		} else {
			buf.WriteString("- " + item + "\n")
		}
		i++
	}
	buf.WriteString("\n")
	return buf.String()
}

func (c *converter) renderPre(n *html.Node) string {
	// A <pre><code> pair is handled by renderCode's sole-child check; a
	// bare <pre> renders its raw text as a fenced block.
	if sole := soleElementChild(n); sole != nil && sole.Data == "code" {
		return c.renderCode(sole)
	}
	text := nodeText(n)
	return "```\n" + strings.TrimRight(text, "\n") + "\n```\n\n"
}

// renderCode implements rule 7: improved-code.
func (c *converter) renderCode(n *html.Node) string {
	text := nodeText(n)

	if n.Parent != nil && n.Parent.Data == "pre" && soleElementChild(n.Parent) == n {
		lang := codeLanguage(n)
		return "```" + lang + "\n" + strings.TrimRight(text, "\n") + "\n```\n\n"
	}

	if strings.Contains(text, "\n") {
		return "```\n" + text + "\n```"
	}

	fence := strings.Repeat("`", longestBacktickRun(text)+1)
	pad := ""
	if strings.HasPrefix(text, "`") || strings.HasSuffix(text, "`") {
		pad = " "
	}
	return fence + pad + text + pad + fence
}

func codeLanguage(n *html.Node) string {
	class := attr(n, "class")
	for _, tok := range strings.Fields(class) {
		if strings.HasPrefix(tok, "language-") {
			return strings.TrimPrefix(tok, "language-")
		}
	}
	return ""
}

func longestBacktickRun(s string) int {
	max, cur := 0, 0
	for _, r := range s {
		if r == '`' {
			cur++
			if cur > max {
				max = cur
			}
		} else {
			cur = 0
		}
	}
	return max
}

// renderLink implements rule 6: improved-inline-link.
func (c *converter) renderLink(n *html.Node) string {
	href := attr(n, "href")
	text := collapseSpace(c.renderChildren(n))

	resolved := resolveURL(c.opts.BaseURL, href)
	escapedHref := escapeParens(resolved)

	title := attr(n, "title")
	md := "[" + text + "](" + escapedHref
	if title != "" {
		md += " \"" + escapeQuotes(title) + "\""
	}
	md += ")"

	if text != "" {
		c.links[text] = resolved
	}
	return md
}

// renderImage implements rules 4 and 8: data-url-to-pseudo-object-url and
// img-generated-alt.
func (c *converter) renderImage(n *html.Node) string {
	src := attr(n, "src")
	alt := attr(n, "alt")

	if src == "" {
		if ds := attr(n, "data-src"); ds != "" && !strings.HasPrefix(ds, "data:") {
			src = ds
		}
	}

	if c.opts.ImgDataURLToObjectURL && strings.HasPrefix(src, "data:") {
		sum := md5.Sum([]byte(src))
		src = fmt.Sprintf("blob:%s/%s", c.opts.ImgObjectOrigin, hex.EncodeToString(sum[:]))
	} else if !strings.HasPrefix(src, "data:") {
		src = resolveURL(c.opts.BaseURL, src)
	}

	c.imgCount++
	c.images = append(c.images, ImageRef{Index: c.imgCount, Alt: alt, Src: src})

	return fmt.Sprintf("![Image %d: %s](%s)", c.imgCount, alt, src)
}

// renderTable implements rule 9: GFM pipe tables.
func (c *converter) renderTable(n *html.Node) string {
	var rows [][]string
	var headerRows int

	walkRows(n, func(row *html.Node, isHeader bool) {
		var cells []string
		for cell := row.FirstChild; cell != nil; cell = cell.NextSibling {
			if cell.Type != html.ElementNode || (cell.Data != "td" && cell.Data != "th") {
				continue
			}
			cells = append(cells, collapseSpace(c.renderChildren(cell)))
		}
		rows = append(rows, cells)
		if isHeader {
			headerRows++
		}
	})

	if len(rows) == 0 {
		return ""
	}

	cols := 0
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}

	var buf strings.Builder
	writeRow := func(cells []string) {
		buf.WriteString("|")
		for i := 0; i < cols; i++ {
			v := ""
			if i < len(cells) {
				v = cells[i]
			}
			buf.WriteString(" " + v + " |")
		}
		buf.WriteString("\n")
	}

	writeRow(rows[0])
	buf.WriteString("|")
	for i := 0; i < cols; i++ {
		buf.WriteString(" --- |")
	}
	buf.WriteString("\n")
	for _, r := range rows[1:] {
		writeRow(r)
	}
	buf.WriteString("\n")
	return buf.String()
}

func walkRows(n *html.Node, fn func(row *html.Node, isHeader bool)) {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch {
		case child.Type == html.ElementNode && child.Data == "tr":
			fn(child, hasHeaderCell(child))
		case child.Type == html.ElementNode && (child.Data == "thead" || child.Data == "tbody" || child.Data == "tfoot"):
			walkRows(child, fn)
		}
	}
}

func hasHeaderCell(tr *html.Node) bool {
	for child := tr.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.Data == "th" {
			return true
		}
	}
	return false
}

// --- helpers ---

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func soleElementChild(n *html.Node) *html.Node {
	var sole *html.Node
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode && strings.TrimSpace(child.Data) == "" {
			continue
		}
		if child.Type != html.ElementNode {
			return nil
		}
		if sole != nil {
			return nil
		}
		sole = child
	}
	return sole
}

func nodeText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return buf.String()
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func collapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func collapseBlankRuns(s string) string {
	return blankRunRe.ReplaceAllString(s, "\n\n")
}

func resolveURL(base *url.URL, href string) string {
	if href == "" || base == nil {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(u).String()
}

func escapeParens(s string) string {
	s = strings.ReplaceAll(s, "(", "\\(")
	s = strings.ReplaceAll(s, ")", "\\)")
	return s
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
