// Package pageformat implements C4: mode-dispatched conversion from a raw
// PageSnapshot to a unified FormattedPage record, per spec §4.4.
package pageformat

import "fmt"

// Mode selects the output format, per spec's Mode glossary entry.
type Mode string

const (
	ModeMarkdown   Mode = "markdown"
	ModeHTML       Mode = "html"
	ModeText       Mode = "text"
	ModeScreenshot Mode = "screenshot"
	ModePageshot   Mode = "pageshot"
)

// FormattedPage is spec §3's FormattedPage.
type FormattedPage struct {
	Title              string
	Description        string
	URL                string
	Content            string
	PublishedTime      string
	HTML               string
	Text               string
	ScreenshotURL      string
	PageshotURL        string
	Links              map[string]string
	Images             map[string]string
	TextRepresentation string
}

// Qualified implements the invariant from spec §3: a FormattedPage is
// qualified iff (title AND content) OR screenshotUrl OR pageshotUrl OR text
// OR html is non-empty.
func (p *FormattedPage) Qualified() bool {
	if p == nil {
		return false
	}
	if p.Title != "" && p.Content != "" {
		return true
	}
	return p.ScreenshotURL != "" || p.PageshotURL != "" || p.Text != "" || p.HTML != ""
}

// String renders the canonical string form per spec §4.4: in markdown mode
// it's just Content, otherwise the Title/URL Source/Published Time/Markdown
// Content template with optional Images/Links sections.
func (p *FormattedPage) String(mode Mode) string {
	if mode == ModeMarkdown {
		return p.Content
	}

	var b []byte
	b = appendLine(b, "Title: "+p.Title)
	b = appendLine(b, "")
	b = appendLine(b, "URL Source: "+p.URL)
	if p.PublishedTime != "" {
		b = appendLine(b, "Published Time: "+p.PublishedTime)
	}
	b = appendLine(b, "Markdown Content:")
	b = appendLine(b, p.Content)

	if len(p.Images) > 0 {
		b = appendLine(b, "")
		b = appendLine(b, "Images:")
		for k, v := range p.Images {
			b = appendLine(b, fmt.Sprintf("- %s: %s", k, v))
		}
	}
	if len(p.Links) > 0 {
		b = appendLine(b, "")
		b = appendLine(b, "Links/Buttons:")
		for k, v := range p.Links {
			b = appendLine(b, fmt.Sprintf("- %s: %s", k, v))
		}
	}
	return string(b)
}

func appendLine(b []byte, s string) []byte {
	b = append(b, s...)
	b = append(b, '\n')
	return b
}
