package pageformat

import (
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"

	"searchgate/internal/browser"
	"searchgate/internal/reqctx"
)

func TestFormat_MarkdownPrefersParsedContentWhenSubstantial(t *testing.T) {
	f := New(zap.NewNop(), t.TempDir(), "localhost:3000")
	snap := &browser.Snapshot{
		Href: "https://example.com/article",
		Title: "Article",
		HTML:  `<html><body><nav>menu menu menu</nav><article><p>the actual article body goes here</p></article></body></html>`,
		Parsed: &browser.Parsed{
			Content: `<p>the actual article body goes here</p>`,
		},
	}

	page, err := f.Format(ModeMarkdown, snap, "", reqctx.New())
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	if !strings.Contains(page.Content, "the actual article body goes here") {
		t.Errorf("expected article body in content, got %q", page.Content)
	}
	if strings.Contains(page.Content, "menu") {
		t.Errorf("expected parsed content to win over the full document, got %q", page.Content)
	}
}

func TestFormat_DegradesToTextWhenSnapshotTooLarge(t *testing.T) {
	f := New(zap.NewNop(), t.TempDir(), "localhost:3000")
	snap := &browser.Snapshot{
		Href:         "https://example.com",
		HTML:         "<p>huge</p>",
		Text:         "plain text fallback",
		ElemCount:    100000,
		MaxElemDepth: 10,
	}

	page, err := f.Format(ModeMarkdown, snap, "", reqctx.New())
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	if page.Content != "plain text fallback" {
		t.Errorf("expected degrade-to-text content, got %q", page.Content)
	}
}

func TestFormat_PDFShortCircuitsToParsedOrText(t *testing.T) {
	f := New(zap.NewNop(), t.TempDir(), "localhost:3000")
	snap := &browser.Snapshot{
		Href: "https://example.com/doc.pdf",
		Text: "pdf extracted text",
		PDF:  browser.PDFInfo{Present: true},
	}

	page, err := f.Format(ModeMarkdown, snap, "", reqctx.New())
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	if page.Content != "pdf extracted text" {
		t.Errorf("expected PDF short-circuit to snapshot text, got %q", page.Content)
	}
}

func TestFormat_ScreenshotPersistsFileAndBuildsURL(t *testing.T) {
	dir := t.TempDir()
	f := New(zap.NewNop(), dir, "localhost:3000")
	snap := &browser.Snapshot{Screenshot: []byte{0x89, 0x50, 0x4e, 0x47}}

	page, err := f.Format(ModeScreenshot, snap, "https://example.com", reqctx.New())
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	if page.ScreenshotURL == "" {
		t.Fatal("expected ScreenshotURL to be set")
	}
	if !strings.HasPrefix(page.ScreenshotURL, "http://localhost:3000/instant-screenshots/screenshot-") {
		t.Errorf("unexpected ScreenshotURL: %q", page.ScreenshotURL)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one persisted file, got %d", len(entries))
	}
}

func TestFormat_HTMLAndTextModesPassThrough(t *testing.T) {
	f := New(zap.NewNop(), t.TempDir(), "localhost:3000")
	snap := &browser.Snapshot{HTML: "<p>hi</p>", Text: "hi"}

	htmlPage, err := f.Format(ModeHTML, snap, "", reqctx.New())
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	if htmlPage.HTML != "<p>hi</p>" {
		t.Errorf("expected HTML pass-through, got %q", htmlPage.HTML)
	}

	textPage, err := f.Format(ModeText, snap, "", reqctx.New())
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	if textPage.Text != "hi" {
		t.Errorf("expected text pass-through, got %q", textPage.Text)
	}
}

func TestFormat_LinksSummaryPopulatedWhenRequested(t *testing.T) {
	f := New(zap.NewNop(), t.TempDir(), "localhost:3000")
	snap := &browser.Snapshot{
		Href: "https://example.com",
		HTML: `<p>see <a href="https://example.com/a">link one</a> and <a href="https://example.com/b">link two</a></p>`,
	}

	rc := reqctx.New()
	rc.WithLinksSummary = true
	page, err := f.Format(ModeMarkdown, snap, "", rc)
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	if len(page.Links) != 2 {
		t.Fatalf("expected 2 links in the summary, got %d (%v)", len(page.Links), page.Links)
	}
	if page.Links["link one"] != "https://example.com/a" {
		t.Errorf("expected link one to resolve to https://example.com/a, got %q", page.Links["link one"])
	}
}

func TestFormat_LinksSummaryOmittedWhenNotRequested(t *testing.T) {
	f := New(zap.NewNop(), t.TempDir(), "localhost:3000")
	snap := &browser.Snapshot{
		Href: "https://example.com",
		HTML: `<p>see <a href="https://example.com/a">link one</a></p>`,
	}

	page, err := f.Format(ModeMarkdown, snap, "", reqctx.New())
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	if len(page.Links) != 0 {
		t.Errorf("expected no links summary without the flag, got %v", page.Links)
	}
}

func TestFormattedPage_QualifiedRequiresTitleAndContentOrAlternative(t *testing.T) {
	p := &FormattedPage{}
	if p.Qualified() {
		t.Error("expected empty page to be unqualified")
	}
	p.Text = "something"
	if !p.Qualified() {
		t.Error("expected non-empty text to qualify a page")
	}
}
