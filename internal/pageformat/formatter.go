package pageformat

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/google/uuid"
	"github.com/markusmobius/go-trafilatura"
	"go.uber.org/zap"

	"searchgate/internal/browser"
	"searchgate/internal/markdown"
	"searchgate/internal/reqctx"
)

// minWordCountForReadability mirrors the teacher's
// crawler/content_extractor.go MinWordCount boilerplate threshold: below
// this, the readability extraction is considered too thin and we fall
// through to trafilatura.
const minWordCountForReadability = 120

const (
	maxElemDepth = 256
	maxElemCount = 70000
)

// Formatter implements C4's format(mode, snapshot, nominalUrl) -> FormattedPage.
type Formatter struct {
	logger               *zap.Logger
	screenshotDir        string
	screenshotPublicHost string
}

// New builds a Formatter. screenshotDir is where screenshot/pageshot bytes
// are persisted; screenshotPublicHost is used to build the public URL.
func New(logger *zap.Logger, screenshotDir, screenshotPublicHost string) *Formatter {
	return &Formatter{logger: logger, screenshotDir: screenshotDir, screenshotPublicHost: screenshotPublicHost}
}

// Format dispatches on mode per spec §4.4.
func (f *Formatter) Format(mode Mode, snap *browser.Snapshot, nominalURL string, rc *reqctx.RequestContext) (*FormattedPage, error) {
	page := &FormattedPage{
		Title:         snap.Title,
		URL:           firstNonEmpty(snap.Href, nominalURL),
		PublishedTime: publishedTimeOf(snap),
	}

	switch mode {
	case ModeScreenshot:
		return f.formatScreenshot(snap, page, false)
	case ModePageshot:
		return f.formatScreenshot(snap, page, true)
	case ModeHTML:
		page.HTML = snap.HTML
		page.TextRepresentation = snap.HTML
		return page, nil
	case ModeText:
		page.Text = snap.Text
		page.TextRepresentation = snap.Text
		return page, nil
	default:
		return f.formatMarkdown(snap, page, rc)
	}
}

func (f *Formatter) formatScreenshot(snap *browser.Snapshot, page *FormattedPage, pageshot bool) (*FormattedPage, error) {
	data := snap.Screenshot
	if pageshot {
		data = snap.Pageshot
	}
	if len(data) == 0 {
		return page, nil
	}

	kind := "screenshot"
	if pageshot {
		kind = "pageshot"
	}
	filename := fmt.Sprintf("%s-%s.png", kind, uuid.NewString())
	if err := os.MkdirAll(f.screenshotDir, 0755); err != nil {
		return nil, fmt.Errorf("create screenshot dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(f.screenshotDir, filename), data, 0644); err != nil {
		return nil, fmt.Errorf("persist screenshot: %w", err)
	}

	publicURL := fmt.Sprintf("http://%s/instant-screenshots/%s", f.screenshotPublicHost, filename)
	if pageshot {
		page.PageshotURL = publicURL
		page.HTML = snap.HTML
		page.TextRepresentation = publicURL + "\n"
	} else {
		page.ScreenshotURL = publicURL
		page.TextRepresentation = publicURL + "\n"
	}
	return page, nil
}

func (f *Formatter) formatMarkdown(snap *browser.Snapshot, page *FormattedPage, rc *reqctx.RequestContext) (*FormattedPage, error) {
	if snap.PDF.Present {
		page.Content = firstNonEmpty(parsedContent(snap), snap.Text)
		return f.applyMixins(page, snap, rc), nil
	}

	if snap.MaxElemDepth > maxElemDepth || snap.ElemCount > maxElemCount {
		f.logger.Warn("snapshot too large, degrading to plain text",
			zap.Int("max_elem_depth", snap.MaxElemDepth),
			zap.Int("elem_count", snap.ElemCount))
		page.Content = snap.Text
		return f.applyMixins(page, snap, rc), nil
	}

	baseURL := parseBase(firstNonEmpty(snap.Rebase, snap.Href))
	f.backfillParsed(snap, baseURL)

	content, links, err := f.convertMarkdownPath(snap, baseURL, rc)
	if err != nil {
		return nil, err
	}
	page.Content = content
	page.WithLinks(links, rc != nil && rc.WithLinksSummary)
	f.logArticleQualityMetrics(page.URL, content)
	return f.applyMixins(page, snap, rc), nil
}

// convertMarkdownPath implements the markdown-path algorithm of spec §4.4
// step 3: two-pass conversion, readability-vs-full comparison, and the
// raw-HTML/empty fallbacks. It returns the links discovered by the
// full-document conversion, whichever pass supplies the content, so the
// caller can attach the links-summary mixin; when the content falls back to
// snap.Text no links are returned.
func (f *Formatter) convertMarkdownPath(snap *browser.Snapshot, baseURL *url.URL, rc *reqctx.RequestContext) (string, map[string]string, error) {
	opts := markdown.Options{BaseURL: baseURL, ImgDataURLToObjectURL: true, ImgObjectOrigin: originOf(rc)}

	res1 := markdown.Convert(snap.HTML, opts)
	par1 := res1.Markdown

	var res2 markdown.Result
	if snap.Parsed != nil && snap.Parsed.Content != "" {
		res2 = markdown.Convert(snap.Parsed.Content, opts)
	}
	par2 := res2.Markdown

	var content string
	var links map[string]string
	if par2 != "" && float64(len(par2)) >= 0.3*float64(len(par1)) {
		noRulesOpts := opts
		noRulesOpts.NoRules = true
		res3 := markdown.Convert(snap.Parsed.Content, noRulesOpts)
		content, links = res3.Markdown, res1.Links
	} else {
		content, links = par1, res1.Links
	}

	if content == "" || looksLikeRawHTML(content) {
		res1 = markdown.Convert(snap.HTML, opts)
		content, links = res1.Markdown, res1.Links
	}
	if content == "" || looksLikeRawHTML(content) {
		content, links = snap.Text, nil
	}
	return content, links, nil
}

func looksLikeRawHTML(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">")
}

// backfillParsed supplements a snapshot missing parsed.content, per
// SPEC_FULL.md's C4 enrichment: try go-readability first, fall back to
// go-trafilatura when the extracted text is too thin.
func (f *Formatter) backfillParsed(snap *browser.Snapshot, baseURL *url.URL) {
	if snap.Parsed != nil && snap.Parsed.Content != "" {
		return
	}
	if snap.HTML == "" || baseURL == nil {
		return
	}

	if article, err := readability.FromReader(strings.NewReader(snap.HTML), baseURL); err == nil {
		wordCount := len(strings.Fields(article.TextContent))
		if wordCount >= minWordCountForReadability {
			snap.Parsed = &browser.Parsed{
				Title:   article.Title,
				Content: article.Content,
			}
			return
		}
		f.logger.Debug("readability extraction too thin, trying trafilatura",
			zap.Int("word_count", wordCount))
	} else {
		f.logger.Debug("readability extraction failed", zap.Error(err))
	}

	result, err := trafilatura.Extract(strings.NewReader(snap.HTML), trafilatura.Options{OriginalURL: baseURL})
	if err != nil {
		f.logger.Debug("trafilatura extraction failed", zap.Error(err))
		return
	}
	if result.ContentText == "" {
		return
	}
	snap.Parsed = &browser.Parsed{
		Title:   result.Metadata.Title,
		Content: result.ContentText,
	}
}

func (f *Formatter) applyMixins(page *FormattedPage, snap *browser.Snapshot, rc *reqctx.RequestContext) *FormattedPage {
	if rc == nil {
		return page
	}
	if rc.WithImagesSummary && len(snap.Imgs) > 0 {
		page.Images = imagesSummary(snap.Imgs)
	}
	return page
}

// WithLinks attaches a links-summary mixin computed by the markdown
// rewriter, per spec §4.4's "later duplicates overwrite earlier" rule.
func (p *FormattedPage) WithLinks(links map[string]string, want bool) *FormattedPage {
	if want && len(links) > 0 {
		p.Links = links
	}
	return p
}

func imagesSummary(imgs []browser.Image) map[string]string {
	positions := map[string][]int{}
	for i, img := range imgs {
		positions[img.Src] = append(positions[img.Src], i+1)
	}
	out := map[string]string{}
	for i, img := range imgs {
		idxs := positions[img.Src]
		if idxs[0] != i+1 {
			continue // already emitted this src's combined key
		}
		key := "Image "
		for j, n := range idxs {
			if j > 0 {
				key += ","
			}
			key += fmt.Sprintf("%d", n)
		}
		key += fmt.Sprintf(": %s", img.Alt)
		out[key] = img.Src
	}
	return out
}

var sentenceBoundary = regexp.MustCompile(`[.!?]+`)

// logArticleQualityMetrics logs a non-authoritative article-quality score
// for observability parity with the teacher's article_quality_metrics log
// line (crawler/text_extraction.go's ExtractText). The score never affects
// qualification; it is computed and logged only.
func (f *Formatter) logArticleQualityMetrics(pageURL, text string) {
	words := strings.Fields(text)
	wordCount := len(words)
	if wordCount == 0 {
		return
	}

	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.Trim(w, ".,!?\"'():;[]{}"))
		if w != "" {
			unique[w] = struct{}{}
		}
	}
	vocabRichness := float64(len(unique)) / float64(wordCount)

	sentenceCount := len(sentenceBoundary.Split(text, -1))
	if sentenceCount == 0 {
		sentenceCount = 1
	}
	avgSentenceLength := float64(wordCount) / float64(sentenceCount)

	score := qualityScore(lengthScore(wordCount), richnessScore(vocabRichness), sentenceScore(sentenceCount, avgSentenceLength))

	f.logger.Info("article_quality_metrics",
		zap.String("url", pageURL),
		zap.Int("word_count", wordCount),
		zap.Float64("vocab_richness", vocabRichness),
		zap.Int("sentence_count", sentenceCount),
		zap.Float64("avg_sentence_length", avgSentenceLength),
		zap.Int("text_size", len(text)),
		zap.Float64("score", score))
}

func lengthScore(wordCount int) float64 {
	switch {
	case wordCount < 200:
		return 0.0
	case wordCount > 10000:
		return 0.7
	default:
		return 1.0
	}
}

func richnessScore(vocabRichness float64) float64 {
	switch {
	case vocabRichness < 0.25:
		return 0.0
	case vocabRichness > 0.6:
		return 0.8
	default:
		return 1.0
	}
}

func sentenceScore(sentenceCount int, avgSentenceLength float64) float64 {
	if sentenceCount < 5 {
		return 0.0
	}
	if avgSentenceLength < 10 || avgSentenceLength > 30 {
		return 0.7
	}
	return 1.0
}

func qualityScore(length, richness, sentence float64) float64 {
	return (0.50*length + 0.30*richness + 0.20*sentence) * 100
}

func publishedTimeOf(snap *browser.Snapshot) string {
	if snap.Parsed != nil {
		return snap.Parsed.PublishedTime
	}
	return ""
}

func parsedContent(snap *browser.Snapshot) string {
	if snap.Parsed != nil {
		return snap.Parsed.Content
	}
	return ""
}

func parseBase(raw string) *url.URL {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return u
}

func originOf(rc *reqctx.RequestContext) string {
	if rc == nil || rc.Host == "" {
		return "local"
	}
	return rc.Host
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
