package pipeline

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"searchgate/internal/apierr"
	"searchgate/internal/browser"
	"searchgate/internal/hostguard"
	"searchgate/internal/pageformat"
	"searchgate/internal/reqctx"
)

// CrawlPipeline implements C7.
type CrawlPipeline struct {
	browser   browser.Browser
	formatter *pageformat.Formatter
	guard     *hostguard.Guard
	logger    *zap.Logger
}

// NewCrawlPipeline builds a CrawlPipeline and blocks ownHost in guard once,
// per spec §4.7's "add own hostname to a circuit-breaker set".
func NewCrawlPipeline(b browser.Browser, formatter *pageformat.Formatter, guard *hostguard.Guard, logger *zap.Logger, ownHost string) *CrawlPipeline {
	if ownHost != "" {
		if u, err := url.Parse("http://" + ownHost); err == nil {
			if err := guard.Block(u.Hostname()); err != nil {
				logger.Warn("failed to block own hostname", zap.String("host", u.Hostname()), zap.Error(err))
			}
			b.BlockHost(u.Hostname())
		}
	}
	return &CrawlPipeline{browser: b, formatter: formatter, guard: guard, logger: logger}
}

// Crawl implements the algorithm in spec §4.7.
func (p *CrawlPipeline) Crawl(ctx context.Context, rawURL string, mode pageformat.Mode, opts browser.ScrapeOptions, rc *reqctx.RequestContext) (*pageformat.FormattedPage, error) {
	target, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	if u, perr := url.Parse(target); perr == nil && p.guard.Blocked(u.Hostname()) {
		return nil, apierr.New(apierr.ParamValidation, "refusing to crawl a circuit-broken host")
	}

	stream, err := p.browser.Scrape(ctx, target, opts)
	if err != nil {
		if isInvalidTLDOrDNS(err) {
			return p.formatter.Format(mode, errorSnapshot(target, err), target, rc)
		}
		return nil, apierr.Wrap(apierr.DownstreamFailure, "crawl scrape failed to start", err)
	}
	defer stream.Close()

	var last *browser.Snapshot
	for {
		snap, ok, err := stream.Next(ctx)
		if err != nil {
			if isInvalidTLDOrDNS(err) {
				return p.formatter.Format(mode, errorSnapshot(target, err), target, rc)
			}
			p.logger.Warn("crawl stream error", zap.String("url", target), zap.Error(err))
			break
		}
		if !ok {
			break
		}
		if snap == nil {
			continue
		}
		last = snap

		if opts.WaitForSelector != "" {
			continue
		}

		hasParsedContent := snap.Parsed != nil && snap.Parsed.Content != ""
		hasTitle := snap.Title != ""
		if !hasParsedContent && !hasTitle && !snap.PDF.Present {
			continue
		}
		return p.formatter.Format(mode, snap, target, rc)
	}

	if last == nil {
		return nil, apierr.New(apierr.AssertionFailure, "no content available")
	}
	return p.formatter.Format(mode, last, target, rc)
}

func errorSnapshot(target string, err error) *browser.Snapshot {
	return &browser.Snapshot{Href: target, Title: "Error", Text: err.Error()}
}
