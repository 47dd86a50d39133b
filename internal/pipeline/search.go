package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"searchgate/internal/aggregator"
	"searchgate/internal/apierr"
	"searchgate/internal/browser"
	"searchgate/internal/model"
	"searchgate/internal/pageformat"
	"searchgate/internal/reqctx"
	"searchgate/internal/searchcache"
)

// defaultEarlyReturnTimeout is spec §4.6's 15s default for the early-return
// timer when the caller doesn't supply timeoutMs.
const defaultEarlyReturnTimeout = 15 * time.Second

// defaultStubCount is scenario 3's "capped at 5 default": a count=0 request
// still truncates the upstream results to a sane page size before stubbing
// them, it just never initiates scraping.
const defaultStubCount = 5

// SearchRequest is C6's input, per spec §4.6.
type SearchRequest struct {
	Text       string
	Count      int
	Categories []string
	Engines    []string
	Language   string
	NoCache    bool
	Mode       pageformat.Mode
	TimeoutMs  int
	UserAgent  string
	ScrapeOpts browser.ScrapeOptions
	RC         *reqctx.RequestContext
}

// SearchPipeline implements C6.
type SearchPipeline struct {
	cache     *searchcache.Cache
	browser   browser.Browser
	formatter *pageformat.Formatter
	logger    *zap.Logger
}

func NewSearchPipeline(cache *searchcache.Cache, b browser.Browser, formatter *pageformat.Formatter, logger *zap.Logger) *SearchPipeline {
	return &SearchPipeline{cache: cache, browser: b, formatter: formatter, logger: logger}
}

// Search implements the algorithm in spec §4.6.
func (p *SearchPipeline) Search(ctx context.Context, req SearchRequest) (Batch, error) {
	q := model.SearchQuery{
		Text:       req.Text,
		Count:      req.Count,
		Categories: req.Categories,
		Engines:    req.Engines,
		Language:   req.Language,
	}
	if q.Count == 0 {
		// Scenario 3: count=0 still truncates to a sane page size for the
		// stub batch, it just never initiates scraping.
		q.Count = defaultStubCount
	}
	resp, err := p.cache.Search(ctx, q, req.UserAgent, req.NoCache)
	if err != nil {
		return nil, err
	}

	if req.Count == 0 {
		return stubBatch(resp.Results), nil
	}

	urls := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		urls[i] = r.URL
	}

	aggCh, cancel := aggregator.ScrapeMany(ctx, p.browser, urls, req.ScrapeOpts, p.logger)
	defer cancel()

	timeout := defaultEarlyReturnTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	formatted := make(map[*browser.Snapshot]*pageformat.FormattedPage)
	var formattedMu sync.Mutex

	var lastBatch Batch
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case slots, ok := <-aggCh:
			if !ok {
				if timer != nil {
					timer.Stop()
				}
				if lastBatch == nil {
					return nil, apierr.New(apierr.AssertionFailure, "no content produced")
				}
				return reorganize(lastBatch, req.Count), nil
			}

			batch := p.buildBatch(slots, resp.Results, req, formatted, &formattedMu)
			lastBatch = batch

			if timerC == nil && anyQualified(batch) {
				timer = time.NewTimer(timeout)
				timerC = timer.C
			}

			if allQualified(batch) && len(batch) >= req.Count {
				if timer != nil {
					timer.Stop()
				}
				return reorganize(batch, req.Count), nil
			}

		case <-timerC:
			if lastBatch != nil {
				return reorganize(lastBatch, req.Count), nil
			}
			timerC = nil

		case <-ctx.Done():
			return nil, apierr.Wrap(apierr.Internal, "search request canceled", ctx.Err())
		}
	}
}

// buildBatch maps each slot to an Entry, formatting new snapshots in
// parallel and reusing prior formatting results for snapshots already seen
// in an earlier emission (keyed by snapshot identity).
func (p *SearchPipeline) buildBatch(slots []*browser.Snapshot, results []model.UpstreamResult, req SearchRequest, cache map[*browser.Snapshot]*pageformat.FormattedPage, mu *sync.Mutex) Batch {
	batch := make(Batch, len(slots))
	var wg sync.WaitGroup
	for i, snap := range slots {
		wg.Add(1)
		go func(i int, snap *browser.Snapshot) {
			defer wg.Done()
			batch[i] = p.formatSlot(i, snap, results, req, cache, mu)
		}(i, snap)
	}
	wg.Wait()
	return batch
}

func (p *SearchPipeline) formatSlot(i int, snap *browser.Snapshot, results []model.UpstreamResult, req SearchRequest, cache map[*browser.Snapshot]*pageformat.FormattedPage, mu *sync.Mutex) Entry {
	r := results[i]
	if snap == nil {
		return Entry{URL: r.URL, Title: r.Title, Description: r.Content}
	}

	mu.Lock()
	fp, ok := cache[snap]
	mu.Unlock()
	if ok {
		return entryFromFormatted(fp, r, req.Mode)
	}

	fp, err := p.formatter.Format(req.Mode, snap, r.URL, req.RC)
	if err != nil {
		p.logger.Warn("formatter failed for slot, falling back to stub", zap.Int("slot", i), zap.Error(err))
		return Entry{URL: r.URL, Title: r.Title, Description: r.Content, Body: snap.Text, HasBody: snap.Text != "", Qualified: snap.Text != ""}
	}

	mu.Lock()
	cache[snap] = fp
	mu.Unlock()
	return entryFromFormatted(fp, r, req.Mode)
}

func entryFromFormatted(fp *pageformat.FormattedPage, r model.UpstreamResult, mode pageformat.Mode) Entry {
	return Entry{
		URL:                firstNonEmpty(fp.URL, r.URL),
		Title:              firstNonEmpty(fp.Title, r.Title),
		Description:        r.Content,
		Body:               fp.String(mode),
		HasBody:            fp.Qualified(),
		TextRepresentation: fp.TextRepresentation,
		Qualified:          fp.Qualified(),
	}
}

func stubBatch(results []model.UpstreamResult) Batch {
	batch := make(Batch, len(results))
	for i, r := range results {
		batch[i] = Entry{URL: r.URL, Title: r.Title, Description: r.Content}
	}
	return batch
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
