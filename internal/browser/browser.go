// Package browser declares the contract of the headless-browser control
// component. Per spec §1 the browser itself, its abuse detection, and the
// DOM utility that prunes snapshots are external collaborators — this
// package only describes the shape the core reads and writes.
package browser

import "context"

// PDFInfo is set on a Snapshot when the producer identifies the fetched
// resource as a PDF rather than an HTML document.
type PDFInfo struct {
	Present bool
}

// Parsed holds the readability-style distillation of a page, whether
// supplied by the Browser or backfilled locally by the formatter.
type Parsed struct {
	Title         string
	Content       string // HTML fragment; plain text when backfilled by the formatter's trafilatura path
	PublishedTime string
}

// Image is a single <img> discovered in a snapshot, pre-resolution.
type Image struct {
	Src string
	Alt string
}

// Snapshot is the opaque, producer-defined page snapshot from spec §3. The
// core only reads the fields below; it never retains a Snapshot beyond the
// request that produced it.
type Snapshot struct {
	Href         string
	Title        string
	HTML         string
	Text         string
	Parsed       *Parsed
	Imgs         []Image
	Screenshot   []byte
	Pageshot     []byte
	Rebase       string
	MaxElemDepth int
	ElemCount    int
	PDF          PDFInfo
}

// ScrapeOptions carries the per-request scrape directives. WaitForSelector
// is the crawl-time directive from spec §4.7: keep waiting on the browser
// until this selector appears (or the iterator ends).
type ScrapeOptions struct {
	WaitForSelector string
	TargetSelector  string
	RemoveSelector  string
	ProxyURL        string
	UserAgent       string
}

// Stream yields progressively-better Snapshots for a single URL. Callers
// range over Next until ok is false; a non-nil err on the final call is the
// stream's terminal error, if any.
type Stream interface {
	Next(ctx context.Context) (snap *Snapshot, ok bool, err error)
	Close() error
}

// Browser is the external headless-browser control component. The core
// depends only on this interface; production wiring supplies a real
// implementation, tests supply Stub.
type Browser interface {
	// Scrape opens a single stream of snapshots for url.
	Scrape(ctx context.Context, url string, opts ScrapeOptions) (Stream, error)
	// BlockHost adds host to the browser's circuit breaker, preventing the
	// browser from visiting it (used by the crawl pipeline to stop a
	// request from crawling the gateway's own host).
	BlockHost(host string)
}
