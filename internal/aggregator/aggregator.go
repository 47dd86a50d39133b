// Package aggregator implements C5: fan-in of N concurrent Browser scrape
// streams into a sequence of slot-array emissions. The concurrency shape
// (one goroutine per unit of work, a shared mutex-guarded result, errors
// logged and swallowed per-peer) follows the teacher's crawler/worker.go
// pattern; per spec §9's redesign guidance, each emission is an immutable
// copy of the slot array rather than a pointer into shared mutable state,
// so a slow consumer can never observe a half-written slot.
package aggregator

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"searchgate/internal/browser"
)

// ScrapeMany implements scrapeMany(urls[], options) -> lazy sequence of
// (Snapshot|nil)[]. The returned channel emits the initial nil-filled slot
// array immediately, then a fresh copy of the slot array every time any
// stream yields a new snapshot, and a final copy once all streams have
// terminated. The channel is closed when done. Closing ctx (or the caller
// simply stopping the receive loop and calling the returned cancel) tears
// down every underlying scrape stream.
func ScrapeMany(ctx context.Context, b browser.Browser, urls []string, opts browser.ScrapeOptions, logger *zap.Logger) (<-chan []*browser.Snapshot, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan []*browser.Snapshot, 1)

	slots := make([]*browser.Snapshot, len(urls))
	var mu sync.Mutex

	// wake is a coalescing signal: multiple near-simultaneous slot updates
	// collapse into a single emission, matching spec §4.5's "replaceable
	// deferred" ordering note.
	wake := make(chan struct{}, 1)
	signal := func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	}

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(slot int, target string) {
			defer wg.Done()
			runStream(ctx, b, slot, target, opts, &mu, slots, signal, logger)
		}(i, u)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	go func() {
		defer close(out)
		defer cancel()

		emit := func() bool {
			mu.Lock()
			snapshot := append([]*browser.Snapshot(nil), slots...)
			mu.Unlock()
			select {
			case out <- snapshot:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				emit()
				return
			case <-wake:
				if !emit() {
					return
				}
			}
		}
	}()

	return out, cancel
}

func runStream(ctx context.Context, b browser.Browser, slot int, target string, opts browser.ScrapeOptions, mu *sync.Mutex, slots []*browser.Snapshot, signal func(), logger *zap.Logger) {
	stream, err := b.Scrape(ctx, target, opts)
	if err != nil {
		logger.Warn("scrape stream failed to start", zap.String("url", target), zap.Error(err))
		return
	}
	defer stream.Close()

	for {
		snap, ok, err := stream.Next(ctx)
		if err != nil {
			logger.Warn("scrape stream error", zap.String("url", target), zap.Error(err))
			return
		}
		if !ok {
			return
		}
		if snap == nil {
			continue
		}
		mu.Lock()
		slots[slot] = snap
		mu.Unlock()
		signal()
	}
}
