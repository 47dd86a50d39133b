package browser

import (
	"context"
	"sync"
)

// Stub is an in-memory Browser double for pipeline tests. Each URL is
// pre-loaded with an ordered sequence of snapshots (or a terminal error);
// Scrape replays them one per Next call.
type Stub struct {
	mu      sync.Mutex
	scripts map[string]*script
	blocked map[string]bool
}

type script struct {
	snaps []*Snapshot
	err   error
	delay chan struct{} // not read by Next, which returns each snapshot without waiting
}

// NewStub returns an empty Stub.
func NewStub() *Stub {
	return &Stub{
		scripts: make(map[string]*script),
		blocked: make(map[string]bool),
	}
}

// Script registers the snapshot sequence Scrape(url) will replay. A nil
// entry in snaps yields (nil, true, nil) — a "still nothing" tick.
func (s *Stub) Script(url string, snaps []*Snapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[url] = &script{snaps: snaps, err: err}
}

func (s *Stub) Scrape(ctx context.Context, url string, opts ScrapeOptions) (Stream, error) {
	s.mu.Lock()
	sc, ok := s.scripts[url]
	blocked := s.blocked[hostOf(url)]
	s.mu.Unlock()
	if blocked {
		return nil, context.Canceled
	}
	if !ok {
		sc = &script{}
	}
	return &stubStream{script: sc}, nil
}

func (s *Stub) BlockHost(host string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked[host] = true
}

type stubStream struct {
	script *script
	i      int
}

func (s *stubStream) Next(ctx context.Context) (*Snapshot, bool, error) {
	if s.i >= len(s.script.snaps) {
		return nil, false, s.script.err
	}
	snap := s.script.snaps[s.i]
	s.i++
	return snap, true, nil
}

func (s *stubStream) Close() error { return nil }

func hostOf(rawURL string) string {
	for i := 0; i < len(rawURL); i++ {
		if rawURL[i] == '/' && i+1 < len(rawURL) && rawURL[i+1] == '/' {
			rest := rawURL[i+2:]
			for j := 0; j < len(rest); j++ {
				if rest[j] == '/' {
					return rest[:j]
				}
			}
			return rest
		}
	}
	return rawURL
}
