package searchcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"searchgate/internal/model"
)

type memStore struct {
	mu      sync.Mutex
	entries map[string][]CacheEntry
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string][]CacheEntry)}
}

func (m *memStore) Put(entry CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.QueryDigest] = append(m.entries[entry.QueryDigest], entry)
	return nil
}

func (m *memStore) Latest(digest string) (*CacheEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.entries[digest]
	if len(list) == 0 {
		return nil, false, nil
	}
	latest := list[0]
	for _, e := range list[1:] {
		if e.CreatedAt.After(latest.CreatedAt) {
			latest = e
		}
	}
	return &latest, true, nil
}

type fakeUpstream struct {
	mu    sync.Mutex
	calls int
	fn    func(calls int, q model.SearchQuery) (*model.UpstreamSearchResponse, error)
}

func (f *fakeUpstream) Search(ctx context.Context, q model.SearchQuery, userAgent string) (*model.UpstreamSearchResponse, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	return f.fn(n, q)
}

func waitForPut(store *memStore, digest string) {
	for i := 0; i < 200; i++ {
		if _, ok, _ := store.Latest(digest); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCache_MissFetchesAndPersists(t *testing.T) {
	store := newMemStore()
	upstream := &fakeUpstream{fn: func(n int, q model.SearchQuery) (*model.UpstreamSearchResponse, error) {
		return &model.UpstreamSearchResponse{Results: []model.UpstreamResult{{URL: "https://a.example", Title: "A"}}}, nil
	}}
	c := New(store, upstream, zap.NewNop(), time.Hour, 7*24*time.Hour)
	q := model.SearchQuery{Text: "cats", Count: 5}

	resp, err := c.Search(context.Background(), q, "ua", false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// Page 1 holds fewer than Count results, so page 2 is fetched and
	// concatenated; the fake answers both pages with the same result.
	if len(resp.Results) != 2 || resp.Results[0].Title != "A" || resp.Results[1].Title != "A" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	waitForPut(store, Digest(q))
	if _, ok, _ := store.Latest(Digest(q)); !ok {
		t.Error("expected entry to be persisted asynchronously")
	}
}

func TestCache_FreshHitSkipsUpstream(t *testing.T) {
	store := newMemStore()
	q := model.SearchQuery{Text: "dogs", Count: 5}
	store.Put(CacheEntry{
		QueryDigest: Digest(q),
		Response:    model.UpstreamSearchResponse{Results: []model.UpstreamResult{{Title: "cached"}}},
		CreatedAt:   time.Now(),
	})
	upstream := &fakeUpstream{fn: func(n int, q model.SearchQuery) (*model.UpstreamSearchResponse, error) {
		t.Fatal("upstream should not be called for a fresh hit")
		return nil, nil
	}}
	c := New(store, upstream, zap.NewNop(), time.Hour, 7*24*time.Hour)

	resp, err := c.Search(context.Background(), q, "ua", false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Results[0].Title != "cached" {
		t.Errorf("expected cached response, got %+v", resp)
	}
}

func TestCache_StaleFallbackWhenUpstreamFails(t *testing.T) {
	store := newMemStore()
	q := model.SearchQuery{Text: "birds", Count: 5}
	store.Put(CacheEntry{
		QueryDigest: Digest(q),
		Response:    model.UpstreamSearchResponse{Results: []model.UpstreamResult{{Title: "stale"}}},
		CreatedAt:   time.Now().Add(-2 * time.Hour),
	})
	upstream := &fakeUpstream{fn: func(n int, q model.SearchQuery) (*model.UpstreamSearchResponse, error) {
		return nil, errors.New("upstream down")
	}}
	c := New(store, upstream, zap.NewNop(), time.Hour, 7*24*time.Hour)

	resp, err := c.Search(context.Background(), q, "ua", false)
	if err != nil {
		t.Fatalf("expected stale fallback, got error: %v", err)
	}
	if resp.Results[0].Title != "stale" {
		t.Errorf("expected stale cached response, got %+v", resp)
	}
}

func TestCache_NoCacheBypassesStore(t *testing.T) {
	store := newMemStore()
	q := model.SearchQuery{Text: "fish", Count: 5}
	store.Put(CacheEntry{
		QueryDigest: Digest(q),
		Response:    model.UpstreamSearchResponse{Results: []model.UpstreamResult{{Title: "cached"}}},
		CreatedAt:   time.Now(),
	})
	upstream := &fakeUpstream{fn: func(n int, q model.SearchQuery) (*model.UpstreamSearchResponse, error) {
		return &model.UpstreamSearchResponse{Results: []model.UpstreamResult{{Title: "fresh"}}}, nil
	}}
	c := New(store, upstream, zap.NewNop(), time.Hour, 7*24*time.Hour)

	resp, err := c.Search(context.Background(), q, "ua", true)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Results[0].Title != "fresh" {
		t.Errorf("expected noCache to bypass the store, got %+v", resp)
	}
}

func TestDigest_StableUnderCategoryOrder(t *testing.T) {
	q1 := model.SearchQuery{Text: "x", Count: 5, Categories: []string{"a", "b"}}
	q2 := model.SearchQuery{Text: "x", Count: 5, Categories: []string{"b", "a"}}
	if Digest(q1) != Digest(q2) {
		t.Error("expected digest to be independent of category order")
	}
	q3 := model.SearchQuery{Text: "y", Count: 5, Categories: []string{"a", "b"}}
	if Digest(q1) == Digest(q3) {
		t.Error("expected differing text to change the digest")
	}
}
