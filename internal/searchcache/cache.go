package searchcache

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/json"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"searchgate/internal/apierr"
	"searchgate/internal/model"
)

// Upstream is the narrow slice of searchclient.Client this package needs,
// kept as an interface so the cache can be tested without an HTTP server.
type Upstream interface {
	Search(ctx context.Context, q model.SearchQuery, userAgent string) (*model.UpstreamSearchResponse, error)
}

// Cache implements C2: cachedSearch(query, noCache) -> UpstreamSearchResponse.
type Cache struct {
	store    EntryStore
	upstream Upstream
	logger   *zap.Logger
	validFor time.Duration
	keepFor  time.Duration
}

// New builds a Cache. validFor is the fresh window (1h per spec), keepFor
// is the retention window (7d per spec) after which entries are expired.
func New(store EntryStore, upstream Upstream, logger *zap.Logger, validFor, keepFor time.Duration) *Cache {
	return &Cache{store: store, upstream: upstream, logger: logger, validFor: validFor, keepFor: keepFor}
}

// Search implements the algorithm in spec §4.2.
func (c *Cache) Search(ctx context.Context, q model.SearchQuery, userAgent string, noCache bool) (*model.UpstreamSearchResponse, error) {
	digest := Digest(q)

	var staleFallback *model.UpstreamSearchResponse
	if !noCache {
		entry, ok, err := c.store.Latest(digest)
		if err != nil {
			c.logger.Warn("cache lookup failed", zap.Error(err))
		} else if ok {
			age := time.Since(entry.CreatedAt)
			switch {
			case age < c.validFor:
				return &entry.Response, nil
			case age < c.keepFor:
				resp := entry.Response
				staleFallback = &resp
			}
		}
	}

	resp, err := c.fetchPaginated(ctx, q, userAgent)
	if err != nil {
		if staleFallback != nil {
			c.logger.Warn("upstream search failed, serving stale cache entry", zap.Error(err))
			return staleFallback, nil
		}
		return nil, err
	}

	now := time.Now()
	entry := CacheEntry{
		QueryDigest: digest,
		Query:       q,
		Response:    *resp,
		CreatedAt:   now,
		ExpireAt:    now.Add(c.keepFor),
	}
	go func() {
		if err := c.store.Put(entry); err != nil {
			c.logger.Error("failed to persist cache entry", zap.String("digest", digest), zap.Error(err))
		}
	}()

	return resp, nil
}

// fetchPaginated implements step 5 of spec §4.2: fetch page 1, and if it
// came up short of q.Count, sleep and fetch page 2, then concatenate and
// truncate to q.Count.
func (c *Cache) fetchPaginated(ctx context.Context, q model.SearchQuery, userAgent string) (*model.UpstreamSearchResponse, error) {
	page1 := q
	page1.PageNumber = 1
	resp, err := c.upstream.Search(ctx, page1, userAgent)
	if err != nil {
		return nil, apierr.Wrap(apierr.DownstreamFailure, "search upstream failed", err)
	}

	if len(resp.Results) < q.Count {
		sleepFor := 1000*time.Millisecond + time.Duration(rand.Int63n(1000))*time.Millisecond
		select {
		case <-time.After(sleepFor):
		case <-ctx.Done():
			return resp, nil
		}

		page2 := q
		page2.PageNumber = 2
		more, err := c.upstream.Search(ctx, page2, userAgent)
		if err == nil {
			resp.Results = append(resp.Results, more.Results...)
			resp.UnresponsiveEngines = mergeUnique(resp.UnresponsiveEngines, more.UnresponsiveEngines)
		} else {
			c.logger.Warn("second page search failed, continuing with first page only", zap.Error(err))
		}
	}

	if len(resp.Results) > q.Count {
		resp.Results = resp.Results[:q.Count]
	}
	return resp, nil
}

func mergeUnique(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string{}, a...)
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Digest computes the MD5-base64 digest of a deterministic, key-sorted
// serialization of q, per spec §3.
func Digest(q model.SearchQuery) string {
	canonical := canonicalize(q)
	sum := md5.Sum([]byte(canonical))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// canonicalize serializes q into a key-sorted JSON object so two queries
// with identical field values always produce the same bytes.
func canonicalize(q model.SearchQuery) string {
	categories := append([]string{}, q.Categories...)
	engines := append([]string{}, q.Engines...)
	sort.Strings(categories)
	sort.Strings(engines)

	m := map[string]any{
		"categories":  categories,
		"count":       q.Count,
		"engines":     engines,
		"language":    q.Language,
		"page_number": q.PageNumber,
		"text":        q.Text,
	}
	b, _ := json.Marshal(m) // map keys serialize in sorted order
	return string(b)
}
