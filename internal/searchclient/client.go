// Package searchclient implements C1: a one-shot call to the upstream
// meta-search engine, grounded on the teacher's search/serpapi_search.go
// pagination and query-building style, generalized to SearXNG's JSON API.
package searchclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"searchgate/internal/apierr"
	"searchgate/internal/model"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

const maxAttempts = 5

// Client issues search(SearchQuery) -> UpstreamSearchResponse calls against
// a SearXNG-compatible instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// New builds a Client against baseURL (e.g. http://localhost:8080).
func New(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient, logger: logger}
}

// rawResponse mirrors the upstream JSON shape before conversion to
// model.UpstreamSearchResponse.
type rawResponse struct {
	Query               string      `json:"query"`
	NumberOfResults     int         `json:"number_of_results"`
	Results             []rawResult `json:"results"`
	Answers             []string    `json:"answers"`
	Corrections         []string    `json:"corrections"`
	Infoboxes           []any       `json:"infoboxes"`
	Suggestions         []string    `json:"suggestions"`
	UnresponsiveEngines []any       `json:"unresponsive_engines"`
}

type rawResult struct {
	URL      string  `json:"url"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Engine   string  `json:"engine"`
	Score    float64 `json:"score"`
	Category string  `json:"category"`
}

// Search issues a single GET against {baseUrl}/search and returns the
// parsed upstream response, making up to maxAttempts attempts in total
// while the upstream answers 429.
func (c *Client) Search(ctx context.Context, q model.SearchQuery, userAgent string) (*model.UpstreamSearchResponse, error) {
	apiURL := c.baseURL + "/search?" + buildQuery(q).Encode()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.doOnce(ctx, apiURL, userAgent)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRateLimited(err) {
			return nil, apierr.Wrap(apierr.DownstreamFailure, "search upstream failed", err)
		}

		backoff := 500*time.Millisecond + time.Duration(rand.Int63n(1000))*time.Millisecond
		c.logger.Warn("upstream rate limited, backing off",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, apierr.Wrap(apierr.DownstreamFailure, "search upstream canceled", ctx.Err())
		}
	}
	return nil, apierr.Wrap(apierr.DownstreamFailure, "search upstream exhausted retries", lastErr)
}

type rateLimitedError struct{ status int }

func (e *rateLimitedError) Error() string { return fmt.Sprintf("upstream returned %d", e.status) }

func isRateLimited(err error) bool {
	rl, ok := err.(*rateLimitedError)
	return ok && rl.status == http.StatusTooManyRequests
}

func (c *Client) doOnce(ctx context.Context, apiURL, userAgent string) (*model.UpstreamSearchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &rateLimitedError{status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upstream returned %d", resp.StatusCode)
	}

	var raw rawResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return toModel(raw), nil
}

func toModel(raw rawResponse) *model.UpstreamSearchResponse {
	results := make([]model.UpstreamResult, 0, len(raw.Results))
	for _, r := range raw.Results {
		results = append(results, model.UpstreamResult{
			URL:      r.URL,
			Title:    r.Title,
			Content:  r.Content,
			Engine:   r.Engine,
			Score:    r.Score,
			Category: r.Category,
		})
	}
	unresponsive := make([]string, 0, len(raw.UnresponsiveEngines))
	for _, u := range raw.UnresponsiveEngines {
		if s, ok := u.(string); ok {
			unresponsive = append(unresponsive, s)
		}
	}
	return &model.UpstreamSearchResponse{
		Query:               raw.Query,
		TotalResults:        raw.NumberOfResults,
		Results:             results,
		Answers:             raw.Answers,
		Corrections:         raw.Corrections,
		Infoboxes:           raw.Infoboxes,
		Suggestions:         raw.Suggestions,
		UnresponsiveEngines: unresponsive,
	}
}

func buildQuery(q model.SearchQuery) url.Values {
	v := url.Values{}
	v.Set("q", q.Text)
	v.Set("format", "json")
	if q.Language != "" {
		v.Set("language", q.Language)
	}
	if q.PageNumber > 0 {
		v.Set("pageno", strconv.Itoa(q.PageNumber))
	}
	if len(q.Categories) > 0 {
		v.Set("categories", strings.Join(q.Categories, ","))
	}
	if len(q.Engines) > 0 {
		v.Set("engines", strings.Join(q.Engines, ","))
	}
	return v
}
