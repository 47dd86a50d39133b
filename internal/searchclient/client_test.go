package searchclient

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"searchgate/internal/model"
)

func TestSearch_ParsesUpstreamResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "golang" {
			t.Errorf("expected q=golang, got %q", r.URL.Query().Get("q"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"query":"golang","number_of_results":1,"results":[{"url":"https://go.dev","title":"Go","content":"lang"}],"unresponsive_engines":["bing"]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil, zap.NewNop())
	resp, err := c.Search(t.Context(), model.SearchQuery{Text: "golang", Count: 5}, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].URL != "https://go.dev" {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
	if len(resp.UnresponsiveEngines) != 1 || resp.UnresponsiveEngines[0] != "bing" {
		t.Fatalf("unexpected unresponsive engines: %+v", resp.UnresponsiveEngines)
	}
}

func TestSearch_RetriesOn429ThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"url":"https://ok.example"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil, zap.NewNop())
	resp, err := c.Search(t.Context(), model.SearchQuery{Text: "x"}, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected one result after retry, got %+v", resp.Results)
	}
	if calls != 2 {
		t.Errorf("expected exactly 2 calls, got %d", calls)
	}
}

func TestSearch_NonRetryableErrorFailsFast(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, nil, zap.NewNop())
	_, err := c.Search(t.Context(), model.SearchQuery{Text: "x"}, "")
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 1 {
		t.Errorf("expected a single attempt for a non-429 failure, got %d", calls)
	}
}
