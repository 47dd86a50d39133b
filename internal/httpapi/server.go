// Package httpapi is the thin HTTP layer above the core pipelines, grounded
// on the teacher's api/server.go http.ServeMux style and cmd/main.go's
// http.HandleFunc wiring.
package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"searchgate/internal/pipeline"
)

// Server wires the search and crawl pipelines to the HTTP surface in spec §6.
type Server struct {
	search *pipeline.SearchPipeline
	crawl  *pipeline.CrawlPipeline
	logger *zap.Logger
	host   string
}

func NewServer(search *pipeline.SearchPipeline, crawl *pipeline.CrawlPipeline, logger *zap.Logger, host string) *Server {
	return &Server{search: search, crawl: crawl, logger: logger, host: host}
}

// Handler builds the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/s/", s.handleSearch)
	mux.HandleFunc("/r/", s.handleCrawl)
	mux.HandleFunc("/r", s.handleCrawl)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
