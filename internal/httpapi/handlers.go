package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"searchgate/internal/apierr"
	"searchgate/internal/browser"
	"searchgate/internal/pageformat"
	"searchgate/internal/pipeline"
	"searchgate/internal/reqctx"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	searchText, err := pathTail(r.URL.Path, "/s/")
	if err != nil {
		writeError(w, err)
		return
	}

	req := pipeline.SearchRequest{
		Text:      searchText,
		Count:     clampCount(r.URL.Query().Get("count"), 5),
		NoCache:   r.Header.Get("X-No-Cache") != "",
		Mode:      modeFromHeader(r.Header.Get("X-Respond-With")),
		UserAgent: r.Header.Get("User-Agent"),
		RC:        requestContextFrom(r, s.host),
	}
	if v := r.URL.Query().Get("categories"); v != "" {
		req.Categories = strings.Split(v, ",")
	}
	if v := r.URL.Query().Get("engines"); v != "" {
		req.Engines = strings.Split(v, ",")
	}
	if v := r.Header.Get("x-categories"); v != "" {
		req.Categories = append(req.Categories, splitOperatorList(v)...)
	}
	if v := r.Header.Get("x-engines"); v != "" {
		req.Engines = append(req.Engines, splitOperatorList(v)...)
	}
	if v := r.Header.Get("X-Locale"); v != "" {
		req.Language = v
	}
	if v := r.Header.Get("x-language"); v != "" {
		req.Language = v
	}
	if v := r.Header.Get("X-Timeout"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			req.TimeoutMs = secs * 1000
		}
	}

	batch, err := s.search.Search(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(batch.String()))
}

type crawlBody struct {
	URL         string `json:"url"`
	HTML        string `json:"html"`
	RespondWith string `json:"respondWith"`
	Timeout     int    `json:"timeout"`
}

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var (
		target string
		mode   pageformat.Mode
		opts   browser.ScrapeOptions
	)

	if r.Method == http.MethodPost {
		var body crawlBody
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, apierr.Wrap(apierr.ParamValidation, "failed to read request body", err))
			return
		}
		if err := json.Unmarshal(data, &body); err != nil {
			writeError(w, apierr.Wrap(apierr.ParamValidation, "invalid JSON body", err))
			return
		}
		target = body.URL
		mode = modeFromHeader(body.RespondWith)
	} else {
		tail, err := pathTail(r.URL.Path, "/r/")
		if err != nil || tail == "" {
			target = r.URL.Query().Get("url")
		} else {
			target = tail
		}
		mode = modeFromHeader(r.Header.Get("X-Respond-With"))
		opts = browser.ScrapeOptions{
			WaitForSelector: r.Header.Get("X-Wait-For-Selector"),
			TargetSelector:  r.Header.Get("X-Target-Selector"),
			RemoveSelector:  r.Header.Get("X-Remove-Selector"),
			ProxyURL:        r.Header.Get("X-Proxy-Url"),
		}
	}

	if target == "" {
		writeError(w, apierr.New(apierr.ParamValidation, "missing url"))
		return
	}

	rc := requestContextFrom(r, s.host)
	page, err := s.crawl.Crawl(r.Context(), target, mode, opts, rc)
	if err != nil {
		writeError(w, err)
		return
	}

	if mode == pageformat.ModeScreenshot && page.ScreenshotURL != "" {
		http.Redirect(w, r, page.ScreenshotURL, http.StatusFound)
		return
	}
	if mode == pageformat.ModePageshot && page.PageshotURL != "" {
		http.Redirect(w, r, page.PageshotURL, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(page.String(mode)))
}

func pathTail(path, prefix string) (string, error) {
	if !strings.HasPrefix(path, prefix) {
		return "", nil
	}
	tail := path[len(prefix):]
	decoded, err := url.QueryUnescape(tail)
	if err != nil {
		return "", apierr.Wrap(apierr.ParamValidation, "malformed path", err)
	}
	return decoded, nil
}

func modeFromHeader(v string) pageformat.Mode {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "html":
		return pageformat.ModeHTML
	case "text":
		return pageformat.ModeText
	case "screenshot":
		return pageformat.ModeScreenshot
	case "pageshot":
		return pageformat.ModePageshot
	default:
		return pageformat.ModeMarkdown
	}
}

func splitOperatorList(v string) []string {
	parts := strings.Split(v, ", ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func clampCount(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n < 1 {
		return 1
	}
	if n > 20 {
		return 20
	}
	return n
}

func requestContextFrom(r *http.Request, host string) *reqctx.RequestContext {
	rc := reqctx.New()
	rc.UserAgent = r.Header.Get("User-Agent")
	rc.Host = host
	rc.WithImagesSummary = r.Header.Get("X-With-Images-Summary") != ""
	rc.WithLinksSummary = r.Header.Get("X-With-Links-Summary") != ""
	rc.WithGeneratedAlt = r.Header.Get("X-With-Generated-Alt") != ""
	rc.NoCache = r.Header.Get("X-No-Cache") != ""
	return rc
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apierr.CodeOf(err) {
	case apierr.ParamValidation:
		status = http.StatusBadRequest
	case apierr.AssertionFailure:
		status = http.StatusNotFound
	case apierr.DownstreamFailure, apierr.Internal:
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)

	msg := err.Error()
	var ae *apierr.Error
	if errors.As(err, &ae) {
		msg = ae.Msg
	}
	w.Write([]byte(msg))
}
