package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"searchgate/config"
	"searchgate/internal/browser"
	"searchgate/internal/hostguard"
	"searchgate/internal/httpapi"
	"searchgate/internal/pageformat"
	"searchgate/internal/pipeline"
	"searchgate/internal/searchcache"
	"searchgate/internal/searchclient"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	store, err := searchcache.OpenBoltEntryStore(cfg.CachePath)
	if err != nil {
		logger.Fatal("failed to open search cache", zap.Error(err))
	}
	defer store.Close()

	upstream := searchclient.New(cfg.SearxngInstanceURL, &http.Client{Timeout: 30 * time.Second}, logger)
	cache := searchcache.New(store, upstream, logger, cfg.CacheValidFor, cfg.CacheRetentionFor)

	formatter := pageformat.New(logger, cfg.ScreenshotDir, cfg.ScreenshotPublicHost)

	// The headless-browser controller is an external collaborator (spec
	// §1); production deployments inject a real implementation here. The
	// in-memory Stub keeps this binary runnable standalone for smoke
	// testing the HTTP surface against an unscripted browser.Browser.
	b := browser.NewStub()
	guard, err := hostguard.NewBolt(store.DB())
	if err != nil {
		logger.Fatal("failed to open hostguard bucket", zap.Error(err))
	}

	searchPipeline := pipeline.NewSearchPipeline(cache, b, formatter, logger)
	crawlPipeline := pipeline.NewCrawlPipeline(b, formatter, guard, logger, cfg.ScreenshotPublicHost)

	server := httpapi.NewServer(searchPipeline, crawlPipeline, logger, cfg.ScreenshotPublicHost)

	mux := http.NewServeMux()
	mux.Handle("/", server.Handler())
	mux.Handle("/instant-screenshots/", http.StripPrefix("/instant-screenshots/", http.FileServer(http.Dir(cfg.ScreenshotDir))))

	go sweepScreenshots(cfg.ScreenshotDir, cfg.ScreenshotLifetime, logger)

	logger.Info("starting server", zap.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, mux); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// sweepScreenshots implements spec §6's "swept when older than 48 hours"
// persisted-state rule.
func sweepScreenshots(dir string, lifetime time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if time.Since(info.ModTime()) > lifetime {
				path := dir + "/" + entry.Name()
				if err := os.Remove(path); err != nil {
					logger.Warn("failed to sweep expired screenshot", zap.String("path", path), zap.Error(err))
				}
			}
		}
	}
}
