package config

import (
	"os"
	"time"
)

// Config holds the gateway's environment-derived settings.
type Config struct {
	Port                 string
	SearxngInstanceURL   string
	CachePath            string
	CacheValidFor        time.Duration
	CacheRetentionFor    time.Duration
	ScreenshotDir        string
	ScreenshotPublicHost string
	ScreenshotLifetime   time.Duration
}

// Load reads the gateway configuration from the environment, falling back to
// the same defaults the upstream reader deployment ships with.
func Load() *Config {
	port := getEnv("PORT", "3000")
	return &Config{
		Port:                 port,
		SearxngInstanceURL:   getEnv("SEARXNG_INSTANCE_URL", "http://localhost:8080"),
		CachePath:            getEnv("SEARCH_CACHE_PATH", "local-storage/search-cache.db"),
		CacheValidFor:        1 * time.Hour,
		CacheRetentionFor:    7 * 24 * time.Hour,
		ScreenshotDir:        getEnv("SCREENSHOT_DIR", "local-storage/instant-screenshots"),
		ScreenshotPublicHost: getEnv("SCREENSHOT_PUBLIC_HOST", "localhost:"+port),
		ScreenshotLifetime:   48 * time.Hour,
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
