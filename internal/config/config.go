package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP server port.
	Port int

	// DatabasePath is the SQLite archive file.
	DatabasePath string

	// StreamURL is the websocket post stream endpoint. Empty disables the
	// stream subscriber.
	StreamURL string

	// TumblrAPIURL is the base URL of the Tumblr v2 API.
	TumblrAPIURL string

	// TumblrAPIKey is the OAuth consumer key used for API reads. Empty
	// disables syncing from Tumblr.
	TumblrAPIKey string

	// SyncBlogs are the blogs synced periodically.
	SyncBlogs []string

	// SyncInterval is the time between periodic syncs.
	SyncInterval time.Duration

	// LogLevel is the minimum level logged.
	LogLevel slog.Level
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port := 3000
	if p := os.Getenv("PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
	}

	dbPath := os.Getenv("ARCHIVE_DB_PATH")
	if dbPath == "" {
		dbPath = "archive.db"
	}

	apiURL := os.Getenv("TUMBLR_API_URL")
	if apiURL == "" {
		apiURL = "https://api.tumblr.com"
	}

	var blogs []string
	for _, b := range strings.Split(os.Getenv("TUMBLR_BLOGS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			blogs = append(blogs, b)
		}
	}

	interval := time.Hour
	if v := os.Getenv("ARCHIVE_SYNC_INTERVAL"); v != "" {
		var err error
		interval, err = time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ARCHIVE_SYNC_INTERVAL: %w", err)
		}
		if interval <= 0 {
			return nil, fmt.Errorf("invalid ARCHIVE_SYNC_INTERVAL: must be positive, got %s", interval)
		}
	}

	var level slog.Level
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
	}

	cfg := &Config{
		Port:         port,
		DatabasePath: dbPath,
		StreamURL:    os.Getenv("ARCHIVE_STREAM_URL"),
		TumblrAPIURL: apiURL,
		TumblrAPIKey: os.Getenv("TUMBLR_API_KEY"),
		SyncBlogs:    blogs,
		SyncInterval: interval,
		LogLevel:     level,
	}
	if len(cfg.SyncBlogs) > 0 && cfg.TumblrAPIKey == "" {
		return nil, fmt.Errorf("TUMBLR_API_KEY is required when TUMBLR_BLOGS is set")
	}
	return cfg, nil
}
