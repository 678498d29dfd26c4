package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreFirestore = "firestore"
	StoreMongo     = "mongo"

	BrowserChromedp   = "chromedp"
	BrowserPlaywright = "playwright"
)

type Config struct {
	StoreBackend       string
	ProjectID          string
	CredentialsFile    string
	MongoURI           string
	MongoDatabase      string
	Collection         string
	DirectoryURL       string
	BrowserBackend     string
	Headless           bool
	RenderTimeout      time.Duration
	FilterSettle       time.Duration
	TabSettle          time.Duration
	BusinessDelay      time.Duration
	DiscoveryRetries   int
	SkipRecorded       bool
	DiscordWebhookURL  string
	Port               string
	RunOnce            bool
	SelectorConfigPath string
}

func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		StoreBackend:       envOr("STORE_BACKEND", StoreFirestore),
		ProjectID:          os.Getenv("GOOGLE_CLOUD_PROJECT"),
		CredentialsFile:    os.Getenv("FIRESTORE_CREDENTIALS_FILE"),
		MongoURI:           envOr("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:      envOr("MONGO_DATABASE", "deals"),
		Collection:         envOr("DEALS_COLLECTION", "deals-of-the-day"),
		DirectoryURL:       envOr("DIRECTORY_URL", "https://dealiem.com"),
		BrowserBackend:     envOr("BROWSER_BACKEND", BrowserChromedp),
		DiscordWebhookURL:  os.Getenv("DISCORD_WEBHOOK_URL"),
		Port:               envOr("PORT", "8080"),
		SelectorConfigPath: envOr("SELECTORS_CONFIG_PATH", "config/selectors.json"),
	}

	switch cfg.StoreBackend {
	case StoreFirestore:
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT environment variable is required for the firestore store but not set")
		}
	case StoreMongo:
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: want %q or %q", cfg.StoreBackend, StoreFirestore, StoreMongo)
	}

	switch cfg.BrowserBackend {
	case BrowserChromedp, BrowserPlaywright:
	default:
		return nil, fmt.Errorf("invalid BROWSER_BACKEND %q: want %q or %q", cfg.BrowserBackend, BrowserChromedp, BrowserPlaywright)
	}

	if cfg.DiscordWebhookURL == "" {
		slog.Warn("DISCORD_WEBHOOK_URL not set, new business announcements will be skipped")
	}

	var err error
	if cfg.Headless, err = envBool("HEADLESS", true); err != nil {
		return nil, err
	}
	if cfg.SkipRecorded, err = envBool("SKIP_RECORDED", true); err != nil {
		return nil, err
	}
	if cfg.RunOnce, err = envBool("RUN_ONCE", false); err != nil {
		return nil, err
	}

	if cfg.RenderTimeout, err = envDuration("RENDER_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.FilterSettle, err = envDuration("FILTER_SETTLE", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.TabSettle, err = envDuration("TAB_SETTLE", time.Second); err != nil {
		return nil, err
	}
	if cfg.BusinessDelay, err = envDuration("BUSINESS_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.RenderTimeout <= 0 {
		return nil, fmt.Errorf("RENDER_TIMEOUT must be positive, got %s", cfg.RenderTimeout)
	}

	cfg.DiscoveryRetries = 2
	if v := os.Getenv("DISCOVERY_RETRIES"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("invalid DISCOVERY_RETRIES %q: must be a non-negative integer", v)
		}
		cfg.DiscoveryRetries = parsed
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
