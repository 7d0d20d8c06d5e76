// Package config loads tiergate settings from the environment.
//
// Settings come from TIERGATE_* environment variables, optionally seeded
// from a .env file in the data directory (deployment overrides) or the
// current directory (development).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tiergate/tiergate/pkg/entitlements"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config holds the resolved runtime settings.
type Config struct {
	// DataDir is where snapshots, overrides, and history live.
	DataDir string

	// Store selects the KV backend: file, sqlite, or memory.
	Store string

	// AuthorityURL is the remote authority base URL. Empty disables the
	// remote signal.
	AuthorityURL string

	// AuthorityToken is a static bearer credential. Session-integrated
	// embedders inject their own token source instead.
	AuthorityToken string

	// AuthorityTimeout bounds each remote authority call.
	AuthorityTimeout time.Duration

	// StripeAPIKey and StripeCustomerID configure the billing provider.
	// Empty values disable the billing signal.
	StripeAPIKey     string
	StripeCustomerID string

	// StalenessWindow is how long a cached snapshot may be served without
	// a live pass.
	StalenessWindow time.Duration

	// RevalidateInterval bounds how often the fast path revalidates a set
	// local override against the remote authority.
	RevalidateInterval time.Duration

	// RefreshInterval is the watch-mode refresh cadence.
	RefreshInterval time.Duration

	// MetricsAddr is the watch-mode metrics listen address.
	MetricsAddr string

	// HistoryLimit caps how many resolution events the history keeps hot.
	HistoryLimit int

	LogLevel  string
	LogFormat string
}

// Load reads the configuration, applying defaults and validating.
func Load() (*Config, error) {
	dataDir := defaultDataDir()
	if dir := strings.TrimSpace(os.Getenv("TIERGATE_DATA_DIR")); dir != "" {
		dataDir = dir
	}

	// Load .env from the data dir if present (deployment overrides).
	envFile := filepath.Join(dataDir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			log.Warn().Err(err).Str("file", envFile).Msg("Failed to load .env file")
		}
	}
	// Also try the current directory for development setups.
	_ = godotenv.Load()

	// Re-read after .env load so file values can supply it too.
	if dir := strings.TrimSpace(os.Getenv("TIERGATE_DATA_DIR")); dir != "" {
		dataDir = dir
	}

	cfg := &Config{
		DataDir:            dataDir,
		Store:              StoreFile,
		AuthorityTimeout:   10 * time.Second,
		StalenessWindow:    entitlements.DefaultStalenessWindow,
		RevalidateInterval: 5 * time.Minute,
		RefreshInterval:    6 * time.Hour,
		MetricsAddr:        "127.0.0.1:9640",
		HistoryLimit:       100,
		LogLevel:           "info",
		LogFormat:          "auto",
	}

	if store := strings.TrimSpace(os.Getenv("TIERGATE_STORE")); store != "" {
		cfg.Store = strings.ToLower(store)
	}
	if url := strings.TrimSpace(os.Getenv("TIERGATE_AUTHORITY_URL")); url != "" {
		cfg.AuthorityURL = url
	}
	if token := strings.TrimSpace(os.Getenv("TIERGATE_AUTHORITY_TOKEN")); token != "" {
		cfg.AuthorityToken = token
	}
	if v := os.Getenv("TIERGATE_AUTHORITY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.AuthorityTimeout = d
		} else {
			log.Warn().Str("value", v).Msg("Invalid TIERGATE_AUTHORITY_TIMEOUT; using default")
		}
	}
	if key := strings.TrimSpace(os.Getenv("TIERGATE_STRIPE_API_KEY")); key != "" {
		cfg.StripeAPIKey = key
	}
	if customer := strings.TrimSpace(os.Getenv("TIERGATE_STRIPE_CUSTOMER_ID")); customer != "" {
		cfg.StripeCustomerID = customer
	}
	if v := os.Getenv("TIERGATE_STALENESS_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.StalenessWindow = d
		} else {
			log.Warn().Str("value", v).Msg("Invalid TIERGATE_STALENESS_WINDOW; using default")
		}
	}
	if v := os.Getenv("TIERGATE_REVALIDATE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RevalidateInterval = d
		} else {
			log.Warn().Str("value", v).Msg("Invalid TIERGATE_REVALIDATE_INTERVAL; using default")
		}
	}
	if v := os.Getenv("TIERGATE_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RefreshInterval = d
		} else {
			log.Warn().Str("value", v).Msg("Invalid TIERGATE_REFRESH_INTERVAL; using default")
		}
	}
	if addr := strings.TrimSpace(os.Getenv("TIERGATE_METRICS_ADDR")); addr != "" {
		cfg.MetricsAddr = addr
	}
	if v := os.Getenv("TIERGATE_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryLimit = n
		} else {
			log.Warn().Str("value", v).Msg("Invalid TIERGATE_HISTORY_LIMIT; using default")
		}
	}
	if level := strings.TrimSpace(os.Getenv("TIERGATE_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}
	if format := strings.TrimSpace(os.Getenv("TIERGATE_LOG_FORMAT")); format != "" {
		cfg.LogFormat = format
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail deep inside a pass.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreFile, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("unknown store backend %q (want %s, %s, or %s)", c.Store, StoreFile, StoreSQLite, StoreMemory)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data directory cannot be empty")
	}
	if c.StalenessWindow <= 0 {
		return fmt.Errorf("staleness window must be positive")
	}
	return nil
}

func defaultDataDir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "tiergate")
	}
	return "/etc/tiergate"
}
