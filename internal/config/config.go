// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/appdepo/internal/adapter/driven/featured"
)

// Log output formats accepted by APPDEPO_LOG_FORMAT.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

const secretKeyLen = 32

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken      string
	SecretKey        []byte
	CheckInterval    time.Duration
	StaleAfter       time.Duration
	CheckConcurrency int
	ListenAddr       string
	DBPath           string
	DownloadDir      string
	FeaturedURL      string
	InstallCommand   string
	LogLevel         slog.Level
	LogFormat        string
}

// HasSecretKey reports whether encrypted credential storage is available.
func (c *Config) HasSecretKey() bool {
	return len(c.SecretKey) == secretKeyLen
}

// Load reads configuration from environment variables and returns a validated Config.
// Every variable is optional. APPDEPO_GITHUB_TOKEN enables authenticated
// GitHub access; without it requests are anonymous and heavily rate limited.
// APPDEPO_SECRET_KEY (64 hex chars) enables the encrypted credential store.
// Defaults: APPDEPO_CHECK_INTERVAL (5m), APPDEPO_STALE_AFTER (5m),
// APPDEPO_CHECK_CONCURRENCY (4), APPDEPO_LISTEN_ADDR (127.0.0.1:8080),
// APPDEPO_DB_PATH (appdepo.db), APPDEPO_DOWNLOAD_DIR (user cache dir),
// APPDEPO_LOG_LEVEL (info), APPDEPO_LOG_FORMAT (text).
func Load() (*Config, error) {
	cfg := &Config{
		GitHubToken:      os.Getenv("APPDEPO_GITHUB_TOKEN"),
		CheckInterval:    5 * time.Minute,
		StaleAfter:       5 * time.Minute,
		CheckConcurrency: 4,
		ListenAddr:       "127.0.0.1:8080",
		DBPath:           "appdepo.db",
		FeaturedURL:      featured.DefaultURL,
		InstallCommand:   strings.TrimSpace(os.Getenv("APPDEPO_INSTALL_COMMAND")),
		LogLevel:         slog.LevelInfo,
		LogFormat:        LogFormatText,
	}

	var err error
	if cfg.CheckInterval, err = durationEnv("APPDEPO_CHECK_INTERVAL", cfg.CheckInterval); err != nil {
		return nil, err
	}
	if cfg.StaleAfter, err = durationEnv("APPDEPO_STALE_AFTER", cfg.StaleAfter); err != nil {
		return nil, err
	}

	if v, ok := os.LookupEnv("APPDEPO_CHECK_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("APPDEPO_CHECK_CONCURRENCY must be a positive integer, got %q", v)
		}
		cfg.CheckConcurrency = n
	}

	if v, ok := os.LookupEnv("APPDEPO_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("APPDEPO_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("APPDEPO_FEATURED_URL"); ok && v != "" {
		cfg.FeaturedURL = v
	}

	cfg.DownloadDir, err = downloadDir()
	if err != nil {
		return nil, err
	}

	if v, ok := os.LookupEnv("APPDEPO_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil || len(key) != secretKeyLen {
			return nil, fmt.Errorf("APPDEPO_SECRET_KEY must be %d hex-encoded bytes", secretKeyLen)
		}
		cfg.SecretKey = key
	}

	if v, ok := os.LookupEnv("APPDEPO_LOG_LEVEL"); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("APPDEPO_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	if v, ok := os.LookupEnv("APPDEPO_LOG_FORMAT"); ok && v != "" {
		switch format := strings.ToLower(v); format {
		case LogFormatText, LogFormatJSON:
			cfg.LogFormat = format
		default:
			return nil, fmt.Errorf("APPDEPO_LOG_FORMAT must be %q or %q, got %q", LogFormatText, LogFormatJSON, v)
		}
	}

	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", key, v)
	}
	return parsed, nil
}

func downloadDir() (string, error) {
	if v, ok := os.LookupEnv("APPDEPO_DOWNLOAD_DIR"); ok && v != "" {
		return v, nil
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve download dir, set APPDEPO_DOWNLOAD_DIR: %w", err)
	}
	return filepath.Join(cache, "appdepo"), nil
}
