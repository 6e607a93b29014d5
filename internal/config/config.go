package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Library     LibraryConfig     `yaml:"library"`
	Beets       BeetsConfig       `yaml:"beets"`
	MusicBrainz MusicBrainzConfig `yaml:"musicbrainz"`
	Matching    MatchingConfig    `yaml:"matching"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Ntfy        NtfyConfig        `yaml:"ntfy"`
	HealthCheck HealthCheckConfig `yaml:"healthcheck"`
	Logging     LoggingConfig     `yaml:"logging"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LibraryConfig holds music library path settings.
type LibraryConfig struct {
	Path       string   `yaml:"path"`
	Exclusions []string `yaml:"exclusions"`
}

// BeetsConfig points at an optional beets musiclibrary.db. When set, the
// beets database replaces directory scanning as the artist/album source.
type BeetsConfig struct {
	Path string `yaml:"path"`
}

// MusicBrainzConfig holds catalog API client settings.
type MusicBrainzConfig struct {
	BaseURL              string   `yaml:"base_url"`
	Contact              string   `yaml:"contact"`
	RateLimitDelay       float64  `yaml:"rate_limit_delay"`
	MaxRetries           int      `yaml:"max_retries"`
	InitialBackoff       int      `yaml:"initial_backoff"`
	MaxBackoff           int      `yaml:"max_backoff"`
	ConnectionTimeout    int      `yaml:"connection_timeout"`
	ExcludedReleaseTypes []string `yaml:"excluded_release_types"`
	IncludedReleaseTypes []string `yaml:"included_release_types"`
	ReleaseWindowDays    int      `yaml:"release_window_days"`
	SearchLimit          int      `yaml:"search_limit"`
}

// RateLimitInterval returns the minimum spacing between API requests.
func (m MusicBrainzConfig) RateLimitInterval() time.Duration {
	return time.Duration(m.RateLimitDelay * float64(time.Second))
}

// MatchingConfig holds disambiguation thresholds.
type MatchingConfig struct {
	MinSimilarity float64 `yaml:"min_similarity"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// SchedulerConfig holds daily batch limits and the daemon interval.
type SchedulerConfig struct {
	DailyCheckLimit      int `yaml:"daily_check_limit"`
	ConfidenceCheckLimit int `yaml:"confidence_check_limit"`
	IntervalHours        int `yaml:"interval_hours"`
}

// NtfyConfig holds ntfy notification settings. An empty topic disables
// notifications.
type NtfyConfig struct {
	Topic string `yaml:"topic"`
	Token string `yaml:"token"`
}

// HealthCheckConfig holds heartbeat ping settings. An empty URL disables pings.
type HealthCheckConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level          string `yaml:"level"`
	Format         string `yaml:"format"`
	FilePath       string `yaml:"file_path"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxFiles   int    `yaml:"file_max_files"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
}

// MaintenanceConfig holds database maintenance scheduler settings.
type MaintenanceConfig struct {
	Enabled       bool `yaml:"enabled"`
	IntervalHours int  `yaml:"interval_hours"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "/data/freshet.db",
		},
		Library: LibraryConfig{
			Path: "/music",
		},
		MusicBrainz: MusicBrainzConfig{
			BaseURL:           "https://musicbrainz.org/ws/2",
			RateLimitDelay:    1.1,
			MaxRetries:        3,
			InitialBackoff:    1,
			MaxBackoff:        60,
			ConnectionTimeout: 300,
			ReleaseWindowDays: 30,
			SearchLimit:       5,
		},
		Matching: MatchingConfig{
			MinSimilarity: 0.6,
			MinConfidence: 0.3,
		},
		Scheduler: SchedulerConfig{
			DailyCheckLimit:      50,
			ConfidenceCheckLimit: 10,
			IntervalHours:        24,
		},
		HealthCheck: HealthCheckConfig{
			TimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Maintenance: MaintenanceConfig{
			Enabled:       true,
			IntervalHours: 24,
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("FR_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("FR_MUSIC_PATH"); v != "" {
		c.Library.Path = v
	}
	if v := os.Getenv("FR_BEETS_DB_PATH"); v != "" {
		c.Beets.Path = v
	}
	if v := os.Getenv("FR_MB_BASE_URL"); v != "" {
		c.MusicBrainz.BaseURL = v
	}
	if v := os.Getenv("FR_MB_CONTACT"); v != "" {
		c.MusicBrainz.Contact = v
	}
	if v := os.Getenv("FR_DAILY_CHECK_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Scheduler.DailyCheckLimit = n
		}
	}
	if v := os.Getenv("FR_CONFIDENCE_CHECK_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Scheduler.ConfidenceCheckLimit = n
		}
	}
	if v := os.Getenv("FR_NTFY_TOPIC"); v != "" {
		c.Ntfy.Topic = v
	}
	if v := os.Getenv("FR_NTFY_TOKEN"); v != "" {
		c.Ntfy.Token = v
	}
	if v := os.Getenv("FR_HEALTHCHECK_URL"); v != "" {
		c.HealthCheck.URL = v
	}
	if v := os.Getenv("FR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FR_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.MusicBrainz.RateLimitDelay <= 0 {
		return fmt.Errorf("musicbrainz rate_limit_delay must be positive")
	}
	if c.MusicBrainz.MaxRetries < 1 {
		return fmt.Errorf("musicbrainz max_retries must be at least 1")
	}
	if len(c.MusicBrainz.ExcludedReleaseTypes) > 0 && len(c.MusicBrainz.IncludedReleaseTypes) > 0 {
		return fmt.Errorf("excluded_release_types and included_release_types are mutually exclusive")
	}
	if c.Matching.MinSimilarity < 0 || c.Matching.MinSimilarity > 1 {
		return fmt.Errorf("matching min_similarity must be in [0,1]")
	}
	if c.Matching.MinConfidence < 0 || c.Matching.MinConfidence > 1 {
		return fmt.Errorf("matching min_confidence must be in [0,1]")
	}
	if c.Scheduler.DailyCheckLimit < 1 {
		return fmt.Errorf("scheduler daily_check_limit must be at least 1")
	}
	c.MusicBrainz.BaseURL = strings.TrimRight(c.MusicBrainz.BaseURL, "/")
	return nil
}
