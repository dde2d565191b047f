// Package config loads resonance configuration from defaults, an optional
// YAML file and RESONANCE_* environment variables, in that order.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the complete process configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Spotify  SpotifyConfig  `koanf:"spotify"`
	Cache    CacheConfig    `koanf:"cache"`
	Store    StoreConfig    `koanf:"store"`
	Worker   WorkerConfig   `koanf:"worker"`
	Analysis AnalysisConfig `koanf:"analysis"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=0"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes" validate:"min=1024"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	// Path is a file path or ":memory:".
	Path        string        `koanf:"path" validate:"required"`
	BusyTimeout time.Duration `koanf:"busy_timeout" validate:"min=0"`
}

// SpotifyConfig enables remote genre and audio-feature enrichment.
type SpotifyConfig struct {
	Enabled           bool          `koanf:"enabled"`
	ClientID          string        `koanf:"client_id" validate:"required_if=Enabled true"`
	ClientSecret      string        `koanf:"client_secret" validate:"required_if=Enabled true"`
	BaseURL           string        `koanf:"base_url" validate:"omitempty,url"`
	TokenURL          string        `koanf:"token_url" validate:"omitempty,url"`
	Market            string        `koanf:"market" validate:"omitempty,len=2"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"min=0"`
	Burst             int           `koanf:"burst" validate:"min=0"`
	MaxRetries        int           `koanf:"max_retries" validate:"min=0,max=10"`
	RetryBackoff      time.Duration `koanf:"retry_backoff" validate:"min=0"`
	Timeout           time.Duration `koanf:"timeout" validate:"min=0"`
	// FillFeatures fetches missing audio features for ingested tracks.
	FillFeatures bool `koanf:"fill_features"`
}

type CacheConfig struct {
	FeatureSize int           `koanf:"feature_size" validate:"min=0"`
	FeatureTTL  time.Duration `koanf:"feature_ttl" validate:"min=0"`
	GenreSize   int           `koanf:"genre_size" validate:"min=0"`
	GenreTTL    time.Duration `koanf:"genre_ttl" validate:"min=0"`
}

// StoreConfig bounds retries of transient store failures.
type StoreConfig struct {
	RetryAttempts   int           `koanf:"retry_attempts" validate:"min=1,max=10"`
	RetryBaseDelay  time.Duration `koanf:"retry_base_delay" validate:"min=0"`
	RetryMultiplier float64       `koanf:"retry_multiplier" validate:"min=1"`
}

type WorkerConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Workers    int           `koanf:"workers" validate:"min=1,max=64"`
	QueueSize  int           `koanf:"queue_size" validate:"min=1"`
	JobTimeout time.Duration `koanf:"job_timeout" validate:"min=0"`
}

type AnalysisConfig struct {
	PersonalityWindowDays int    `koanf:"personality_window_days" validate:"min=1,max=3650"`
	StressWindowDays      int    `koanf:"stress_window_days" validate:"min=1,max=3650"`
	RecommendK            int    `koanf:"recommend_k" validate:"min=1"`
	Timezone              string `koanf:"timezone" validate:"required"`
}

// Location resolves Timezone.
func (a AnalysisConfig) Location() (*time.Location, error) {
	return time.LoadLocation(a.Timezone)
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			RequestTimeout:  15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    10 << 20,
		},
		Database: DatabaseConfig{
			Path:        "resonance.db",
			BusyTimeout: 5 * time.Second,
		},
		Spotify: SpotifyConfig{
			Enabled:           false,
			BaseURL:           "https://api.spotify.com/v1",
			TokenURL:          "https://accounts.spotify.com/api/token",
			Market:            "US",
			RequestsPerSecond: 5,
			Burst:             5,
			MaxRetries:        3,
			RetryBackoff:      500 * time.Millisecond,
			Timeout:           10 * time.Second,
			FillFeatures:      true,
		},
		Cache: CacheConfig{
			FeatureSize: 10000,
			FeatureTTL:  time.Hour,
			GenreSize:   5000,
			GenreTTL:    6 * time.Hour,
		},
		Store: StoreConfig{
			RetryAttempts:   3,
			RetryBaseDelay:  100 * time.Millisecond,
			RetryMultiplier: 2,
		},
		Worker: WorkerConfig{
			Enabled:    true,
			Workers:    2,
			QueueSize:  256,
			JobTimeout: 30 * time.Second,
		},
		Analysis: AnalysisConfig{
			PersonalityWindowDays: 30,
			StressWindowDays:      30,
			RecommendK:            5,
			Timezone:              "UTC",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return err
	}
	if _, err := c.Analysis.Location(); err != nil {
		return fmt.Errorf("analysis.timezone: %w", err)
	}
	return nil
}
