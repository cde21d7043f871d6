package config

import (
	"fmt"
	"strings"
	"time"

	"streamystats/internal/chart"
	"streamystats/internal/watchtime"
)

// Config holds the application configuration
type Config struct {
	Host         string   `json:"host"`
	Port         int      `json:"port"`
	LogLevel     string   `json:"log_level"`
	LogFormat    string   `json:"log_format"`
	LogSkipPaths []string `json:"log_skip_paths"`

	// Statistics sources, first non-empty wins: database, S3, file
	DatabaseURL      string `json:"database_url"`
	StatsS3URI       string `json:"stats_s3_uri"`
	S3Endpoint       string `json:"s3_endpoint"`
	S3Region         string `json:"s3_region"`
	S3PathStyle      bool   `json:"s3_path_style"`
	S3RefreshSeconds int    `json:"s3_refresh_seconds"`
	StatsFile        string `json:"stats_file"`

	DefaultRange string       `json:"default_range"`
	Chart        chart.Config `json:"chart"`

	// Rendered PNG charts are cached on disk when ChartCacheDir is set
	ChartCacheDir   string `json:"chart_cache_dir"`
	ChartCacheMaxMB int    `json:"chart_cache_max_mb"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Host:             "0.0.0.0",
		Port:             8080,
		LogLevel:         "info",
		LogFormat:        "console",
		LogSkipPaths:     []string{"/healthz"},
		S3RefreshSeconds: 30,
		StatsFile:        "stats.json",
		DefaultRange:     watchtime.Window90d.String(),
		Chart:            chart.DefaultConfig(),
		ChartCacheMaxMB:  64,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if _, err := watchtime.ParseTimeWindow(c.DefaultRange); err != nil {
		return fmt.Errorf("default_range: %w", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		return fmt.Errorf("log_format %q: want console or json", c.LogFormat)
	}
	if c.S3RefreshSeconds < 0 {
		return fmt.Errorf("s3_refresh_seconds must not be negative")
	}
	if c.ChartCacheMaxMB < 0 {
		return fmt.Errorf("chart_cache_max_mb must not be negative")
	}
	if err := c.Chart.Validate(); err != nil {
		return fmt.Errorf("chart: %w", err)
	}
	return nil
}

// DefaultWindow is the window used when a request names none.
func (c *Config) DefaultWindow() watchtime.TimeWindow {
	w, err := watchtime.ParseTimeWindow(c.DefaultRange)
	if err != nil {
		return watchtime.Window90d
	}
	return w
}

// S3Refresh returns the S3 refresh interval as a duration
func (c *Config) S3Refresh() time.Duration {
	return time.Duration(c.S3RefreshSeconds) * time.Second
}
