package config

import (
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"strings"
)

const envPrefix = "STREAMYSTATS_"

// Load loads configuration from multiple sources with precedence:
// 1. CLI flags (highest)
// 2. Environment variables
// 3. Configuration file
// 4. Default values (lowest)
func Load() (*Config, error) {
	cfg := Default()

	defineFlags(cfg)
	if !flag.Parsed() {
		flag.Parse()
	}

	if configFile := getConfigFile(); configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			return nil, err
		}
	}

	loadFromEnv(cfg)
	loadFromFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// getConfigFile returns the configuration file path from flags or environment
func getConfigFile() string {
	if configFlag := flag.Lookup("config"); configFlag != nil && configFlag.Value.String() != "" {
		return configFlag.Value.String()
	}

	if envConfig := os.Getenv(envPrefix + "CONFIG"); envConfig != "" {
		return envConfig
	}

	if _, err := os.Stat("streamystats.json"); err == nil {
		return "streamystats.json"
	}

	return ""
}

// loadFromFile loads configuration from a JSON file
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, cfg)
}

// loadFromEnv loads configuration from STREAMYSTATS_* environment variables
func loadFromEnv(cfg *Config) {
	for name, set := range settings(cfg) {
		if v, ok := os.LookupEnv(envPrefix + envName(name)); ok && v != "" {
			set(v)
		}
	}
}

// loadFromFlags applies only the flags given on the command line
func loadFromFlags(cfg *Config) {
	setters := settings(cfg)
	flag.Visit(func(f *flag.Flag) {
		if set, ok := setters[f.Name]; ok {
			set(f.Value.String())
		}
	})
}

// defineFlags registers every setting as a string flag, once
func defineFlags(cfg *Config) {
	usage := map[string]string{
		"host":               "Host to bind to",
		"port":               "Port to serve on",
		"log-level":          "Log level (trace, debug, info, warn, error)",
		"log-format":         "Log output format (console, json)",
		"log-skip-paths":     "Comma-separated request paths that are not logged",
		"database-url":       "PostgreSQL connection string for statistics",
		"stats-s3-uri":       "s3://bucket/key of a statistics export",
		"s3-endpoint":        "Custom S3 endpoint (MinIO and friends)",
		"s3-region":          "S3 region",
		"s3-path-style":      "Use path-style S3 addressing",
		"s3-refresh-seconds": "Seconds between S3 statistics refreshes",
		"stats-file":         "Path to a statistics export JSON file",
		"default-range":      "Default chart range (7d, 30d, 90d)",
		"chart-title":        "Title drawn on rendered charts",
		"chart-width":        "Rendered chart width in pixels",
		"chart-height":       "Rendered chart height in pixels",
		"chart-cache-dir":    "Directory for cached chart PNGs (empty disables)",
		"chart-cache-max-mb": "Chart cache size limit in MB (0 for unlimited)",
	}

	if flag.Lookup("config") == nil {
		flag.String("config", "", "Path to configuration file")
	}
	for name := range settings(cfg) {
		if flag.Lookup(name) == nil {
			flag.String(name, "", usage[name])
		}
	}
}

// settings maps flag names to setters. Environment names are derived from
// the flag name, e.g. "log-level" is STREAMYSTATS_LOG_LEVEL.
// Unparseable numbers and booleans are ignored.
func settings(cfg *Config) map[string]func(string) {
	str := func(dst *string) func(string) {
		return func(v string) { *dst = strings.TrimSpace(v) }
	}
	num := func(dst *int) func(string) {
		return func(v string) {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	boolean := func(dst *bool) func(string) {
		return func(v string) {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = b
			}
		}
	}
	list := func(dst *[]string) func(string) {
		return func(v string) { *dst = splitList(v) }
	}

	return map[string]func(string){
		"host":               str(&cfg.Host),
		"port":               num(&cfg.Port),
		"log-level":          str(&cfg.LogLevel),
		"log-format":         str(&cfg.LogFormat),
		"log-skip-paths":     list(&cfg.LogSkipPaths),
		"database-url":       str(&cfg.DatabaseURL),
		"stats-s3-uri":       str(&cfg.StatsS3URI),
		"s3-endpoint":        str(&cfg.S3Endpoint),
		"s3-region":          str(&cfg.S3Region),
		"s3-path-style":      boolean(&cfg.S3PathStyle),
		"s3-refresh-seconds": num(&cfg.S3RefreshSeconds),
		"stats-file":         str(&cfg.StatsFile),
		"default-range":      str(&cfg.DefaultRange),
		"chart-title":        str(&cfg.Chart.Title),
		"chart-width":        num(&cfg.Chart.Width),
		"chart-height":       num(&cfg.Chart.Height),
		"chart-cache-dir":    str(&cfg.ChartCacheDir),
		"chart-cache-max-mb": num(&cfg.ChartCacheMaxMB),
	}
}

func envName(flagName string) string {
	return strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
