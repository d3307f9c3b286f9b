package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-program-slicer/internal/log"
)

// Config holds all configuration for gslice
type Config struct {
	// Logging
	LogLevel string `yaml:"log_level" env:"GSLICE_LOG_LEVEL"`
	JSONLogs bool   `yaml:"json_logs" env:"GSLICE_JSON_LOGS"`
	Verbose  bool   `yaml:"verbose" env:"GSLICE_VERBOSE"`

	// CacheDir holds persisted PDG snapshots. Empty disables disk caching.
	CacheDir string `yaml:"cache_dir" env:"GSLICE_CACHE_DIR"`
	// CacheEntries bounds the in-memory snapshot cache.
	CacheEntries int `yaml:"cache_entries" env:"GSLICE_CACHE_ENTRIES"`

	// Workers bounds how many functions are analyzed concurrently.
	Workers int `yaml:"workers" env:"GSLICE_WORKERS"`

	// CoverageProfile is a `go test -coverprofile` file used to narrow slices.
	CoverageProfile string `yaml:"coverage_profile" env:"GSLICE_COVERAGE_PROFILE"`

	// IncludeSynthetic shows entry/exit nodes in command output.
	IncludeSynthetic bool `yaml:"include_synthetic" env:"GSLICE_INCLUDE_SYNTHETIC"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:         "info",
		JSONLogs:         false,
		Verbose:          false,
		CacheDir:         ".gslice/cache",
		CacheEntries:     128,
		Workers:          4,
		CoverageProfile:  "",
		IncludeSynthetic: false,
	}
}

// GlobalConfigFilePath returns the global config file path (~/.gslice/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gslice/config.yaml"
	}
	return filepath.Join(home, ".gslice", "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.gslice/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(".gslice", "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.gslice/config.yaml)
// 3. Global config (~/.gslice/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{GlobalConfigFilePath(), ProjectConfigFilePath()} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GSLICE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GSLICE_JSON_LOGS"); v != "" {
		cfg.JSONLogs = parseBool(v)
	}
	if v := os.Getenv("GSLICE_VERBOSE"); v != "" {
		cfg.Verbose = parseBool(v)
	}
	if v, ok := os.LookupEnv("GSLICE_CACHE_DIR"); ok {
		cfg.CacheDir = v
	}
	if v := os.Getenv("GSLICE_CACHE_ENTRIES"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.CacheEntries = i
		}
	}
	if v := os.Getenv("GSLICE_WORKERS"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.Workers = i
		}
	}
	if v := os.Getenv("GSLICE_COVERAGE_PROFILE"); v != "" {
		cfg.CoverageProfile = v
	}
	if v := os.Getenv("GSLICE_INCLUDE_SYNTHETIC"); v != "" {
		cfg.IncludeSynthetic = parseBool(v)
	}
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if c.CacheEntries <= 0 {
		return fmt.Errorf("cache_entries must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	return nil
}

// Level returns the parsed log level, upgraded to debug when Verbose is set.
func (c *Config) Level() log.Level {
	if c.Verbose {
		return log.DebugLevel
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// NewLogger builds a logger that honours the logging settings.
func (c *Config) NewLogger() *log.DefaultLogger {
	return log.New(log.LoggerConfig{
		Level:      c.Level(),
		JSONOutput: c.JSONLogs,
	})
}

func parseBool(s string) bool {
	return s == "true" || s == "1" || s == "yes"
}

func parseInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}
