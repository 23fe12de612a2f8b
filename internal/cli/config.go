package cli

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stage-tech/basestar-sub001/internal/store"
)

// Config holds settings shared by every command. Flags override it.
//
//	database: ./basestar.db
//	catalog: ./catalog
//	term_limit: 64
//	log_level: info
type Config struct {
	Database  string `yaml:"database"`
	Catalog   string `yaml:"catalog"`
	TermLimit int    `yaml:"term_limit"`
	LogLevel  string `yaml:"log_level"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		TermLimit: store.DefaultTermLimit,
		LogLevel:  "warn",
	}
}

// LoadConfig reads a YAML config file. An empty path yields the defaults.
// Unknown keys are rejected so typos surface immediately.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if _, ok := parseLevel(cfg.LogLevel); !ok {
		return nil, fmt.Errorf("invalid log_level %q: must be debug, info, warn or error", cfg.LogLevel)
	}
	if cfg.TermLimit < 0 {
		return nil, fmt.Errorf("invalid term_limit %d: must not be negative", cfg.TermLimit)
	}
	return cfg, nil
}

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "", "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelWarn, false
}
