// Package config loads the runtime configuration of the story engine from
// env files, the process environment and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrConfiguration = errors.New("configuration error")

// Environment variable names.
const (
	EnvOpenAIKey  = "OPENAI_API_KEY"
	EnvMistralKey = "MISTRAL_API_KEY"
	EnvDBPath     = "ODYSSEY_DB_PATH"
	EnvSessionID  = "ODYSSEY_SESSION_ID"
	EnvTimeout    = "ODYSSEY_TIMEOUT"
	EnvLogLevel   = "ODYSSEY_LOG_LEVEL"
)

const (
	DefaultSessionID = "misterious_adventurer"
	DefaultDBPath    = "odyssey.db"
	DefaultTimeout   = 2 * time.Minute
)

// EnvFiles are loaded in order at startup. Missing files are ignored and
// variables already present in the environment are never overridden.
var EnvFiles = []string{".env", "keys.env"}

// BackendOverride replaces parts of a built-in backend profile.
type BackendOverride struct {
	Model       string   `yaml:"model"`
	Temperature *float32 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	BaseURL     string   `yaml:"base_url"`
	Stop        []string `yaml:"stop"`
}

// File is the shape of the optional YAML configuration file.
type File struct {
	SessionID string                     `yaml:"session_id"`
	DBPath    string                     `yaml:"db_path"`
	Timeout   string                     `yaml:"timeout"`
	Backends  map[string]BackendOverride `yaml:"backends"`
}

// Config is the immutable runtime configuration.
type Config struct {
	SessionID string
	DBPath    string
	Timeout   time.Duration
	LogLevel  slog.Level

	// Backends holds overrides keyed by backend id (chat, instruct, mistral).
	Backends map[string]BackendOverride

	lookup func(string) (string, bool)
}

// Load reads env files, the environment and, if path is non-empty, a YAML
// file. Environment values take precedence over the file.
func Load(path string) (*Config, error) {
	for _, f := range EnvFiles {
		_ = godotenv.Load(f)
	}

	var file File
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrConfiguration, path, err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", ErrConfiguration, path, err)
		}
	}

	return FromLookup(file, os.LookupEnv)
}

// FromLookup builds a Config from a parsed file and an environment lookup.
func FromLookup(file File, lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{
		SessionID: DefaultSessionID,
		DBPath:    DefaultDBPath,
		Timeout:   DefaultTimeout,
		LogLevel:  slog.LevelWarn,
		Backends:  file.Backends,
		lookup:    lookup,
	}
	if cfg.Backends == nil {
		cfg.Backends = map[string]BackendOverride{}
	}

	if file.SessionID != "" {
		cfg.SessionID = file.SessionID
	}
	if file.DBPath != "" {
		cfg.DBPath = file.DBPath
	}
	timeout := file.Timeout

	if v := cfg.env(EnvSessionID); v != "" {
		cfg.SessionID = v
	}
	if v := cfg.env(EnvDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := cfg.env(EnvTimeout); v != "" {
		timeout = v
	}

	if timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%w: invalid timeout %q", ErrConfiguration, timeout)
		}
		cfg.Timeout = d
	}

	if v := cfg.env(EnvLogLevel); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("%w: invalid log level %q", ErrConfiguration, v)
		}
	}

	return cfg, nil
}

// Secret returns a required secret or an error naming the missing variable.
func (c *Config) Secret(name string) (string, error) {
	v := c.env(name)
	if v == "" {
		return "", fmt.Errorf("%w: %s environment variable is required", ErrConfiguration, name)
	}
	return v, nil
}

func (c *Config) env(name string) string {
	if c.lookup == nil {
		return ""
	}
	v, _ := c.lookup(name)
	return strings.TrimSpace(v)
}
