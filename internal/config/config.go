// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQL    = "sql"
)

// Config is everything the binaries read from the environment.
type Config struct {
	ActivityRoot string `env:"LATTICE_ACTIVITY_ROOT" envDefault:"activities"`

	Store         string        `env:"LATTICE_STORE" envDefault:"memory"`
	StatePath     string        `env:"LATTICE_STATE_PATH" envDefault:".lattice/state"`
	RedisAddr     string        `env:"LATTICE_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"LATTICE_REDIS_PASSWORD"`
	RedisDB       int           `env:"LATTICE_REDIS_DB" envDefault:"0"`
	StateTTL      time.Duration `env:"LATTICE_STATE_TTL" envDefault:"0s"`
	SQLDriver     string        `env:"LATTICE_SQL_DRIVER" envDefault:"sqlite"`
	SQLDSN        string        `env:"LATTICE_SQL_DSN" envDefault:"lattice.db"`
	// StateKey is a base64 AES-256 key; when set, run metadata is encrypted at rest.
	StateKey          string   `env:"LATTICE_STATE_KEY"`
	StateFallbackKeys []string `env:"LATTICE_STATE_FALLBACK_KEYS" envSeparator:","`

	HTTPAddr  string `env:"LATTICE_HTTP_ADDR" envDefault:":8080"`
	LogLevel  string `env:"LATTICE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LATTICE_LOG_FORMAT" envDefault:"text"`

	MaxInputSize int `env:"LATTICE_MAX_INPUT_SIZE" envDefault:"4096"`

	OpenAIKey     string            `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string            `env:"OPENAI_BASE_URL"`
	Models        map[string]string `env:"LATTICE_MODELS" envKeyValSeparator:"="`
	DefaultModel  string            `env:"LATTICE_DEFAULT_MODEL" envDefault:"gpt-4o-mini"`
	// RateLimit is requests per second to the model API; zero disables throttling.
	RateLimit      float64       `env:"LATTICE_RATE_LIMIT" envDefault:"0"`
	RequestTimeout time.Duration `env:"LATTICE_REQUEST_TIMEOUT" envDefault:"60s"`
}

// Load reads the given .env files (missing files are ignored) and then the
// environment. Variables already set in the environment win over .env values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return Parse()
}

// Parse reads the environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreFile, StoreRedis, StoreSQL:
	default:
		return fmt.Errorf("LATTICE_STORE must be one of memory, file, redis, sql (got %q)", c.Store)
	}
	if c.MaxInputSize <= 0 {
		return fmt.Errorf("LATTICE_MAX_INPUT_SIZE must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("LATTICE_RATE_LIMIT must not be negative")
	}
	return nil
}
