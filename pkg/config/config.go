package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for profile-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Matcher holds the semantic matcher LLM endpoint settings.
	Matcher MatcherConfig `yaml:"matcher"`

	// Consolidation holds merge-path tuning.
	Consolidation ConsolidationConfig `yaml:"consolidation"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"profile_engine"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"profile_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// URL builds a pgx-compatible connection string.
func (d *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// MatcherConfig holds the LLM endpoint used for semantic merging.
type MatcherConfig struct {
	Provider    string  `yaml:"provider" env:"MATCHER_PROVIDER" env-default:"openai"`
	Endpoint    string  `yaml:"endpoint" env:"MATCHER_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model       string  `yaml:"model" env:"MATCHER_MODEL" env-default:"gpt-4o-mini"`
	APIKey      string  `yaml:"-" env:"MATCHER_API_KEY"` // Secret - not in YAML
	Temperature float64 `yaml:"temperature" env:"MATCHER_TEMPERATURE" env-default:"0.2"`
}

// ConsolidationConfig holds merge-path tuning.
type ConsolidationConfig struct {
	// MaxConflictRetries bounds how many times an AddSource/RemoveSource is
	// re-run after a compare-and-swap conflict before surfacing the error.
	MaxConflictRetries int `yaml:"max_conflict_retries" env:"CONSOLIDATION_MAX_CONFLICT_RETRIES" env-default:"3"`
}

// Load reads configuration from config.yaml with environment overrides.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	return cfg, nil
}

// LoadFrom reads configuration from an explicit path. Used by tests.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return cfg, nil
}
