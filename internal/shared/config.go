package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Database drivers understood by [DatabaseConfig].
const (
	DriverSQLite     = "sqlite3"
	DriverGormSQLite = "gorm-sqlite"
	DriverPostgres   = "postgres"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Migration   MigrationConfig   `toml:"migration"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific OAuth client settings.
type CredentialsConfig struct {
	Spotify ServiceConfig `toml:"spotify"`
	YouTube ServiceConfig `toml:"youtube"`
}

// ServiceConfig contains the OAuth client and API endpoints for one catalog service.
type ServiceConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	APIBaseURL   string `toml:"api_base_url"`
	AuthURL      string `toml:"auth_url"`
	TokenURL     string `toml:"token_url"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	Path         string `toml:"path"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// MigrationConfig tunes remote calls made during a migration run.
type MigrationConfig struct {
	CallTimeout       time.Duration `toml:"call_timeout"`
	SearchLimit       int           `toml:"search_limit"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Retries           int           `toml:"retries"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	ResumeSchedule string `toml:"resume_schedule"`
}

// LogConfig controls the application logger.
type LogConfig struct {
	Level string `toml:"level"`
}

// Addr returns the host:port pair the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveConfig encodes the config as TOML and writes it to path, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks values that would otherwise fail deep inside a migration run.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverGormSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("%w: database.path is required for driver %s", ErrInvalidConfig, c.Database.Driver)
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: database.dsn is required for driver postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Database.Driver)
	}

	if c.Migration.CallTimeout <= 0 {
		return fmt.Errorf("%w: migration.call_timeout must be positive", ErrInvalidConfig)
	}
	if c.Migration.SearchLimit < 1 || c.Migration.SearchLimit > 50 {
		return fmt.Errorf("%w: migration.search_limit must be between 1 and 50", ErrInvalidConfig)
	}
	if c.Migration.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: migration.requests_per_second must be positive", ErrInvalidConfig)
	}
	if c.Migration.Retries < 0 {
		return fmt.Errorf("%w: migration.retries cannot be negative", ErrInvalidConfig)
	}
	return nil
}
