// Package config holds the server defaults and the optional YAML config file.
// Command-line flags and environment variables override file values.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = "8080"

	// DefaultDatabaseURL is empty; must be provided via flag, environment or file for postgres.
	DefaultDatabaseURL = ""

	// DefaultDriver selects the store backend when none is configured.
	DefaultDriver = DriverSQLite

	// DefaultSQLitePath is the database file used by the sqlite driver.
	DefaultSQLitePath = "taskgate.db"

	// DefaultTokenTTL is the lifetime of issued session tokens.
	DefaultTokenTTL = 24 * time.Hour

	// DefaultTransitions keeps direct status updates unrestricted.
	DefaultTransitions = "open"

	DefaultNearDeadlineDays = 2
	DefaultStaleAfterDays   = 3

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Priority PriorityConfig `yaml:"priority"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	Driver     string `yaml:"driver"`
	URL        string `yaml:"url"`
	SQLitePath string `yaml:"sqlite_path"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type WorkflowConfig struct {
	// Transitions is "open" (any status to any status) or "strict".
	Transitions string `yaml:"transitions"`
}

type PriorityConfig struct {
	NearDeadlineDays int `yaml:"near_deadline_days"`
	StaleAfterDays   int `yaml:"stale_after_days"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: DefaultPort},
		Database: DatabaseConfig{
			Driver:     DefaultDriver,
			URL:        DefaultDatabaseURL,
			SQLitePath: DefaultSQLitePath,
		},
		Auth:     AuthConfig{TokenTTL: DefaultTokenTTL},
		Workflow: WorkflowConfig{Transitions: DefaultTransitions},
		Priority: PriorityConfig{
			NearDeadlineDays: DefaultNearDeadlineDays,
			StaleAfterDays:   DefaultStaleAfterDays,
		},
		Log: LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// Load reads a YAML file on top of the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be fixed by falling back to a default.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the %s driver", DriverPostgres)
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required for the %s driver", DriverSQLite)
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}

	switch c.Workflow.Transitions {
	case "open", "strict":
	default:
		return fmt.Errorf("workflow.transitions must be open or strict, got %q", c.Workflow.Transitions)
	}

	if c.Priority.NearDeadlineDays < 0 || c.Priority.StaleAfterDays < 0 {
		return fmt.Errorf("priority thresholds must not be negative")
	}
	return nil
}
