package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
	DriverMemory   = "memory"
)

// Environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds all configuration for the application
type Config struct {
	Environment string         `yaml:"environment"`
	Server      ServerConfig   `yaml:"server"`
	Database    DatabaseConfig `yaml:"database"`
	Store       StoreConfig    `yaml:"store"`
	Logging     LoggingConfig  `yaml:"logging"`
	Metrics     MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	Prefix       string        `yaml:"prefix"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	CORSOrigins  []string      `yaml:"cors_origins"`
}

// DatabaseConfig holds PostgreSQL database configuration. URL, when set,
// takes precedence over the individual connection fields.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`

	// Connection pool settings
	MaxConns int `yaml:"max_conns"`
	MinConns int `yaml:"min_conns"`
}

// StoreConfig selects the node store backend
type StoreConfig struct {
	Driver string       `yaml:"driver"`
	Badger BadgerConfig `yaml:"badger"`
}

// BadgerConfig holds embedded BadgerDB configuration
type BadgerConfig struct {
	Path       string        `yaml:"path"`
	InMemory   bool          `yaml:"in_memory"`
	SyncWrites bool          `yaml:"sync_writes"`
	GCInterval time.Duration `yaml:"gc_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds Prometheus exposition configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Port:         3000,
			Prefix:       "api",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "postgres",
			User:     "postgres",
			SSLMode:  "prefer",
			MaxConns: 10,
			MinConns: 2,
		},
		Store: StoreConfig{
			Driver: DriverPostgres,
			Badger: BadgerConfig{
				Path:       "./data/badger",
				SyncWrites: true,
				GCInterval: 10 * time.Minute,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// named by CONFIG_FILE, and environment variables, in increasing precedence.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadFile overlays the YAML document at path onto c
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("NODE_ENV", getEnv("APP_ENV", c.Environment))

	c.Server.Port = getIntEnv("API_PORT", c.Server.Port)
	c.Server.Prefix = getEnv("API_PREFIX", c.Server.Prefix)
	c.Server.ReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getDurationEnv("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.CORSOrigins = getListEnv("CORS_ORIGINS", c.Server.CORSOrigins)

	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getIntEnv("DB_PORT", c.Database.Port)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.MaxConns = getIntEnv("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getIntEnv("DB_MIN_CONNS", c.Database.MinConns)

	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.Badger.Path = getEnv("BADGER_PATH", c.Store.Badger.Path)
	c.Store.Badger.InMemory = getBoolEnv("BADGER_IN_MEMORY", c.Store.Badger.InMemory)
	c.Store.Badger.SyncWrites = getBoolEnv("BADGER_SYNC_WRITES", c.Store.Badger.SyncWrites)
	c.Store.Badger.GCInterval = getDurationEnv("BADGER_GC_INTERVAL", c.Store.Badger.GCInterval)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)

	c.Metrics.Enabled = getBoolEnv("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Path = getEnv("METRICS_PATH", c.Metrics.Path)
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets duration from environment variable with default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets integer from environment variable with default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getBoolEnv gets boolean from environment variable with default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated environment variable
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs ConfigErrors

	switch c.Environment {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		errs = append(errs, &ConfigError{Field: "NODE_ENV", Message: "must be one of development, production, test"})
	}

	if c.Server.Port < 1000 || c.Server.Port > 65535 {
		errs = append(errs, &ConfigError{Field: "API_PORT", Message: "must be between 1000 and 65535"})
	}

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Database.URL == "" && c.Database.Host == "" {
			errs = append(errs, &ConfigError{Field: "DATABASE_URL", Message: "database URL or host is required"})
		}
		if c.Database.MinConns > c.Database.MaxConns {
			errs = append(errs, &ConfigError{Field: "DB_MIN_CONNS", Message: "must not exceed DB_MAX_CONNS"})
		}
	case DriverBadger:
		if !c.Store.Badger.InMemory && c.Store.Badger.Path == "" {
			errs = append(errs, &ConfigError{Field: "BADGER_PATH", Message: "path is required unless BADGER_IN_MEMORY is set"})
		}
	case DriverMemory:
	default:
		errs = append(errs, &ConfigError{Field: "STORE_DRIVER", Message: "must be one of postgres, badger, memory"})
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, &ConfigError{Field: "LOG_LEVEL", Message: "must be one of debug, info, warn, error"})
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, &ConfigError{Field: "LOG_FORMAT", Message: "must be json or text"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ConfigError represents configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

// ConfigErrors collects every invalid field found by Validate
type ConfigErrors []*ConfigError

func (e ConfigErrors) Error() string {
	messages := make([]string, 0, len(e))
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return "environment validation failed:\n" + strings.Join(messages, "\n")
}
