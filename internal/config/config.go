package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Storage drivers
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config holds the application configuration
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Lock     LockConfig     `yaml:"lock"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// StorageConfig selects the billing store backend
type StorageConfig struct {
	Driver string `yaml:"driver"`
	// DSN is a file path for the file driver and a connection string otherwise.
	DSN string `yaml:"dsn"`
}

// LockConfig configures the billing run lock. An empty RedisURL uses an
// in-process lock, which only protects runs inside one process.
type LockConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// ScheduleConfig configures the monthly trigger of the schedule command
type ScheduleConfig struct {
	Monthly  string `yaml:"monthly"`
	Timezone string `yaml:"timezone"`
}

// LoggingConfig configures the logrus logger
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint of the schedule command
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Storage:  StorageConfig{Driver: DriverFile, DSN: "rentgo-data.yaml"},
		Lock:     LockConfig{TTL: 10 * time.Minute},
		Schedule: ScheduleConfig{Monthly: "0 6 1 * *", Timezone: "UTC"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Metrics:  MetricsConfig{Listen: ":9090"},
	}
}

// Load reads filename over the defaults, applies RENTGO_* environment
// overrides and validates the result. An empty filename skips the file.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Storage.Driver = getEnv("RENTGO_STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.DSN = getEnv("RENTGO_STORAGE_DSN", c.Storage.DSN)
	c.Lock.RedisURL = getEnv("RENTGO_REDIS_URL", c.Lock.RedisURL)
	c.Logging.Level = getEnv("RENTGO_LOG_LEVEL", c.Logging.Level)
	c.Metrics.Listen = getEnv("RENTGO_METRICS_LISTEN", c.Metrics.Listen)
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if c.Lock.TTL <= 0 {
		return fmt.Errorf("lock: ttl must be positive, got %s", c.Lock.TTL)
	}
	if err := c.validateSchedule(); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Driver {
	case DriverFile, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("invalid driver: %q (must be %s, %s or %s)", c.Storage.Driver, DriverFile, DriverSQLite, DriverPostgres)
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("dsn is required for the %s driver", c.Storage.Driver)
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if _, err := cron.ParseStandard(c.Schedule.Monthly); err != nil {
		return fmt.Errorf("invalid monthly spec %q: %w", c.Schedule.Monthly, err)
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Schedule.Timezone, err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("invalid format: %q (must be text or json)", c.Logging.Format)
	}
}

// Location returns the schedule's time zone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NewLogger builds the logrus logger described by the logging section
func (c LoggingConfig) NewLogger(output io.Writer) *logrus.Logger {
	logger := logrus.New()
	if output != nil {
		logger.SetOutput(output)
	}
	if strings.ToLower(c.Format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
