// Package config handles application configuration from environment
// variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string        `yaml:"telegram_bot_token"`
	DatabaseDriver   string        `yaml:"database_driver"`
	DatabasePath     string        `yaml:"database_path"`
	LogLevel         string        `yaml:"log_level"`
	AllowedUsers     []int64       `yaml:"allowed_users"`
	ScanInterval     time.Duration `yaml:"scan_interval"`
	ScanWorkers      int           `yaml:"scan_workers"`
	SendRate         float64       `yaml:"send_rate"`
	SearchURL        string        `yaml:"search_url"`
	MetricsAddr      string        `yaml:"metrics_addr"`
}

func defaults() *Config {
	return &Config{
		DatabaseDriver: DriverSQLite,
		DatabasePath:   "./data/bot.db",
		LogLevel:       "info",
		ScanInterval:   5 * time.Minute,
		ScanWorkers:    4,
		SendRate:       20,
		SearchURL:      "https://html.duckduckgo.com/html/",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE if set, then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	setString(&c.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.DatabaseDriver, "DATABASE_DRIVER")
	setString(&c.DatabasePath, "DATABASE_PATH")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.SearchURL, "SEARCH_URL")
	setString(&c.MetricsAddr, "METRICS_ADDR")

	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		users, err := parseUserIDs(raw)
		if err != nil {
			return err
		}
		c.AllowedUsers = users
	}
	if raw := os.Getenv("SCAN_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid SCAN_INTERVAL %q: %w", raw, err)
		}
		c.ScanInterval = d
	}
	if raw := os.Getenv("SCAN_WORKERS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid SCAN_WORKERS %q: %w", raw, err)
		}
		c.ScanWorkers = n
	}
	if raw := os.Getenv("SEND_RATE"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid SEND_RATE %q: %w", raw, err)
		}
		c.SendRate = r
	}
	return nil
}

func (c *Config) validate() error {
	if c.TelegramBotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("SCAN_INTERVAL must be positive, got %s", c.ScanInterval)
	}
	if c.ScanWorkers < 1 {
		return fmt.Errorf("SCAN_WORKERS must be at least 1, got %d", c.ScanWorkers)
	}
	if c.SendRate < 0 {
		return fmt.Errorf("SEND_RATE must not be negative, got %v", c.SendRate)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func parseUserIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
		}
		ids = append(ids, uid)
	}
	return ids, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}
