// Package config loads server settings from an optional YAML file with
// environment variable overrides. Environment always wins so deploys can
// tweak a single knob without editing the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Database holds Postgres connection settings.
type Database struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the Postgres connection URL.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// Config holds all server settings.
type Config struct {
	// Port the HTTP gateway listens on.
	Port string `yaml:"port"`

	// Storage selects the backing store: "postgres" or "memory".
	Storage string `yaml:"storage"`

	Database Database `yaml:"database"`

	// NATSURL enables the NATS push bus when set. Empty means the
	// in-process bus, which is fine for a single gateway instance.
	NATSURL string `yaml:"nats_url"`

	// PGListener bridges Postgres NOTIFY events onto the push bus so
	// out-of-band row changes still reach subscribers.
	PGListener bool `yaml:"pg_listener"`

	// PollInterval is the audience polling backstop interval.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Defaults returns the baseline configuration.
func Defaults() Config {
	return Config{
		Port:    "8080",
		Storage: "postgres",
		Database: Database{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			Database: "slidecast",
			SSLMode:  "disable",
		},
		PollInterval: 3 * time.Second,
	}
}

// Load builds the config from defaults, an optional YAML file at path
// (skipped when path is empty or missing), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if cfg.Storage != "postgres" && cfg.Storage != "memory" {
		return cfg, fmt.Errorf("unknown storage driver %q", cfg.Storage)
	}
	if cfg.PollInterval <= 0 {
		return cfg, fmt.Errorf("poll interval must be positive, got %s", cfg.PollInterval)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Storage = getEnv("STORAGE", c.Storage)
	c.NATSURL = getEnv("NATS_URL", c.NATSURL)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)

	if v := os.Getenv("PG_LISTENER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.PGListener = b
		}
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PollInterval = d
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
