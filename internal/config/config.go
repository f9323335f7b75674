// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	_ "time/tzdata" // TIMEZONE must resolve on hosts without a zoneinfo db

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

type Config struct {
	// Storage
	DBPath string

	// Backups
	BackupDir        string
	BackupKeep       int
	BackupPassphrase string

	// Month buckets are computed in this zone.
	Timezone string

	// Observability
	LogLevel    string
	MetricsAddr string
}

// Load reads a .env file when present, then the environment.
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the environment without touching .env files.
func FromEnv() *Config {
	return &Config{
		DBPath: getEnv("DB_PATH", "./data/billbook.db"),

		BackupDir:        getEnv("BACKUP_DIR", "./data/backups"),
		BackupKeep:       getEnvInt("BACKUP_KEEP", 5),
		BackupPassphrase: getEnv("BACKUP_PASSPHRASE", ""),

		Timezone: getEnv("TIMEZONE", "Local"),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		MetricsAddr: getEnv("METRICS_ADDR", ""),
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Validate validates the configuration and returns every problem found.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.DBPath == "" {
		result = multierror.Append(result, fmt.Errorf("DB_PATH cannot be empty"))
	}
	if c.BackupDir == "" {
		result = multierror.Append(result, fmt.Errorf("BACKUP_DIR cannot be empty"))
	}
	if c.BackupKeep < 1 || c.BackupKeep > 100 {
		result = multierror.Append(result, fmt.Errorf("invalid BACKUP_KEEP %d: must be between 1 and 100", c.BackupKeep))
	}
	if _, err := c.Location(); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid TIMEZONE '%s': %w", c.Timezone, err))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		result = multierror.Append(result, fmt.Errorf("invalid LOG_LEVEL '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid METRICS_ADDR '%s': %w", c.MetricsAddr, err))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
