package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sguter90/watermaestro/pkg/models"
	"github.com/sguter90/watermaestro/pkg/scheduler"
	"github.com/sguter90/watermaestro/pkg/storage"
)

// Config holds all runtime settings
type Config struct {
	Port           string
	AllowedOrigins []string

	Storage storage.Config

	TickInterval    time.Duration
	HistoryCapacity int
	SampleInterval  time.Duration

	LogLevel  string
	LogFormat string
}

// LoadConfig reads the configuration from the environment
func LoadConfig() (*Config, error) {
	capacity, err := getEnvInt("HISTORY_CAPACITY", models.DefaultHistoryCapacity)
	if err != nil {
		return nil, err
	}
	tickInterval, err := getEnvDuration("TICK_INTERVAL", scheduler.DefaultInterval)
	if err != nil {
		return nil, err
	}
	sampleInterval, err := getEnvDuration("SAMPLE_INTERVAL", models.DefaultSampleInterval)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:           getEnv("SERVER_PORT", "8059"),
		AllowedOrigins: splitOrigins(getEnv("SERVER_ALLOWED_ORIGINS", "")),
		Storage: storage.Config{
			Backend:    getEnv("STORAGE_BACKEND", storage.BackendFile),
			Path:       getEnv("STORAGE_PATH", "./data"),
			SQLitePath: getEnv("SQLITE_PATH", "./data/watermaestro.db"),
			Postgres: storage.PostgresConfig{
				Host:     getEnv("DB_HOST", "localhost"),
				Port:     getEnv("DB_PORT", "5432"),
				User:     getEnv("DB_USER", "water_user"),
				Password: getEnv("DB_PASSWORD", "water_pass"),
				Name:     getEnv("DB_NAME", "water_db"),
				SSLMode:  getEnv("DB_SSLMODE", "disable"),
			},
		},
		TickInterval:    tickInterval,
		HistoryCapacity: capacity,
		SampleInterval:  sampleInterval,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "console"),
	}

	return cfg, cfg.Validate()
}

// Validate checks the settings are usable
func (c *Config) Validate() error {
	if c.HistoryCapacity < 1 {
		return fmt.Errorf("history capacity must be at least 1, got %d", c.HistoryCapacity)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("sample interval must be positive, got %s", c.SampleInterval)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// splitOrigins parses a comma-separated origin list, falling back to the
// local dev servers.
func splitOrigins(value string) []string {
	if strings.TrimSpace(value) == "" {
		return []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}
	}

	var origins []string
	for _, origin := range strings.Split(value, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
