package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Name     string
	SSLMode  string
}

// Load reads configuration from the environment into AppConfig.
func Load() error {
	env := getEnv("APP_ENV", "development")

	AppConfig = &Config{
		Environment: env,
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Username: getEnv("DB_USER", ""),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "club-db"),
			SSLMode:  getSSLMode(env),
		},
		Realtime: RealtimeConfig{
			CacheTTL:           getEnvAsDuration("CACHE_TTL", 5*time.Minute),
			RefetchConcurrency: getEnvAsInt("REFETCH_CONCURRENCY", 5),
			WriteTimeout:       getEnvAsDuration("LEDGER_WRITE_TIMEOUT", 10*time.Second),
			ExpirySweep:        getEnvAsDuration("EXPIRY_SWEEP", time.Hour),
		},
		Notify: NotifyConfig{
			BotToken: getEnv("BOT_TOKEN", ""),
			Debug:    getEnvAsBool("BOT_DEBUG", env != "production"),
			AdminIDs: parseAdminIDs(getEnv("ADMIN_IDS", "")),
		},
	}

	return validate()
}

// validate checks required settings.
func validate() error {
	var errors []string

	if AppConfig.Database.Username == "" {
		errors = append(errors, "DB_USER is required")
	}

	if AppConfig.Database.Password == "" && AppConfig.Environment == "production" {
		errors = append(errors, "DB_PASSWORD is required in production")
	}

	if AppConfig.Realtime.RefetchConcurrency < 1 {
		errors = append(errors, "REFETCH_CONCURRENCY must be at least 1")
	}

	if len(errors) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errors, ", "))
	}

	return nil
}

// getSSLMode picks the SSL mode for the environment.
func getSSLMode(env string) string {
	if env == "production" {
		return "require"
	}
	return "disable"
}

// parseAdminIDs parses a comma-separated list of admin chat IDs.
func parseAdminIDs(ids string) []int64 {
	if ids == "" {
		return []int64{}
	}

	var result []int64
	for _, idStr := range strings.Split(ids, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64); err == nil {
			result = append(result, id)
		}
	}
	return result
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
