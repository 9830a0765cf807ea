package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer string // Required: issuer claim for session tokens

	DatabaseFile      string        // Optional: path to SQLite database file (default: ./identity.db)
	PepperFile        string        // Optional: path to file containing pepper for password hashing (default: ./pepper)
	SessionTokenTTL   time.Duration // Optional: session token lifetime (default: 1h)
	ResetTokenTTL     time.Duration // Optional: password reset token lifetime (default: 24h)
	ResetBaseURL      string        // Optional: base URL embedded in reset links
	MaxFailedAttempts int           // Optional: wrong passwords before lockout (default: 5)
	LockDuration      time.Duration // Optional: lockout length (default: 30m)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 15m)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:               getEnvOrDefault("IDENTITY_ISSUER", "mealsphere-identity"),
		DatabaseFile:         getEnvOrDefault("IDENTITY_DATABASE_FILE", "identity.db"),
		PepperFile:           getEnvOrDefault("IDENTITY_PEPPER_FILE", "pepper"),
		SessionTokenTTL:      getEnvDurationOrDefault("IDENTITY_SESSION_TOKEN_TTL", time.Hour),
		ResetTokenTTL:        getEnvDurationOrDefault("IDENTITY_RESET_TOKEN_TTL", 24*time.Hour),
		ResetBaseURL:         getEnvOrDefault("IDENTITY_RESET_BASE_URL", "http://localhost:8080/reset-password"),
		MaxFailedAttempts:    getEnvIntOrDefault("IDENTITY_MAX_FAILED_ATTEMPTS", 5),
		LockDuration:         getEnvDurationOrDefault("IDENTITY_LOCK_DURATION", 30*time.Minute),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 15*time.Minute),
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
