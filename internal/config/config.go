package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the service configuration, loaded once at startup.
type Config struct {
	Port            string
	ModelPath       string
	CacheTTL        time.Duration
	RateLimitPerMin int
	GinMode         string
}

// Load reads configuration from the environment, with a .env file applied
// first when present. Missing keys fall back to defaults; the model path is
// the only setting whose validity is checked later, at artifact load.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	return Config{
		Port:            getEnvOrDefault("PORT", "8080"),
		ModelPath:       getEnvOrDefault("MODEL_PATH", "./rf_model.json"),
		CacheTTL:        getDurationOrDefault("CACHE_TTL", 15*time.Minute),
		RateLimitPerMin: getIntOrDefault("RATE_LIMIT_PER_MIN", 60),
		GinMode:         getEnvOrDefault("GIN_MODE", "release"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", value)
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
		slog.Warn("Invalid duration in environment, using default", "key", key, "value", value)
	}
	return defaultValue
}
