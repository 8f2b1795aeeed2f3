package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string

	// Appointment backend (the clinic scheduling REST service)
	BackendBaseURL     string
	BackendBearerToken string
	BackendTimeout     time.Duration

	// Slot availability cache
	SlotCacheBackend string // "memory" or "redis"
	SlotCacheTTL     time.Duration
	DebounceDefault  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		BackendBaseURL:     getEnv("BACKEND_BASE_URL", "http://localhost:9000/api"),
		BackendBearerToken: getEnv("BACKEND_BEARER_TOKEN", ""),
		BackendTimeout:     getEnvAsDuration("BACKEND_TIMEOUT", 8*time.Second),

		SlotCacheBackend: strings.ToLower(strings.TrimSpace(getEnv("SLOT_CACHE_BACKEND", "memory"))),
		SlotCacheTTL:     getEnvAsDuration("SLOT_CACHE_TTL", 3*time.Minute),
		DebounceDefault:  getEnvAsDuration("AVAILABILITY_DEBOUNCE", 250*time.Millisecond),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return nil
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
