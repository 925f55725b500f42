package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// SkipMigrations disables the migration run at server start.
//
// Set via env:
// - SKIP_MIGRATIONS=true
func SkipMigrations() bool {
	return envBool("SKIP_MIGRATIONS", false)
}

// RedisDisabled runs the service without cache, locks or rate limiting.
func RedisDisabled() bool {
	return envBool("REDIS_DISABLED", false)
}

// RateLimitEnabled defaults to on; it only takes effect when Redis is connected.
func RateLimitEnabled() bool {
	return envBool("RATE_LIMIT_ENABLED", true)
}

func RateLimitMaxRequests() int {
	return envInt("RATE_LIMIT_MAX_REQUESTS", 600)
}

func RateLimitWindow() time.Duration {
	return time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second
}

// CacheLifespan is CACHE_LIFESPAN in hours (default 24).
func CacheLifespan() time.Duration {
	return time.Duration(envInt("CACHE_LIFESPAN", 24)) * time.Hour
}

// SaleEventsSink is "pubsub", "kafka" or "" (events disabled).
//
// Set via env:
// - SALE_EVENTS_SINK=kafka
func SaleEventsSink() string {
	return strings.ToLower(strings.TrimSpace(os.Getenv("SALE_EVENTS_SINK")))
}

// PhoneRegion is the default region used to parse client phone numbers.
func PhoneRegion() string {
	return strings.ToUpper(envString("PHONE_REGION", "PE"))
}

func IsProduction() bool {
	return os.Getenv("GO_ENV") == "production"
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envString(key string, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CORSAllowedOrigins is the comma-separated CORS_ALLOWED_ORIGINS allowlist.
func CORSAllowedOrigins() []string {
	return envList("CORS_ALLOWED_ORIGINS")
}
