package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIURL      string
	HTTPTimeout time.Duration
	// Sync cadence: the countdown runs SyncInterval units of SyncUnit each.
	SyncInterval int
	SyncUnit     time.Duration
	// Session storage: "memory" or "redis"
	SessionBackend string
	RedisURL       string
	StatsTZ        string
	MetricsAddr    string
	// Driver login, used only when no session restores
	Username string
	Password string
	LogLevel string
}

func Load() Config {
	return Config{
		APIURL:         getenv("OPENVOTE_API_URL", "http://localhost:8095/api/v1"),
		HTTPTimeout:    getenvDuration("OPENVOTE_HTTP_TIMEOUT", 10*time.Second),
		SyncInterval:   getenvInt("OPENVOTE_SYNC_INTERVAL", 15),
		SyncUnit:       getenvDuration("OPENVOTE_SYNC_UNIT", time.Second),
		SessionBackend: getenv("OPENVOTE_SESSION_BACKEND", "memory"),
		RedisURL:       getenv("REDIS_URL", "redis://localhost:6379/0"),
		StatsTZ:        getenv("OPENVOTE_STATS_TZ", "UTC"),
		MetricsAddr:    getenv("OPENVOTE_METRICS_ADDR", ":9109"),
		Username:       getenv("OPENVOTE_USERNAME", ""),
		Password:       getenv("OPENVOTE_PASSWORD", ""),
		LogLevel:       getenv("LOG_LEVEL", "info"),
	}
}

// Location resolves StatsTZ, falling back to UTC when it does not load.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.StatsTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
