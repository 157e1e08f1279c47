package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	MinPullPageSize = 1
	MaxPullPageSize = 1000
)

type Config struct {
	LocalDBPath    string
	APIURL         string
	APIKey         string
	StoreID        int
	LogLevel       string
	LogFormat      string
	SyncSchedule   string
	PullPageSize   int
	RequestTimeout time.Duration
	MetricsPort    string
}

func Load() *Config {
	_ = godotenv.Load()

	pageSize := getEnvInt("PULL_PAGE_SIZE", 500)

	if pageSize > MaxPullPageSize {
		slog.Warn("PULL_PAGE_SIZE exceeds safety limit. Clamping to maximum", "requested", pageSize, "limit", MaxPullPageSize)
		pageSize = MaxPullPageSize
	} else if pageSize < MinPullPageSize {
		pageSize = MinPullPageSize
	}

	return &Config{
		LocalDBPath:    getEnv("LOCAL_DB_PATH", "pdv.db"),
		APIURL:         getEnv("API_URL", "http://localhost:8000"),
		APIKey:         getEnv("API_KEY", ""),
		StoreID:        getEnvInt("STORE_ID", 0),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),
		LogFormat:      getEnv("LOG_FORMAT", "TEXT"),
		SyncSchedule:   getEnv("SYNC_SCHEDULE", "@every 5m"),
		PullPageSize:   pageSize,
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,
		MetricsPort:    getEnv("METRICS_PORT", "9091"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
