package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                    string
	DatabaseURL             string
	FeedPollInterval        time.Duration
	FeedBatchSize           int
	SettingsRefreshInterval time.Duration
	RateLimitPerMinute      int
	RateLimitBurst          int
	KioskRateLimitPerMinute int
	KioskRateLimitBurst     int
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:                    port,
		DatabaseURL:             os.Getenv("DB_DSN"),
		FeedPollInterval:        readDurationSeconds("FEED_POLL_INTERVAL_SECONDS", 1),
		FeedBatchSize:           readInt("FEED_BATCH_SIZE", 100),
		SettingsRefreshInterval: readDurationSeconds("SETTINGS_REFRESH_SECONDS", 60),
		RateLimitPerMinute:      readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:          readInt("RATE_LIMIT_BURST", 30),
		KioskRateLimitPerMinute: readInt("KIOSK_RATE_LIMIT_PER_MIN", 30),
		KioskRateLimitBurst:     readInt("KIOSK_RATE_LIMIT_BURST", 10),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
