// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultIntervalMinutes = 30
	DefaultMinInterval     = 5
	DefaultSeenCap         = 200
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	YouTubeAPIKey    string
	DatabasePath     string
	LogLevel         string

	// DefaultIntervalMinutes is the poll interval assigned to new chats.
	DefaultIntervalMinutes int
	// MinIntervalMinutes is the floor for /update; values below it are rejected.
	MinIntervalMinutes int
	// SeenCap bounds the number of entry IDs retained per feed source.
	SeenCap int
}

// Load reads configuration from the environment, consulting a .env file
// in the working directory first if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/bot.db"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	interval, err := intEnv("DEFAULT_INTERVAL_MINUTES", DefaultIntervalMinutes)
	if err != nil {
		return nil, err
	}
	minInterval, err := intEnv("MIN_INTERVAL_MINUTES", DefaultMinInterval)
	if err != nil {
		return nil, err
	}
	seenCap, err := intEnv("SEEN_CAP", DefaultSeenCap)
	if err != nil {
		return nil, err
	}
	if interval < minInterval {
		return nil, fmt.Errorf("DEFAULT_INTERVAL_MINUTES %d is below MIN_INTERVAL_MINUTES %d", interval, minInterval)
	}

	return &Config{
		TelegramBotToken:       token,
		YouTubeAPIKey:          os.Getenv("YOUTUBE_API_KEY"),
		DatabasePath:           dbPath,
		LogLevel:               logLevel,
		DefaultIntervalMinutes: interval,
		MinIntervalMinutes:     minInterval,
		SeenCap:                seenCap,
	}, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("invalid %s value %q: must be a positive integer", key, raw)
	}
	return v, nil
}
