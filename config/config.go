package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"investstream/internal/adapters/logger" // Import the logger package for LogLevel
	"investstream/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Stream endpoint
	StreamURL string
	AuthToken string

	// Subscriptions
	FIGIs          []string
	CandleInterval domain.CandleInterval
	OrderBookDepth int // 0 disables orderbook subscriptions

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter

	// Connection Settings
	PingInterval         time.Duration
	ReconnectMinDelay    time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int
}

// DefaultStreamURL is used when STREAM_URL is not set.
const DefaultStreamURL = "wss://api-invest.tinkoff.ru/openapi/md/v1/md-openapi/ws"

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string // Collect validation errors

	// Stream endpoint
	cfg.StreamURL = getEnv("STREAM_URL", DefaultStreamURL)
	if cfg.StreamURL == "" {
		errs = append(errs, "STREAM_URL must be set")
	}
	cfg.AuthToken = getEnv("AUTH_TOKEN", "")
	if cfg.AuthToken == "" {
		errs = append(errs, "AUTH_TOKEN must be set")
	}

	// Subscriptions
	cfg.FIGIs = splitList(getEnv("FIGIS", ""))
	if len(cfg.FIGIs) == 0 {
		errs = append(errs, "FIGIS must list at least one instrument (comma separated)")
	}

	intervalStr := getEnv("CANDLE_INTERVAL", string(domain.Interval1Min))
	interval, err := domain.ParseCandleInterval(intervalStr)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CANDLE_INTERVAL: %v", err))
	} else {
		cfg.CandleInterval = interval
	}

	cfg.OrderBookDepth = getEnvAsInt("ORDERBOOK_DEPTH", 10)
	if cfg.OrderBookDepth < 0 {
		errs = append(errs, "ORDERBOOK_DEPTH cannot be negative")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/marketdata.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Connection Settings
	pingSeconds := getEnvAsInt("PING_INTERVAL_SECONDS", 25)
	if pingSeconds <= 0 {
		errs = append(errs, "PING_INTERVAL_SECONDS must be positive")
	}
	cfg.PingInterval = time.Duration(pingSeconds) * time.Second

	minDelaySeconds := getEnvAsInt("RECONNECT_MIN_DELAY_SECONDS", 1)
	if minDelaySeconds <= 0 {
		errs = append(errs, "RECONNECT_MIN_DELAY_SECONDS must be positive")
	}
	cfg.ReconnectMinDelay = time.Duration(minDelaySeconds) * time.Second

	maxDelaySeconds := getEnvAsInt("RECONNECT_MAX_DELAY_SECONDS", 30)
	if maxDelaySeconds < minDelaySeconds {
		errs = append(errs, "RECONNECT_MAX_DELAY_SECONDS must be >= RECONNECT_MIN_DELAY_SECONDS")
	}
	cfg.ReconnectMaxDelay = time.Duration(maxDelaySeconds) * time.Second

	cfg.MaxReconnectAttempts = getEnvAsInt("MAX_RECONNECT_ATTEMPTS", 10)
	if cfg.MaxReconnectAttempts <= 0 {
		errs = append(errs, "MAX_RECONNECT_ATTEMPTS must be positive")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	var items []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
