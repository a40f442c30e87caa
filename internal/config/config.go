package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the configuration for the application.
type Config struct {
	AppEnv   string
	LogLevel string

	// API server
	DatabasePath string
	ServerAddr   string

	// API client
	APIBaseURL     string
	APISigningKey  string
	APIKeyID       string
	APITokenTTL    time.Duration
	RequestTimeout time.Duration

	// Circuit breaker
	BreakerFailureThreshold uint32
	BreakerTimeout          time.Duration

	// Week cache
	CacheBackend string
	CacheSize    int
	CacheTTL     time.Duration
	RedisURL     string

	DefaultUserID string

	// Telegram Config
	TelegramBotToken     string
	TelegramWebhookURL   string
	TelegramAllowUserIDs []int64
	TelegramAdminID      int64
	TelegramPort         string
}

// NewFromEnv creates a new Config object from environment variables.
// A .env file in the working directory is loaded first when present.
func NewFromEnv() (*Config, error) {
	_ = godotenv.Load()

	signingKey := os.Getenv("API_SIGNING_KEY")
	if signingKey == "" {
		return nil, fmt.Errorf("API_SIGNING_KEY environment variable not set")
	}

	cacheBackend := strings.ToLower(getEnv("CACHE_BACKEND", "memory"))
	if cacheBackend != "memory" && cacheBackend != "redis" {
		return nil, fmt.Errorf("CACHE_BACKEND must be memory or redis, got %q", cacheBackend)
	}
	redisURL := os.Getenv("REDIS_URL")
	if cacheBackend == "redis" && redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL environment variable not set")
	}

	allowed, err := parseIDList(os.Getenv("TELEGRAM_ALLOWED_USER_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS: %w", err)
	}

	var adminID int64
	if raw := os.Getenv("ADMIN_TELEGRAM_ID"); raw != "" {
		adminID, err = strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	return &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: os.Getenv("LOG_LEVEL"),

		DatabasePath: getEnv("DATABASE_PATH", "data/meal-planner.db"),
		ServerAddr:   getEnv("SERVER_ADDR", ":8080"),

		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8080"),
		APISigningKey:  signingKey,
		APIKeyID:       getEnv("API_KEY_ID", "meal-planner"),
		APITokenTTL:    getDurationEnv("API_TOKEN_TTL", 5*time.Minute),
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", 10*time.Second),

		BreakerFailureThreshold: uint32(getIntEnv("BREAKER_FAILURE_THRESHOLD", 5)),
		BreakerTimeout:          getDurationEnv("BREAKER_TIMEOUT", 30*time.Second),

		CacheBackend: cacheBackend,
		CacheSize:    getIntEnv("CACHE_SIZE", 256),
		CacheTTL:     getDurationEnv("CACHE_TTL", 5*time.Minute),
		RedisURL:     redisURL,

		DefaultUserID: getEnv("DEFAULT_USER_ID", "1"),

		TelegramBotToken:     os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL:   os.Getenv("TELEGRAM_WEBHOOK_URL"),
		TelegramAllowUserIDs: allowed,
		TelegramAdminID:      adminID,
		TelegramPort:         getEnv("PORT", "8081"),
	}, nil
}

// ValidateTelegram checks the keys the bot cannot start without.
func (c *Config) ValidateTelegram() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.TelegramWebhookURL == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// SlogLevel maps LogLevel to a slog level. When unset, development logs at debug.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if c.IsDevelopment() {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// IsTelegramUserAllowed reports whether id may use the bot. An empty list allows everyone.
func (c *Config) IsTelegramUserAllowed(id int64) bool {
	if len(c.TelegramAllowUserIDs) == 0 {
		return true
	}
	for _, allowed := range c.TelegramAllowUserIDs {
		if allowed == id {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
