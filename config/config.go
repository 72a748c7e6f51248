// Package config loads application configuration from an optional
// config.json file with environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"hft-trading-bot/internal/api"
	"hft-trading-bot/internal/auth"
	"hft-trading-bot/internal/cache"
	"hft-trading-bot/internal/database"
	"hft-trading-bot/internal/feed"
	"hft-trading-bot/internal/hft"
	"hft-trading-bot/internal/logging"
	"hft-trading-bot/internal/notification"
	"hft-trading-bot/internal/vault"
)

// Config is the full application configuration
type Config struct {
	HFT          hft.Config         `json:"hft"`
	Feed         feed.Config        `json:"feed"`
	Server       api.Config         `json:"server"`
	Auth         auth.Config        `json:"auth"`
	Database     database.Config    `json:"database"`
	Redis        cache.Config       `json:"redis"`
	Vault        vault.Config       `json:"vault"`
	Logging      logging.Config     `json:"logging"`
	Notification NotificationConfig `json:"notification"`
}

// NotificationConfig holds notification provider configuration
type NotificationConfig struct {
	Enabled  bool                        `json:"enabled"`
	Telegram notification.TelegramConfig `json:"telegram"`
}

// Default returns the complete default configuration
func Default() *Config {
	return &Config{
		HFT:      hft.DefaultConfig(),
		Feed:     feed.DefaultConfig(),
		Server:   api.DefaultConfig(),
		Auth:     auth.DefaultConfig(),
		Database: database.DefaultConfig(),
		Redis:    cache.DefaultConfig(),
		Vault:    vault.DefaultConfig(),
		Logging: logging.Config{
			Level:      "info",
			Output:     "stdout",
			JSONFormat: false,
		},
	}
}

// Load reads config.json if present, then applies environment overrides.
// Environment variables take precedence over the file.
func Load() (*Config, error) {
	cfg := Default()

	if err := loadFromFile(cfg, "config.json"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that defaults cannot guarantee
func (c *Config) Validate() error {
	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth is enabled but jwt_secret is empty")
		}
		if c.Auth.PasswordHash == "" {
			return fmt.Errorf("auth is enabled but password_hash is empty")
		}
	}
	if c.Feed.Enabled && len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("feed is enabled but no symbols are configured")
	}
	if c.HFT.MaxDrawdownPercent <= 0 {
		return fmt.Errorf("max_drawdown_percent must be positive")
	}
	return nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	// Engine
	cfg.HFT.RequiredConfirmations = getEnvIntOrDefault("HFT_REQUIRED_CONFIRMATIONS", cfg.HFT.RequiredConfirmations)
	cfg.HFT.MinConfirmationScore = getEnvFloatOrDefault("HFT_MIN_CONFIRMATION_SCORE", cfg.HFT.MinConfirmationScore)
	cfg.HFT.MinRiskReward = getEnvFloatOrDefault("HFT_MIN_RISK_REWARD", cfg.HFT.MinRiskReward)
	cfg.HFT.MaxPositionSize = getEnvFloatOrDefault("HFT_MAX_POSITION_SIZE", cfg.HFT.MaxPositionSize)
	cfg.HFT.MaxSpreadPercent = getEnvFloatOrDefault("HFT_MAX_SPREAD_PERCENT", cfg.HFT.MaxSpreadPercent)
	cfg.HFT.MinLiquidity = getEnvFloatOrDefault("HFT_MIN_LIQUIDITY", cfg.HFT.MinLiquidity)
	cfg.HFT.MaxDrawdownPercent = getEnvFloatOrDefault("HFT_MAX_DRAWDOWN_PERCENT", cfg.HFT.MaxDrawdownPercent)
	cfg.HFT.MaxConcurrentPositions = getEnvIntOrDefault("HFT_MAX_CONCURRENT_POSITIONS", cfg.HFT.MaxConcurrentPositions)
	cfg.HFT.MaxDailyTrades = getEnvIntOrDefault("HFT_MAX_DAILY_TRADES", cfg.HFT.MaxDailyTrades)
	cfg.HFT.EnableWhaleDetection = getEnvBoolOrDefault("HFT_ENABLE_WHALE_DETECTION", cfg.HFT.EnableWhaleDetection)
	cfg.HFT.EnableSessionFilter = getEnvBoolOrDefault("HFT_ENABLE_SESSION_FILTER", cfg.HFT.EnableSessionFilter)

	// Feed
	cfg.Feed.Enabled = getEnvBoolOrDefault("FEED_ENABLED", cfg.Feed.Enabled)
	cfg.Feed.BaseURL = getEnvOrDefault("FEED_BASE_URL", cfg.Feed.BaseURL)
	if symbols := os.Getenv("FEED_SYMBOLS"); symbols != "" {
		cfg.Feed.Symbols = strings.Split(symbols, ",")
	}
	cfg.Feed.Depth = getEnvIntOrDefault("FEED_DEPTH", cfg.Feed.Depth)

	// Server
	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvIntOrDefault("SERVER_PORT", cfg.Server.Port)
	cfg.Server.ProductionMode = getEnvBoolOrDefault("PRODUCTION_MODE", cfg.Server.ProductionMode)

	// Auth
	cfg.Auth.Enabled = getEnvBoolOrDefault("AUTH_ENABLED", cfg.Auth.Enabled)
	cfg.Auth.JWTSecret = getEnvOrDefault("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.Username = getEnvOrDefault("AUTH_USERNAME", cfg.Auth.Username)
	cfg.Auth.PasswordHash = getEnvOrDefault("AUTH_PASSWORD_HASH", cfg.Auth.PasswordHash)
	cfg.Auth.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", cfg.Auth.AccessTokenDuration)
	cfg.Auth.RefreshTokenDuration = getEnvDurationOrDefault("AUTH_REFRESH_TOKEN_DURATION", cfg.Auth.RefreshTokenDuration)

	// Database
	cfg.Database.Enabled = getEnvBoolOrDefault("DATABASE_ENABLED", cfg.Database.Enabled)
	cfg.Database.Host = getEnvOrDefault("DATABASE_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvIntOrDefault("DATABASE_PORT", cfg.Database.Port)
	cfg.Database.User = getEnvOrDefault("DATABASE_USER", cfg.Database.User)
	cfg.Database.Password = getEnvOrDefault("DATABASE_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnvOrDefault("DATABASE_NAME", cfg.Database.Database)
	cfg.Database.SSLMode = getEnvOrDefault("DATABASE_SSL_MODE", cfg.Database.SSLMode)

	// Redis
	cfg.Redis.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.Redis.Address)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvIntOrDefault("REDIS_DB", cfg.Redis.DB)

	// Vault
	cfg.Vault.Enabled = getEnvBoolOrDefault("VAULT_ENABLED", cfg.Vault.Enabled)
	cfg.Vault.Address = getEnvOrDefault("VAULT_ADDR", cfg.Vault.Address)
	cfg.Vault.Token = getEnvOrDefault("VAULT_TOKEN", cfg.Vault.Token)
	cfg.Vault.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.Vault.MountPath)
	cfg.Vault.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.Vault.SecretPath)

	// Logging
	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Output = getEnvOrDefault("LOG_OUTPUT", cfg.Logging.Output)
	cfg.Logging.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.Logging.JSONFormat)

	// Notifications
	cfg.Notification.Enabled = getEnvBoolOrDefault("NOTIFICATIONS_ENABLED", cfg.Notification.Enabled)
	cfg.Notification.Telegram.Enabled = getEnvBoolOrDefault("TELEGRAM_ENABLED", cfg.Notification.Telegram.Enabled)
	cfg.Notification.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.Notification.Telegram.BotToken)
	cfg.Notification.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.Notification.Telegram.ChatID)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
