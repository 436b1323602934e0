package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Gateway    GatewayConfig
	Secrets    SecretsConfig
	Settlement SettlementConfig
	RateLimit  RateLimitConfig
	Logger     LoggerConfig
}

// ServerConfig holds webhook HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	MetricsPort     int
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL      string // Full connection URL; takes precedence over the discrete fields
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// RedisConfig holds Redis configuration for event dedup and the order cache
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	EventTTL time.Duration // retention for processed webhook event ids
	CacheTTL time.Duration // order cache entry lifetime
}

// GatewayConfig holds payment gateway API configuration
type GatewayConfig struct {
	BaseURL    string // Base URL for the gateway REST API (e.g. https://api.reepay.com)
	Timeout    time.Duration
	MaxRetries int
	// WebhookURL is the publicly reachable URL of this service's webhook
	// endpoint, pushed to the gateway's webhook settings on startup.
	WebhookURL string
}

// SecretsConfig selects the secret backend and the secret names to resolve.
// The gateway private API key and the webhook HMAC secret are never read from
// the environment directly; they come from the configured backend.
type SecretsConfig struct {
	Backend       string // local, aws, vault
	LocalDir      string
	AWSRegion     string
	VaultMount    string
	APIKeySecret  string // secret name holding the gateway private key
	WebhookSecret string // secret name holding the webhook HMAC secret
	CacheTTL      time.Duration
	DisableCache  bool
}

// SettlementConfig holds the instant-settle policy flags
type SettlementConfig struct {
	SettlePhysical  bool
	SettleVirtual   bool
	SettleRecurring bool
	SettleFee       bool
}

// RateLimitConfig holds webhook endpoint rate limiting
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort:     getEnvAsInt("METRICS_PORT", 9090),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "settlement_service"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			EventTTL: getEnvAsDuration("REDIS_EVENT_TTL", 7*24*time.Hour),
			CacheTTL: getEnvAsDuration("REDIS_CACHE_TTL", 15*time.Minute),
		},
		Gateway: GatewayConfig{
			BaseURL:    getEnv("GATEWAY_BASE_URL", "https://api.reepay.com"),
			Timeout:    getEnvAsDuration("GATEWAY_TIMEOUT", 30*time.Second),
			MaxRetries: getEnvAsInt("GATEWAY_MAX_RETRIES", 3),
			WebhookURL: getEnv("GATEWAY_WEBHOOK_URL", ""),
		},
		Secrets: SecretsConfig{
			Backend:       getEnv("SECRETS_BACKEND", "local"),
			LocalDir:      getEnv("SECRETS_LOCAL_DIR", "./secrets"),
			AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
			VaultMount:    getEnv("VAULT_MOUNT", "secret"),
			APIKeySecret:  getEnv("GATEWAY_API_KEY_SECRET", "gateway-api-key"),
			WebhookSecret: getEnv("WEBHOOK_HMAC_SECRET", "webhook-hmac-secret"),
			CacheTTL:      getEnvAsDuration("SECRETS_CACHE_TTL", 5*time.Minute),
			DisableCache:  getEnvAsBool("SECRETS_DISABLE_CACHE", false),
		},
		Settlement: SettlementConfig{
			SettlePhysical:  getEnvAsBool("SETTLE_PHYSICAL", false),
			SettleVirtual:   getEnvAsBool("SETTLE_VIRTUAL", true),
			SettleRecurring: getEnvAsBool("SETTLE_RECURRING", true),
			SettleFee:       getEnvAsBool("SETTLE_FEE", false),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 50),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 100),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	// Validate required fields
	if cfg.Database.URL == "" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DATABASE_URL or DB_PASSWORD is required")
	}
	switch cfg.Secrets.Backend {
	case "local", "aws", "vault":
	default:
		return nil, fmt.Errorf("SECRETS_BACKEND must be local, aws, or vault (got %q)", cfg.Secrets.Backend)
	}

	return cfg, nil
}

// ConnectionString returns the PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
