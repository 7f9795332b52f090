package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Voucher  VoucherConfig
	S3       S3Config
	Events   EventsConfig
	Retry    RetryConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host           string `env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port           int    `env:"SERVER_PORT" env-default:"8080"`
	AllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" env-default:"*"` // comma separated
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string `env:"DB_HOST" env-default:"localhost"`
	Port            int    `env:"DB_PORT" env-default:"5432"`
	User            string `env:"DB_USER" env-default:"postgres"`
	Password        string `env:"DB_PASSWORD"`
	Database        string `env:"DB_NAME" env-default:"vouchers"`
	MaxConnections  int    `env:"DB_MAX_CONNECTIONS" env-default:"25"`
	MinConnections  int    `env:"DB_MIN_CONNECTIONS" env-default:"5"`
	MaxConnLifetime int    `env:"DB_MAX_CONN_LIFETIME" env-default:"300"` // seconds
	Migrate         bool   `env:"DB_MIGRATE" env-default:"true"`

	// LockTimeout bounds how long a redemption waits for a voucher row lock.
	LockTimeout     time.Duration `env:"DB_LOCK_TIMEOUT" env-default:"5s"`
	ConnectAttempts int           `env:"DB_CONNECT_ATTEMPTS" env-default:"5"`
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"json"` // "json" or "console"
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	APIKey string `env:"API_KEY"`
}

// VoucherConfig holds the voucher engine configuration.
type VoucherConfig struct {
	CodeAlphabet    string `env:"VOUCHER_CODE_ALPHABET" env-default:"ABCDEFGHJKLMNPQRSTUVWXYZ23456789"`
	CodeLength      int    `env:"VOUCHER_CODE_LENGTH" env-default:"8"`
	CodePrefix      string `env:"VOUCHER_CODE_PREFIX"`
	CodeSuffix      string `env:"VOUCHER_CODE_SUFFIX"`
	CodeSeparator   string `env:"VOUCHER_CODE_SEPARATOR" env-default:"-"`
	MaxAttempts     int    `env:"VOUCHER_CODE_MAX_ATTEMPTS" env-default:"16"`
	RedeemRelation  string `env:"VOUCHER_REDEEM_RELATION" env-default:"vouchers"`
	Schema          string `env:"VOUCHER_SCHEMA" env-default:"public"`
	VoucherTable    string `env:"VOUCHER_TABLE" env-default:"vouchers"`
	RedemptionTable string `env:"VOUCHER_REDEMPTION_TABLE" env-default:"voucher_redemptions"`
	ReservedFiles   string `env:"VOUCHER_RESERVED_FILES"` // comma separated
}

// S3Config holds AWS S3 configuration for reserved code files.
type S3Config struct {
	Enabled bool   `env:"S3_ENABLED" env-default:"false"`
	Bucket  string `env:"S3_BUCKET"`
	Region  string `env:"S3_REGION" env-default:"us-east-1"`
	Prefix  string `env:"S3_PREFIX" env-default:"reserved-codes/"` // Path prefix within bucket
}

// EventsConfig holds redemption event delivery configuration.
type EventsConfig struct {
	SQSEnabled  bool   `env:"EVENTS_SQS_ENABLED" env-default:"false"`
	SQSQueueURL string `env:"EVENTS_SQS_QUEUE_URL"`
	SQSRegion   string `env:"EVENTS_SQS_REGION" env-default:"us-east-1"`
}

// RetryConfig controls retries of transient store failures at the API edge.
type RetryConfig struct {
	MaxAttempts     int           `env:"RETRY_MAX_ATTEMPTS" env-default:"3"`
	InitialInterval time.Duration `env:"RETRY_INITIAL_INTERVAL" env-default:"50ms"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	if c.Database.LockTimeout < 0 {
		return fmt.Errorf("database lock timeout cannot be negative")
	}

	if c.Auth.APIKey == "" {
		return fmt.Errorf("API key is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if err := c.Voucher.validate(); err != nil {
		return err
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	if c.Events.SQSEnabled && c.Events.SQSQueueURL == "" {
		return fmt.Errorf("SQS queue URL is required when SQS events are enabled")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1")
	}

	return nil
}

func (c *VoucherConfig) validate() error {
	if len([]rune(c.CodeAlphabet)) < 2 {
		return fmt.Errorf("voucher code alphabet must contain at least 2 characters")
	}
	if c.CodeLength < 1 {
		return fmt.Errorf("voucher code length must be at least 1")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("voucher code max attempts must be at least 1")
	}
	if c.RedeemRelation == "" {
		return fmt.Errorf("voucher redeem relation is required")
	}
	if c.Schema == "" || c.VoucherTable == "" || c.RedemptionTable == "" {
		return fmt.Errorf("voucher schema and table names are required")
	}
	return nil
}

// Origins returns the configured CORS origins.
func (c *ServerConfig) Origins() []string {
	return splitList(c.AllowedOrigins)
}

// ReservedFilePaths returns the configured reserved code files.
func (c *VoucherConfig) ReservedFilePaths() []string {
	return splitList(c.ReservedFiles)
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
