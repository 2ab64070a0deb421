package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// environment variable names shared by the binaries
const (
	EnvUplinkKey = "ANVIL_UPLINK_KEY"
	EnvUplinkURL = "ANVIL_UPLINK_URL"
)

const DefaultUplinkURL = "wss://anvil.works/uplink"

type Config struct {
	// Uplink client
	UplinkKey      string        `env:"ANVIL_UPLINK_KEY"` // checked by the caller, not at load time
	UplinkURL      string        `env:"ANVIL_UPLINK_URL" default:"wss://anvil.works/uplink"`
	ConnectTimeout time.Duration `env:"UPLINK_CONNECT_TIMEOUT" default:"0"` // 0 = no timeout
	CallTimeout    time.Duration `env:"UPLINK_CALL_TIMEOUT" default:"0"`    // 0 = no timeout

	// Development bridge server
	ServerPort   int           `env:"UPLINK_SERVER_PORT" default:"8090"`
	ServerKey    string        `env:"UPLINK_SERVER_KEY"`
	TicketSecret string        `env:"UPLINK_TICKET_SECRET"`
	TicketTTL    time.Duration `env:"UPLINK_TICKET_TTL" default:"1h"`

	// Redis session store, empty = in-memory
	RedisURL      string `env:"REDIS_URL"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

// LoadConfig loads configuration from a .env file (if present) and the environment
func LoadConfig() (*Config, error) {
	// a missing .env is fine, the process environment still applies
	_ = godotenv.Load(".env")

	config := &Config{}

	if err := loadEnvString(&config.UplinkKey, EnvUplinkKey, ""); err != nil {
		return nil, err
	}
	config.UplinkKey = strings.TrimSpace(config.UplinkKey)
	if err := loadEnvString(&config.UplinkURL, EnvUplinkURL, DefaultUplinkURL); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.ConnectTimeout, "UPLINK_CONNECT_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.CallTimeout, "UPLINK_CALL_TIMEOUT", 0); err != nil {
		return nil, err
	}

	// Server
	if err := loadEnvInt(&config.ServerPort, "UPLINK_SERVER_PORT", 8090); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.ServerKey, "UPLINK_SERVER_KEY", ""); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.TicketSecret, "UPLINK_TICKET_SECRET", ""); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.TicketTTL, "UPLINK_TICKET_TTL", time.Hour); err != nil {
		return nil, err
	}

	// Redis
	if err := loadEnvString(&config.RedisURL, "REDIS_URL", ""); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.RedisPassword, "REDIS_PASSWORD", ""); err != nil {
		return nil, err
	}

	// Logging
	if err := loadEnvString(&config.LogLevel, "LOG_LEVEL", "info"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogFormat, "LOG_FORMAT", "text"); err != nil {
		return nil, err
	}
	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	if !strings.HasPrefix(c.UplinkURL, "ws://") && !strings.HasPrefix(c.UplinkURL, "wss://") {
		errors = append(errors, "ANVIL_UPLINK_URL must start with ws:// or wss://")
	}
	if c.ConnectTimeout < 0 {
		errors = append(errors, "UPLINK_CONNECT_TIMEOUT must not be negative")
	}
	if c.CallTimeout < 0 {
		errors = append(errors, "UPLINK_CALL_TIMEOUT must not be negative")
	}
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		errors = append(errors, "UPLINK_SERVER_PORT must be between 1 and 65535")
	}
	if c.TicketTTL <= 0 {
		errors = append(errors, "UPLINK_TICKET_TTL must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// ValidateServer adds the checks only the bridge server needs
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	var errors []string
	if c.ServerKey == "" {
		errors = append(errors, "UPLINK_SERVER_KEY is required")
	}
	// HS256 secret, same floor the API server used for JWT_SECRET
	if len(c.TicketSecret) < 32 {
		errors = append(errors, "UPLINK_TICKET_SECRET should be at least 32 characters long")
	}
	if c.RedisURL != "" {
		if _, err := c.RedisOptions(); err != nil {
			errors = append(errors, err.Error())
		}
	}
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}
	return nil
}

// HasUplinkKey reports whether a credential was supplied
func (c *Config) HasUplinkKey() bool {
	return c.UplinkKey != ""
}

// ServerAddr returns the listen address of the bridge server
func (c *Config) ServerAddr() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

// RedisOptions parses REDIS_URL, a bare host:port is taken as redis://host:port.
// REDIS_PASSWORD applies when the URL carries no password of its own.
func (c *Config) RedisOptions() (*redis.Options, error) {
	raw := c.RedisURL
	if !strings.Contains(raw, "://") {
		raw = "redis://" + raw
	}
	opts, err := redis.ParseURL(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	if opts.Password == "" {
		opts.Password = c.RedisPassword
	}
	return opts, nil
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
