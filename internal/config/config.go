// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

const (
	LogsPath      = "/v1/logs"
	TracesPath    = "/v1/traces"
	ExportTimeout = 30 * time.Second
	MaxQueueSize  = 2048
)

// Config holds the settings shared by the barternexus binaries. Each binary
// reads the keys it needs.
type Config struct {
	ServiceName  string
	Port         string
	// InternalPort serves routes for in-network callers. It must not be
	// exposed through the gateway.
	InternalPort string

	StoreDriver string
	DatabaseURL string

	KafkaBroker           string
	NotificationTopic     string
	NotificationQueueSize int

	OtelEndpoint   string
	OtelAuthHeader string

	JWTSecret string
	TokenTTL  time.Duration

	MembersServiceURL  string
	ExchangeServiceURL string
	MembersTimeout     time.Duration

	PickupLocation *time.Location

	// RateLimit is requests per second across the API; RateBurst its bucket.
	RateLimit float64
	RateBurst int
}

// Load reads an optional .env file (ENV_FILE, default ".env") and then the
// environment. Variables already set in the environment win over the file.
func Load(serviceName string) (*Config, error) {
	if err := godotenv.Load(getEnv("ENV_FILE", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := &Config{
		ServiceName:        serviceName,
		Port:               getEnv("PORT", "8080"),
		InternalPort:       getEnv("INTERNAL_PORT", "9081"),
		StoreDriver:        getEnv("STORE_DRIVER", StoreMemory),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		KafkaBroker:        os.Getenv("KAFKA_BROKER"),
		NotificationTopic:  getEnv("NOTIFICATION_TOPIC", "exchange.notifications"),
		OtelEndpoint:       os.Getenv("OTEL_ENDPOINT"),
		OtelAuthHeader:     os.Getenv("OTEL_AUTH_HEADER"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		MembersServiceURL:  getEnv("MEMBERS_SERVICE_URL", "http://localhost:8083"),
		ExchangeServiceURL: getEnv("EXCHANGE_SERVICE_URL", "http://localhost:8081"),
	}

	var err error
	if cfg.NotificationQueueSize, err = getInt("NOTIFICATION_QUEUE_SIZE", 1024); err != nil {
		return nil, err
	}
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.MembersTimeout, err = getDuration("MEMBERS_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = getInt("RATE_BURST", 50); err != nil {
		return nil, err
	}
	rateLimit, err := getInt("RATE_LIMIT", 100)
	if err != nil {
		return nil, err
	}
	cfg.RateLimit = float64(rateLimit)

	tz := getEnv("PICKUP_TIMEZONE", "UTC")
	if cfg.PickupLocation, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("PICKUP_TIMEZONE %q: %w", tz, err)
	}

	return cfg, nil
}

// RequireStore validates the storage settings.
func (c *Config) RequireStore() error {
	switch c.StoreDriver {
	case StoreMemory:
		return nil
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required when STORE_DRIVER=%s", StorePostgres)
		}
		return nil
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMemory, StorePostgres, c.StoreDriver)
	}
}

// RequireAuth validates the token settings.
func (c *Config) RequireAuth() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, value)
	}
	return d, nil
}
