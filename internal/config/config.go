package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Logger        LoggerConfig
	Auth          AuthConfig
	Collaborators CollaboratorConfig
	Checkout      CheckoutConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Notification  NotificationConfig
	S3            S3Config
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	APIKey string
}

// CollaboratorConfig holds the addresses and call policy of the services
// checkout depends on.
type CollaboratorConfig struct {
	CartServiceURL         string
	ProductServiceURL      string
	NotificationServiceURL string
	RequestTimeout         time.Duration
	ReservationTimeout     time.Duration
	BreakerMaxFailures     int
	BreakerResetTimeout    time.Duration
}

// CheckoutConfig holds checkout orchestration settings.
type CheckoutConfig struct {
	LockTTL           time.Duration
	DispatchWorkers   int
	DispatchQueueSize int
	DispatchTimeout   time.Duration
}

// RedisConfig holds Redis configuration for the order cache and checkout locks.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// KafkaConfig holds Kafka configuration for confirmation events.
type KafkaConfig struct {
	Brokers           []string
	ConfirmationTopic string
}

// MaxCacheTTL caps how long a cached order or history may outlive a write.
const MaxCacheTTL = 15 * time.Minute

// Notification transports.
const (
	TransportHTTP  = "http"
	TransportKafka = "kafka"
)

// NotificationConfig selects how order confirmations are delivered.
type NotificationConfig struct {
	Transport string
}

// S3Config holds AWS S3 configuration for order receipts.
type S3Config struct {
	Enabled bool
	Bucket  string
	Region  string
	Prefix  string // Path prefix within bucket (e.g., "receipts/")
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8083),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "orders"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		Collaborators: CollaboratorConfig{
			CartServiceURL:         getEnv("CART_SERVICE_URL", "http://localhost:8082"),
			ProductServiceURL:      getEnv("PRODUCT_SERVICE_URL", "http://localhost:8081"),
			NotificationServiceURL: getEnv("NOTIFICATION_SERVICE_URL", "http://localhost:8085"),
			RequestTimeout:         getEnvAsDuration("COLLABORATOR_TIMEOUT", 5*time.Second),
			ReservationTimeout:     getEnvAsDuration("STOCK_RESERVATION_TIMEOUT", 10*time.Second),
			BreakerMaxFailures:     getEnvAsInt("BREAKER_MAX_FAILURES", 5),
			BreakerResetTimeout:    getEnvAsDuration("BREAKER_RESET_TIMEOUT", 30*time.Second),
		},
		Checkout: CheckoutConfig{
			LockTTL:           getEnvAsDuration("CHECKOUT_LOCK_TTL", 30*time.Second),
			DispatchWorkers:   getEnvAsInt("DISPATCH_WORKERS", 4),
			DispatchQueueSize: getEnvAsInt("DISPATCH_QUEUE_SIZE", 256),
			DispatchTimeout:   getEnvAsDuration("DISPATCH_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			CacheTTL: getEnvAsDuration("ORDER_CACHE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:           getEnvAsSlice("KAFKA_BROKERS", nil),
			ConfirmationTopic: getEnv("KAFKA_CONFIRMATION_TOPIC", "order-confirmations"),
		},
		Notification: NotificationConfig{
			Transport: getEnv("NOTIFICATION_TRANSPORT", TransportHTTP),
		},
		S3: S3Config{
			Enabled: getEnvAsBool("S3_ENABLED", false),
			Bucket:  getEnv("S3_BUCKET", ""),
			Region:  getEnv("S3_REGION", "us-east-1"),
			Prefix:  getEnv("S3_PREFIX", "receipts/"),
		},
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

	if c.Collaborators.CartServiceURL == "" {
		return fmt.Errorf("cart service URL is required")
	}

	if c.Collaborators.ProductServiceURL == "" {
		return fmt.Errorf("product service URL is required")
	}

	if c.Collaborators.RequestTimeout <= 0 || c.Collaborators.ReservationTimeout <= 0 {
		return fmt.Errorf("collaborator timeouts must be positive")
	}

	if c.Collaborators.BreakerMaxFailures < 1 {
		return fmt.Errorf("breaker max failures must be at least 1")
	}

	// The lock must outlive every blocking step it protects.
	if c.Checkout.LockTTL <= c.Collaborators.ReservationTimeout+2*c.Collaborators.RequestTimeout {
		return fmt.Errorf("checkout lock TTL must exceed the reservation timeout plus two request timeouts")
	}

	if c.Checkout.DispatchWorkers < 1 {
		return fmt.Errorf("dispatch workers must be at least 1")
	}

	if c.Checkout.DispatchQueueSize < 1 {
		return fmt.Errorf("dispatch queue size must be at least 1")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required when redis is enabled")
	}

	// A read that races an invalidation can re-cache a stale entry, so the
	// TTL is the staleness bound and must be finite.
	if c.Redis.Enabled && (c.Redis.CacheTTL <= 0 || c.Redis.CacheTTL > MaxCacheTTL) {
		return fmt.Errorf("order cache TTL must be positive and at most %s", MaxCacheTTL)
	}

	switch c.Notification.Transport {
	case TransportHTTP:
		if c.Collaborators.NotificationServiceURL == "" {
			return fmt.Errorf("notification service URL is required for http transport")
		}
	case TransportKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required for kafka transport")
		}
		if c.Kafka.ConfirmationTopic == "" {
			return fmt.Errorf("kafka confirmation topic is required for kafka transport")
		}
	default:
		return fmt.Errorf("invalid notification transport: %s (must be http or kafka)", c.Notification.Transport)
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	return nil
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

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a time.Duration
// (e.g. "750ms", "30s") or returns a default value.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsSlice retrieves a comma-separated environment variable or returns a default value.
func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
