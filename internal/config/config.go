package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Timestamp policies for the resources refresh
const (
	// TimestampPolicyOptimistic advances resources_last_updated before the fetch runs
	TimestampPolicyOptimistic = "optimistic"
	// TimestampPolicyOnSuccess claims the run and advances the timestamp only when it succeeds
	TimestampPolicyOnSuccess = "on_success"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Logging  LoggingConfig
	AWS      AWSConfig
	Sync     SyncConfig
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	RateLimitRPS    float64
	RateLimitBurst  int
	Environment     string
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// For SQLite
	Path string
}

// AuthConfig contains authentication configuration
type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
	// EncryptionKey seals account secret keys at rest
	EncryptionKey string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string
	Format     string // json or console
	OutputPath string
}

// AWSConfig contains provider-wide AWS settings
type AWSConfig struct {
	// DiscoveryRegion is the endpoint used to list regions for a new tenant
	DiscoveryRegion string
	// PricingRegion hosts the Price List API (us-east-1 or ap-south-1)
	PricingRegion string
}

// SyncConfig controls the resource and price synchronization
type SyncConfig struct {
	ResourcesInterval    time.Duration
	PricesInterval       time.Duration
	Workers              int
	QueueSize            int
	CallTimeout          time.Duration
	RetryMaxTries        int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	TimestampPolicy      string
	InProgressLease      time.Duration
	SchedulerSpec        string
	SchedulerEnabled     bool
	DeniedRegions        []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			RateLimitRPS:    getEnvAsFloat("RATE_LIMIT_RPS", 10),
			RateLimitBurst:  getEnvAsInt("RATE_LIMIT_BURST", 20),
			Environment:     getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "ec2inventory"),
			User:            getEnv("DB_USER", ""),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			Path:            getEnv("DB_PATH", "./ec2inventory.db"),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET", "supersecretkey"),
			AccessTokenExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			EncryptionKey:     getEnv("ACCOUNT_ENCRYPTION_KEY", ""),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
		AWS: AWSConfig{
			DiscoveryRegion: getEnv("AWS_DISCOVERY_REGION", "us-east-1"),
			PricingRegion:   getEnv("AWS_PRICING_REGION", "us-east-1"),
		},
		Sync: SyncConfig{
			ResourcesInterval:    getEnvAsDuration("SYNC_RESOURCES_INTERVAL", 60*time.Minute),
			PricesInterval:       getEnvAsDuration("SYNC_PRICES_INTERVAL", 7*24*time.Hour),
			Workers:              getEnvAsInt("SYNC_WORKERS", 4),
			QueueSize:            getEnvAsInt("SYNC_QUEUE_SIZE", 64),
			CallTimeout:          getEnvAsDuration("SYNC_CALL_TIMEOUT", 30*time.Second),
			RetryMaxTries:        getEnvAsInt("SYNC_RETRY_MAX_TRIES", 4),
			RetryInitialInterval: getEnvAsDuration("SYNC_RETRY_INITIAL_INTERVAL", 500*time.Millisecond),
			RetryMaxInterval:     getEnvAsDuration("SYNC_RETRY_MAX_INTERVAL", 10*time.Second),
			TimestampPolicy:      getEnv("SYNC_TIMESTAMP_POLICY", TimestampPolicyOnSuccess),
			InProgressLease:      getEnvAsDuration("SYNC_IN_PROGRESS_LEASE", 30*time.Minute),
			SchedulerSpec:        getEnv("SYNC_SCHEDULE", "@every 5m"),
			SchedulerEnabled:     getEnvAsBool("SYNC_SCHEDULER_ENABLED", true),
			DeniedRegions:        getEnvAsList("SYNC_DENIED_REGIONS", []string{"cn-north-1", "us-gov-west-1"}),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" || (c.Auth.JWTSecret == "supersecretkey" && c.Server.Environment == "production") {
		return fmt.Errorf("JWT_SECRET must be set and should not use default value in production")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	return c.Sync.Validate()
}

// Validate validates the sync configuration
func (s *SyncConfig) Validate() error {
	if s.ResourcesInterval <= 0 || s.PricesInterval <= 0 {
		return fmt.Errorf("sync intervals must be positive")
	}
	if s.Workers < 1 {
		return fmt.Errorf("invalid sync worker count: %d", s.Workers)
	}
	if s.CallTimeout <= 0 {
		return fmt.Errorf("sync call timeout must be positive")
	}
	if s.RetryMaxTries < 1 {
		return fmt.Errorf("invalid retry max tries: %d", s.RetryMaxTries)
	}
	switch s.TimestampPolicy {
	case TimestampPolicyOptimistic, TimestampPolicyOnSuccess:
	default:
		return fmt.Errorf("unknown sync timestamp policy: %s", s.TimestampPolicy)
	}
	return nil
}

// IsDenied reports whether a region is excluded from every sync operation
func (s *SyncConfig) IsDenied(region string) bool {
	for _, r := range s.DeniedRegions {
		if r == region {
			return true
		}
	}
	return false
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

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
