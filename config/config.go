package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreBackendRedis    = "redis"
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	App      AppConfig
	Queue    QueueConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	API      APIConfig
	Chains   ChainConfig
}

// AppConfig holds application configuration
type AppConfig struct {
	Name        string
	Environment string
	Port        string
	Debug       bool
}

// QueueConfig holds transaction queue and monitor configuration
type QueueConfig struct {
	MaxRetries          int
	RetryDelay          time.Duration
	MaxRetryDelay       time.Duration
	RetryBackoff        float64
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
	AttemptTimeout      time.Duration
	MaxQueueSize        int
	EnablePersistence   bool
	Debug               bool
}

// StoreConfig holds durable store configuration
type StoreConfig struct {
	Backend      string
	Key          string
	WriteTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	MaxIdle  int
	MaxOpen  int
	MaxLife  time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
}

// AuthConfig holds operator token configuration
type AuthConfig struct {
	AccessSecret   string
	Issuer         string
	Audience       string
	AccessTokenTTL time.Duration
}

// APIConfig holds API configuration
type APIConfig struct {
	TimeoutSeconds int
	MaxRequestSize int64
}

// ChainConfig maps chain IDs to JSON-RPC endpoints
type ChainConfig struct {
	RPCURLs     map[uint64]string
	DialTimeout time.Duration
}

// DefaultQueueConfig returns the queue defaults
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxRetries:          3,
		RetryDelay:          5 * time.Second,
		MaxRetryDelay:       30 * time.Second,
		RetryBackoff:        1.0,
		ConfirmationTimeout: 5 * time.Minute,
		PollInterval:        5 * time.Second,
		AttemptTimeout:      10 * time.Second,
		MaxQueueSize:        100,
		EnablePersistence:   true,
		Debug:               false,
	}
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	defaults := DefaultQueueConfig()

	chainURLs, err := parseChainURLs(getEnv("CHAIN_RPC_URLS", ""))
	if err != nil {
		return nil, err
	}

	config := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "txqueue"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Debug:       getEnvBool("APP_DEBUG", false),
		},
		Queue: QueueConfig{
			MaxRetries:          getEnvInt("QUEUE_MAX_RETRIES", defaults.MaxRetries),
			RetryDelay:          getEnvDuration("QUEUE_RETRY_DELAY", defaults.RetryDelay),
			MaxRetryDelay:       getEnvDuration("QUEUE_MAX_RETRY_DELAY", defaults.MaxRetryDelay),
			RetryBackoff:        getEnvFloat("QUEUE_RETRY_BACKOFF", defaults.RetryBackoff),
			ConfirmationTimeout: getEnvDuration("QUEUE_CONFIRMATION_TIMEOUT", defaults.ConfirmationTimeout),
			PollInterval:        getEnvDuration("QUEUE_POLL_INTERVAL", defaults.PollInterval),
			AttemptTimeout:      getEnvDuration("QUEUE_ATTEMPT_TIMEOUT", defaults.AttemptTimeout),
			MaxQueueSize:        getEnvInt("QUEUE_MAX_SIZE", defaults.MaxQueueSize),
			EnablePersistence:   getEnvBool("QUEUE_ENABLE_PERSISTENCE", defaults.EnablePersistence),
			Debug:               getEnvBool("QUEUE_DEBUG", defaults.Debug),
		},
		Store: StoreConfig{
			Backend:      strings.ToLower(getEnv("STORE_BACKEND", StoreBackendRedis)),
			Key:          getEnv("QUEUE_STORAGE_KEY", "txqueue:transactions"),
			WriteTimeout: getEnvDuration("STORE_WRITE_TIMEOUT", 2*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "txqueue_db"),
			User:     getEnv("DB_USER", "txqueue_user"),
			Password: getEnv("DB_PASSWORD", "txqueue_password"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxIdle:  getEnvInt("DB_MAX_IDLE", 2),
			MaxOpen:  getEnvInt("DB_MAX_OPEN", 5),
			MaxLife:  getEnvDuration("DB_MAX_LIFE", time.Hour),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Auth: AuthConfig{
			AccessSecret:   getEnv("AUTH_ACCESS_SECRET", ""),
			Issuer:         getEnv("AUTH_ISSUER", "txqueue"),
			Audience:       getEnv("AUTH_AUDIENCE", "txqueue-operators"),
			AccessTokenTTL: getEnvDuration("AUTH_ACCESS_TTL", 24*time.Hour),
		},
		API: APIConfig{
			TimeoutSeconds: getEnvInt("API_TIMEOUT", 30),
			MaxRequestSize: getEnvInt64("API_MAX_REQUEST_SIZE", 1048576), // 1MB
		},
		Chains: ChainConfig{
			RPCURLs:     chainURLs,
			DialTimeout: getEnvDuration("CHAIN_DIAL_TIMEOUT", 10*time.Second),
		},
	}

	return config, nil
}

// GetDSN returns database connection string
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// GetRedisAddr returns Redis connection address
func (r *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// IsDevelopment returns true if environment is development
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if environment is production
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseChainURLs parses "1=https://a,137=https://b"
func parseChainURLs(value string) (map[uint64]string, error) {
	result := make(map[uint64]string)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		chain, url, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid CHAIN_RPC_URLS entry %q", part)
		}
		chainID, err := strconv.ParseUint(strings.TrimSpace(chain), 10, 64)
		if err != nil || chainID == 0 {
			return nil, fmt.Errorf("invalid chain id in CHAIN_RPC_URLS entry %q", part)
		}
		result[chainID] = strings.TrimSpace(url)
	}
	return result, nil
}

// Validate validates configuration
func (c *Config) Validate() error {
	if err := c.Queue.Validate(); err != nil {
		return err
	}

	switch c.Store.Backend {
	case StoreBackendRedis, StoreBackendPostgres, StoreBackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Key == "" {
		return fmt.Errorf("store key is required")
	}
	if c.Store.Backend == StoreBackendPostgres {
		if c.Database.Host == "" || c.Database.Name == "" || c.Database.User == "" {
			return fmt.Errorf("database host, name and user are required for postgres store")
		}
	}
	if c.Auth.AccessSecret == "" {
		return fmt.Errorf("AUTH_ACCESS_SECRET must be set")
	}

	return nil
}

// Validate validates queue configuration
func (q *QueueConfig) Validate() error {
	if q.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if q.MaxQueueSize <= 0 {
		return fmt.Errorf("max queue size must be positive")
	}
	for name, d := range map[string]time.Duration{
		"retry delay":          q.RetryDelay,
		"confirmation timeout": q.ConfirmationTimeout,
		"poll interval":        q.PollInterval,
		"attempt timeout":      q.AttemptTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if q.RetryBackoff < 1 {
		return fmt.Errorf("retry backoff must be at least 1")
	}
	return nil
}

// Print prints configuration (excluding sensitive data)
func (c *Config) Print() {
	fmt.Printf("=== Configuration ===\n")
	fmt.Printf("App Name: %s\n", c.App.Name)
	fmt.Printf("Environment: %s\n", c.App.Environment)
	fmt.Printf("Port: %s\n", c.App.Port)
	fmt.Printf("Store: %s (%s)\n", c.Store.Backend, c.Store.Key)
	fmt.Printf("Queue: max_size=%d max_retries=%d timeout=%v\n",
		c.Queue.MaxQueueSize, c.Queue.MaxRetries, c.Queue.ConfirmationTimeout)
	fmt.Printf("Chains: %d configured\n", len(c.Chains.RPCURLs))
	fmt.Printf("====================\n")
}
