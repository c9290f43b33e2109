package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Store backends understood by STORE_BACKEND.
const (
	BackendMongo  = "mongo"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Comma-separated proxy IPs/CIDRs whose X-Forwarded-For is believed. Empty trusts none.
	TrustedProxies []string `mapstructure:"TRUSTED_PROXIES"`

	// Storage configuration.
	StoreBackend string        `mapstructure:"STORE_BACKEND"`
	DatabaseURL  string        `mapstructure:"DATABASE_URL"`
	DatabaseName string        `mapstructure:"DATABASE_NAME"`
	SQLitePath   string        `mapstructure:"SQLITE_PATH"`
	DBTimeout    time.Duration `mapstructure:"DB_TIMEOUT"`

	// Worker pool serving device operations.
	WorkerPoolSize  int `mapstructure:"WORKER_POOL_SIZE"`
	WorkerQueueSize int `mapstructure:"WORKER_QUEUE_SIZE"`

	// Redis configuration.
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int           `mapstructure:"REDIS_CACHE_DB"`
	RedisEventsDB int           `mapstructure:"REDIS_EVENTS_DB"`
	CacheEnabled  bool          `mapstructure:"CACHE_ENABLED"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL"`

	// Lifecycle events (asynq).
	EventsEnabled          bool `mapstructure:"EVENTS_ENABLED"`
	EventWorkerConcurrency int  `mapstructure:"EVENT_WORKER_CONCURRENCY"`
}

var AppConfig Config

// LoadConfig populates AppConfig from config.yaml, the environment and defaults.
func LoadConfig() {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	AppConfig = cfg
}

// Load reads the configuration without touching AppConfig.
func Load() (Config, error) {
	v := viper.New()

	// Look for a config file named "config.yaml" in the current and "config" directory.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	// Automatically use environment variables where available.
	v.AutomaticEnv()

	// Set default values.
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("STORE_BACKEND", BackendMongo)
	v.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	v.SetDefault("DATABASE_NAME", "devices")
	v.SetDefault("SQLITE_PATH", "devices.db")
	v.SetDefault("DB_TIMEOUT", "5s")
	v.SetDefault("WORKER_POOL_SIZE", 10)
	v.SetDefault("WORKER_QUEUE_SIZE", 1024)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_CACHE_DB", 0)
	v.SetDefault("REDIS_EVENTS_DB", 1)
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("CACHE_TTL", "10m")
	v.SetDefault("EVENTS_ENABLED", false)
	v.SetDefault("EVENT_WORKER_CONCURRENCY", 2)

	if err := v.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMongo, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("WORKER_POOL_SIZE must be positive, got %d", c.WorkerPoolSize)
	}
	if c.WorkerQueueSize < 0 {
		return fmt.Errorf("WORKER_QUEUE_SIZE must not be negative, got %d", c.WorkerQueueSize)
	}
	if c.EventsEnabled && c.EventWorkerConcurrency <= 0 {
		return fmt.Errorf("EVENT_WORKER_CONCURRENCY must be positive, got %d", c.EventWorkerConcurrency)
	}
	return nil
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
