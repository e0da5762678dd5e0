// Package config defines the explicit configuration for the analytics
// engine. All thresholds, budgets, and cache TTLs live here so behavior is
// reproducible without hidden process-wide state.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the full application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Safety    SafetyConfig    `yaml:"safety"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  int    `yaml:"read_timeout_seconds"`
	WriteTimeout int    `yaml:"write_timeout_seconds"`
}

// DatabaseConfig represents the transactional store the gateway reads from
type DatabaseConfig struct {
	// Driver is "postgres", "sqlite3", or "memory" (demo/test fixture store)
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// CacheConfig represents the result cache configuration
type CacheConfig struct {
	// Backend is "memory", "redis", or "none"
	Backend         string        `yaml:"backend"`
	RedisAddr       string        `yaml:"redis_addr"`
	RedisPassword   string        `yaml:"-"` // never serialized
	RedisDB         int           `yaml:"redis_db"`
	DefaultTTL      time.Duration `yaml:"default_ttl"`
	MaxItems        int           `yaml:"max_items"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// SafetyConfig represents query budget and monitoring configuration
type SafetyConfig struct {
	MaxRecords        int           `yaml:"max_records"`
	PaginateBatchSize int           `yaml:"paginate_batch_size"`
	SlowQueryWarning  time.Duration `yaml:"slow_query_warning"`
}

// AnalyticsConfig represents thresholds used by the analytics components
type AnalyticsConfig struct {
	// DefaultWindowDays is the trailing window applied when callers omit a range
	DefaultWindowDays int `yaml:"default_window_days"`
	// ForecastHistoryDays is the trailing series length behind revenue forecasts
	ForecastHistoryDays int `yaml:"forecast_history_days"`
	// ChurnRiskThreshold is the default probability cutoff for at-risk lists
	ChurnRiskThreshold float64 `yaml:"churn_risk_threshold"`
	// Currency is the tenant reporting currency MRR is normalized into
	Currency string `yaml:"currency"`
}

// UpstreamConfig represents the external HTTP collaborator configuration
type UpstreamConfig struct {
	RateServiceURL string        `yaml:"rate_service_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	MaxRedirects   int           `yaml:"max_redirects"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the documented default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         8085,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Database: DatabaseConfig{
			Driver: "memory",
			DSN:    "",
		},
		Cache: CacheConfig{
			Backend:         "memory",
			RedisAddr:       "localhost:6379",
			RedisDB:         0,
			DefaultTTL:      15 * time.Minute,
			MaxItems:        10000,
			CleanupInterval: 5 * time.Minute,
		},
		Safety: SafetyConfig{
			MaxRecords:        50000,
			PaginateBatchSize: 1000,
			SlowQueryWarning:  2 * time.Second,
		},
		Analytics: AnalyticsConfig{
			DefaultWindowDays:   30,
			ForecastHistoryDays: 90,
			ChurnRiskThreshold:  60,
			Currency:            "USD",
		},
		Upstream: UpstreamConfig{
			RateServiceURL: "",
			RequestTimeout: 10 * time.Second,
			MaxRetries:     3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
			MaxRedirects:   5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds configuration from defaults, an optional .env file, and
// environment variable overrides, in that order.
func Load() (*Config, error) {
	// .env is optional; only a malformed file is an error
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := DefaultConfig()
	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFile reads a YAML configuration file over the defaults, then applies
// environment overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be in (0, 65535], got %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite3", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver != "memory" && c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required for driver %q", c.Database.Driver)
	}
	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unsupported cache backend %q", c.Cache.Backend)
	}
	if c.Safety.MaxRecords <= 0 {
		return fmt.Errorf("safety max_records must be positive, got %d", c.Safety.MaxRecords)
	}
	if c.Safety.PaginateBatchSize <= 0 {
		return fmt.Errorf("safety paginate_batch_size must be positive, got %d", c.Safety.PaginateBatchSize)
	}
	if c.Analytics.DefaultWindowDays <= 0 {
		return fmt.Errorf("analytics default_window_days must be positive, got %d", c.Analytics.DefaultWindowDays)
	}
	if c.Analytics.ForecastHistoryDays <= 0 {
		return fmt.Errorf("analytics forecast_history_days must be positive, got %d", c.Analytics.ForecastHistoryDays)
	}
	return nil
}

// loadFromEnv applies environment variable overrides.
func loadFromEnv(cfg *Config) {
	loadServerEnv(cfg)
	loadDatabaseEnv(cfg)
	loadCacheEnv(cfg)
	loadSafetyEnv(cfg)
	loadAnalyticsEnv(cfg)
	loadUpstreamEnv(cfg)

	if level := os.Getenv("INSIGHTS_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

func loadServerEnv(cfg *Config) {
	if host := os.Getenv("INSIGHTS_HOST"); host != "" {
		cfg.Server.Host = host
	}
	setIntEnv("INSIGHTS_PORT", &cfg.Server.Port)
	setIntEnv("INSIGHTS_READ_TIMEOUT_SECONDS", &cfg.Server.ReadTimeout)
	setIntEnv("INSIGHTS_WRITE_TIMEOUT_SECONDS", &cfg.Server.WriteTimeout)
}

func loadDatabaseEnv(cfg *Config) {
	if driver := os.Getenv("INSIGHTS_DB_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}
	if dsn := os.Getenv("INSIGHTS_DB_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	} else if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Database.DSN = dsn
	}
}

func loadCacheEnv(cfg *Config) {
	if backend := os.Getenv("INSIGHTS_CACHE_BACKEND"); backend != "" {
		cfg.Cache.Backend = backend
	}
	if addr := os.Getenv("INSIGHTS_REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	} else if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}
	if password := os.Getenv("INSIGHTS_REDIS_PASSWORD"); password != "" {
		cfg.Cache.RedisPassword = password
	}
	setIntEnv("INSIGHTS_REDIS_DB", &cfg.Cache.RedisDB)
	setDurationEnv("INSIGHTS_CACHE_TTL", &cfg.Cache.DefaultTTL)
	setIntEnv("INSIGHTS_CACHE_MAX_ITEMS", &cfg.Cache.MaxItems)
}

func loadSafetyEnv(cfg *Config) {
	setIntEnv("INSIGHTS_MAX_RECORDS", &cfg.Safety.MaxRecords)
	setIntEnv("INSIGHTS_PAGINATE_BATCH_SIZE", &cfg.Safety.PaginateBatchSize)
	setDurationEnv("INSIGHTS_SLOW_QUERY_WARNING", &cfg.Safety.SlowQueryWarning)
}

func loadAnalyticsEnv(cfg *Config) {
	setIntEnv("INSIGHTS_DEFAULT_WINDOW_DAYS", &cfg.Analytics.DefaultWindowDays)
	setIntEnv("INSIGHTS_FORECAST_HISTORY_DAYS", &cfg.Analytics.ForecastHistoryDays)
	if threshold := os.Getenv("INSIGHTS_CHURN_RISK_THRESHOLD"); threshold != "" {
		if v, err := strconv.ParseFloat(threshold, 64); err == nil {
			cfg.Analytics.ChurnRiskThreshold = v
		}
	}
	if currency := os.Getenv("INSIGHTS_CURRENCY"); currency != "" {
		cfg.Analytics.Currency = currency
	}
}

func loadUpstreamEnv(cfg *Config) {
	if url := os.Getenv("INSIGHTS_RATE_SERVICE_URL"); url != "" {
		cfg.Upstream.RateServiceURL = url
	}
	setDurationEnv("INSIGHTS_UPSTREAM_TIMEOUT", &cfg.Upstream.RequestTimeout)
	setIntEnv("INSIGHTS_UPSTREAM_MAX_RETRIES", &cfg.Upstream.MaxRetries)
}

func setIntEnv(key string, target *int) {
	if val := os.Getenv(key); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			*target = v
		}
	}
}

func setDurationEnv(key string, target *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if v, err := time.ParseDuration(val); err == nil {
			*target = v
		}
	}
}
