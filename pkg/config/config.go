package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port        string
	Env         string   // development, staging, production
	CORSOrigins []string // allowed browser origins of the read API

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External data source
	XM XMConfig

	// Pipeline
	Ingest      IngestConfig
	Maintenance MaintenanceConfig
	Schedules   ScheduleConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// XMConfig holds the XM market-data API configuration
type XMConfig struct {
	BaseURL   string
	Enabled   bool
	Timeout   time.Duration // per fetch call
	RateLimit float64       // requests per second
	RateBurst int

	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	ListingTTL time.Duration // resource listing cache
}

// IngestConfig holds ingestion orchestrator settings
type IngestConfig struct {
	CatalogPath  string // YAML metric catalog, empty = built-in
	LookbackDays int
	OverlapDays  int
	Workers      int
	BatchDays    int
	BatchPause   time.Duration
}

// MaintenanceConfig holds auto-correction and log cleanup settings
type MaintenanceConfig struct {
	GeneCeiling       float64
	LogDir            string
	LogRetentionDays  int
	PredictionMAPEMax float64
}

// ScheduleConfig holds cron expressions (with seconds field)
type ScheduleConfig struct {
	Ingest      string
	Maintenance string
	Catalog     string
	Workers     int
}

// Option adjusts the loaded configuration before validation
type Option func(*Config)

// WithDatabaseURL points the store at url instead of DATABASE_URL
func WithDatabaseURL(url string) Option {
	return func(c *Config) {
		if url != "" {
			c.Database.URL = url
		}
	}
}

// WithEnv overrides ENV
func WithEnv(env string) Option {
	return func(c *Config) {
		if env != "" {
			c.Env = env
		}
	}
}

// WithLogLevel overrides LOG_LEVEL
func WithLogLevel(level string) Option {
	return func(c *Config) {
		if level != "" {
			c.LogLevel = level
		}
	}
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load(opts ...Option) (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		CORSOrigins: getEnvAsList("CORS_ORIGINS", "*"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "energia"),
			User:            getEnv("DB_USER", "energia"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		XM: XMConfig{
			BaseURL:      getEnv("XM_BASE_URL", "https://servapibi.xm.com.co"),
			Enabled:      getEnvAsBool("XM_ENABLED", true),
			Timeout:      getEnvAsDuration("XM_TIMEOUT", "30s"),
			RateLimit:    getEnvAsFloat("XM_RATE_LIMIT", 2),
			RateBurst:    getEnvAsInt("XM_RATE_BURST", 4),
			MaxRetries:   getEnvAsInt("XM_MAX_RETRIES", 3),
			InitialDelay: getEnvAsDuration("XM_RETRY_INITIAL_DELAY", "2s"),
			MaxDelay:     getEnvAsDuration("XM_RETRY_MAX_DELAY", "1m"),
			ListingTTL:   getEnvAsDuration("XM_LISTING_TTL", "24h"),
		},

		Ingest: IngestConfig{
			CatalogPath:  getEnv("METRICS_CATALOG", ""),
			LookbackDays: getEnvAsInt("INGEST_LOOKBACK_DAYS", 7),
			OverlapDays:  getEnvAsInt("INGEST_OVERLAP_DAYS", 3),
			Workers:      getEnvAsInt("INGEST_WORKERS", 4),
			BatchDays:    getEnvAsInt("INGEST_BATCH_DAYS", 30),
			BatchPause:   getEnvAsDuration("INGEST_BATCH_PAUSE", "500ms"),
		},

		Maintenance: MaintenanceConfig{
			GeneCeiling:       getEnvAsFloat("AUTOCORRECT_GENE_CEILING", 10000),
			LogDir:            getEnv("LOG_DIR", "logs"),
			LogRetentionDays:  getEnvAsInt("LOG_RETENTION_DAYS", 30),
			PredictionMAPEMax: getEnvAsFloat("PREDICTION_MAPE_MAX", 0.15),
		},

		Schedules: ScheduleConfig{
			Ingest:      getEnv("INGEST_SCHEDULE", "0 0 */6 * * *"),
			Maintenance: getEnv("MAINTENANCE_SCHEDULE", "0 30 3 * * *"),
			Catalog:     getEnv("CATALOG_SCHEDULE", "0 0 2 * * 0"),
			Workers:     getEnvAsInt("SCHEDULER_WORKERS", 2),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.XM.Timeout <= 0 {
		return fmt.Errorf("XM_TIMEOUT must be positive")
	}

	if c.Ingest.LookbackDays <= 0 {
		return fmt.Errorf("INGEST_LOOKBACK_DAYS must be positive")
	}
	if c.Ingest.OverlapDays < 0 {
		return fmt.Errorf("INGEST_OVERLAP_DAYS must not be negative")
	}
	if c.Ingest.Workers <= 0 || c.Schedules.Workers <= 0 {
		return fmt.Errorf("worker counts must be positive")
	}
	if c.Ingest.BatchDays <= 0 {
		return fmt.Errorf("INGEST_BATCH_DAYS must be positive")
	}

	if c.Maintenance.GeneCeiling <= 0 {
		return fmt.Errorf("AUTOCORRECT_GENE_CEILING must be positive")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsList(key, defaultValue string) []string {
	var out []string
	for _, v := range strings.Split(getEnv(key, defaultValue), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
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

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
