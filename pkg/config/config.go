package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kardexhq/kardex/pkg/observability"
	"github.com/kardexhq/kardex/pkg/storage/postgres"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database postgres.Config

	// Permission engine configuration
	Engine EngineConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// EngineConfig holds permission engine settings
type EngineConfig struct {
	// GateCacheTTL bounds how long a gate decision may be served from
	// memory. Zero disables the cache entirely.
	GateCacheTTL  time.Duration
	GateCacheSize int

	// ReconcileSchedule is the cron expression the reconciler binary runs
	// on. ReconcileOnStart additionally runs one pass at boot.
	ReconcileSchedule string
	ReconcileOnStart  bool

	// AuditEnabled persists matrix mutations to the audit table.
	AuditEnabled bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Engine:        loadEngineConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("KARDEX_HOST", "0.0.0.0"),
		Port:            getEnv("KARDEX_PORT", "8080"),
		ReadTimeout:     getEnvDuration("KARDEX_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("KARDEX_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("KARDEX_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("KARDEX_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("KARDEX_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() postgres.Config {
	cfg := postgres.DefaultConfig()
	cfg.URL = getEnv("KARDEX_POSTGRES_URL", "")

	if maxConns := getEnvInt("KARDEX_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxOpenConns = maxConns
	}
	if idleConns := getEnvInt("KARDEX_POSTGRES_IDLE_CONNS", 0); idleConns > 0 {
		cfg.MaxIdleConns = idleConns
	}
	if lifetime := getEnvDuration("KARDEX_POSTGRES_CONN_LIFETIME", 0); lifetime > 0 {
		cfg.ConnMaxLifetime = lifetime
	}
	if timeout := getEnvDuration("KARDEX_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.ConnectTimeout = timeout
	}

	return cfg
}

// loadEngineConfig loads permission engine configuration from environment
func loadEngineConfig() EngineConfig {
	return EngineConfig{
		GateCacheTTL:      getEnvDuration("KARDEX_GATE_CACHE_TTL", 0),
		GateCacheSize:     getEnvInt("KARDEX_GATE_CACHE_SIZE", 1024),
		ReconcileSchedule: getEnv("KARDEX_RECONCILE_SCHEDULE", "0 3 * * *"),
		ReconcileOnStart:  getEnvBool("KARDEX_RECONCILE_ON_START", true),
		AuditEnabled:      getEnvBool("KARDEX_AUDIT_ENABLED", true),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("KARDEX_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("KARDEX_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Engine.GateCacheTTL < 0 {
		return fmt.Errorf("gate cache TTL must not be negative")
	}
	if c.Engine.GateCacheTTL > 0 && c.Engine.GateCacheSize <= 0 {
		return fmt.Errorf("gate cache size must be positive when the cache is enabled")
	}
	if c.Engine.ReconcileSchedule == "" {
		return fmt.Errorf("reconcile schedule is required")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
