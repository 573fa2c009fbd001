// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	KARDEX_HOST="0.0.0.0"
//	KARDEX_PORT="8080"
//	KARDEX_HEALTH_PORT="9090"
//	KARDEX_READ_TIMEOUT="15s"
//	KARDEX_WRITE_TIMEOUT="15s"
//
// Database settings:
//
//	KARDEX_POSTGRES_URL="postgres://localhost/kardex"
//	KARDEX_POSTGRES_MAX_CONNS="25"
//	KARDEX_POSTGRES_IDLE_CONNS="5"
//	KARDEX_POSTGRES_TIMEOUT="10s"
//
// Permission engine settings:
//
//	KARDEX_GATE_CACHE_TTL="0s"        # zero disables decision caching
//	KARDEX_GATE_CACHE_SIZE="1024"
//	KARDEX_RECONCILE_SCHEDULE="0 3 * * *"
//	KARDEX_RECONCILE_ON_START="true"
//	KARDEX_AUDIT_ENABLED="true"
//
// Observability settings:
//
//	KARDEX_LOG_LEVEL="info"  # debug, info, warn, error
//	KARDEX_METRICS_ENABLED="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/storage/postgres: Uses database configuration
//   - pkg/observability: Uses observability configuration
package config
