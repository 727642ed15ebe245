package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/clinicaccess/pkg/observability"
)

// envPrefix is prepended to every configuration variable
const envPrefix = "CLINIC_ACCESS_"

// Persistence backends
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Observability configuration
	Observability ObservabilityConfig

	// Snapshot persistence configuration
	Persistence PersistenceConfig

	// Seed and audit settings
	Seed  SeedConfig
	Audit AuditConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// Health/metrics server (separate port for k8s probes)
	MetricsPort string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// PersistenceConfig selects where access-control snapshots are kept
type PersistenceConfig struct {
	Backend string

	PostgresURL string

	RedisURL string
	RedisDB  int
	RedisKey string

	// SnapshotSchedule is a standard five-field cron expression. Empty disables periodic snapshots.
	SnapshotSchedule string
}

// SeedConfig points at an optional YAML seed file
type SeedConfig struct {
	Path string
}

// AuditConfig controls the audit trail sink
type AuditConfig struct {
	Enabled bool
	// Path of the audit log file. Empty writes to stdout.
	Path string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Observability: loadObservabilityConfig(),
		Persistence:   loadPersistenceConfig(),
		Seed:          SeedConfig{Path: getEnv("SEED_PATH", "")},
		Audit: AuditConfig{
			Enabled: getEnvBool("AUDIT_ENABLED", true),
			Path:    getEnv("AUDIT_PATH", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("HOST", "0.0.0.0"),
		Port:            getEnv("PORT", "8080"),
		ReadTimeout:     getEnvDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("MAX_BODY_BYTES", 1<<20),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("OTEL_SERVICE_NAME", "clinic-access"),
		OTelServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("OTEL_SAMPLE_RATIO", 1.0),
	}
}

// loadPersistenceConfig loads snapshot persistence configuration from environment
func loadPersistenceConfig() PersistenceConfig {
	return PersistenceConfig{
		Backend:          strings.ToLower(getEnv("PERSISTENCE_BACKEND", BackendMemory)),
		PostgresURL:      getEnv("POSTGRES_URL", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RedisKey:         getEnv("REDIS_KEY", "clinic-access:snapshot"),
		SnapshotSchedule: getEnv("SNAPSHOT_SCHEDULE", "*/5 * * * *"),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.MetricsPort == "" {
		return fmt.Errorf("metrics port is required")
	}
	if c.Server.Port == c.Server.MetricsPort {
		return fmt.Errorf("server port and metrics port must be different")
	}

	// Validate persistence config based on backend
	switch c.Persistence.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Persistence.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres persistence")
		}
	case BackendRedis:
		if c.Persistence.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis persistence")
		}
		if c.Persistence.RedisKey == "" {
			return fmt.Errorf("redis key is required for redis persistence")
		}
	default:
		return fmt.Errorf("invalid persistence backend: %s (must be memory, postgres, or redis)", c.Persistence.Backend)
	}

	if c.Persistence.SnapshotSchedule != "" {
		if _, err := cron.ParseStandard(c.Persistence.SnapshotSchedule); err != nil {
			return fmt.Errorf("invalid snapshot schedule %q: %w", c.Persistence.SnapshotSchedule, err)
		}
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}
	if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1, got %v", r)
	}

	return nil
}

// getEnv returns a prefixed environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := getEnv(key, ""); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := getEnv(key, ""); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := getEnv(key, ""); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := getEnv(key, ""); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := getEnv(key, ""); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
