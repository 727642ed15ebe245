// Package config loads and validates configuration from CLINIC_ACCESS_* environment variables.
//
// # Configuration Structure
//
// Server settings:
//
//	CLINIC_ACCESS_HOST="0.0.0.0"
//	CLINIC_ACCESS_PORT="8080"
//	CLINIC_ACCESS_METRICS_PORT="9090"
//	CLINIC_ACCESS_READ_TIMEOUT="15s"
//	CLINIC_ACCESS_SHUTDOWN_TIMEOUT="30s"
//
// Persistence settings:
//
//	CLINIC_ACCESS_PERSISTENCE_BACKEND="postgres"  # memory, postgres, redis
//	CLINIC_ACCESS_POSTGRES_URL="postgres://localhost/clinic?sslmode=disable"
//	CLINIC_ACCESS_REDIS_URL="redis://localhost:6379"
//	CLINIC_ACCESS_REDIS_KEY="clinic-access:snapshot"
//	CLINIC_ACCESS_SNAPSHOT_SCHEDULE="*/5 * * * *"
//
// Seed and audit settings:
//
//	CLINIC_ACCESS_SEED_PATH="/etc/clinic-access/seed.yaml"
//	CLINIC_ACCESS_AUDIT_ENABLED="true"
//	CLINIC_ACCESS_AUDIT_PATH="/var/log/clinic-access/audit.log"
//
// Observability settings:
//
//	CLINIC_ACCESS_LOG_LEVEL="info"  # debug, info, warn, error
//	CLINIC_ACCESS_METRICS_ENABLED="true"
//	CLINIC_ACCESS_OTEL_ENABLED="true"
//	CLINIC_ACCESS_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
