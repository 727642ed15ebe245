// Package observability provides structured logging, Prometheus metrics, OpenTelemetry
// tracing, health probes and graceful shutdown for the clinic access service.
//
// # Structured Logging
//
// Logger wraps logrus with a JSON formatter:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("group_id", id).Info("group saved")
//
// Packages that accept a logrus.FieldLogger get logger.Entry().
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordMutation("save_group", err)
//	metrics.SetEntityCounts(stats.Roles, stats.Groups, stats.Users)
//
// HTTPMetricsMiddleware labels requests by their mux route template.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.Register("consistency", true, verifyFn)
//	checker.Register("snapshot_store", false, pingFn)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "clinic-access",
//	}, logger)
//	defer providers.Shutdown(ctx)
package observability
