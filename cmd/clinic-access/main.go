package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/clinicaccess/pkg/api"
	"github.com/platinummonkey/clinicaccess/pkg/audit"
	"github.com/platinummonkey/clinicaccess/pkg/config"
	"github.com/platinummonkey/clinicaccess/pkg/observability"
	"github.com/platinummonkey/clinicaccess/pkg/persistence"
	"github.com/platinummonkey/clinicaccess/pkg/rbac"
	"github.com/platinummonkey/clinicaccess/pkg/seed"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", cfg.Observability.OTelServiceName)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.WithError(err).Error("clinic-access exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	auditLogger, err := openAudit(cfg.Audit)
	if err != nil {
		return err
	}
	ctx = audit.WithLogger(ctx, auditLogger)

	enforcer := rbac.NewEnforcer(rbac.WithLogger(logger.WithField("component", "enforcer").Entry()))

	store, err := persistence.Open(ctx, cfg.Persistence)
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}
	if err := initialState(ctx, enforcer, store, cfg.Seed, logger); err != nil {
		return err
	}
	if metrics != nil {
		stats := enforcer.Stats()
		metrics.SetEntityCounts(stats.Roles, stats.Groups, stats.Users)
	}

	var scheduler *persistence.Scheduler
	if store != nil {
		scheduler = persistence.NewScheduler(enforcer, store, logger, metrics)
		if cfg.Persistence.SnapshotSchedule != "" {
			if err := scheduler.Start(cfg.Persistence.SnapshotSchedule); err != nil {
				return err
			}
		}
	}

	apiServer := api.NewServer(enforcer, api.ServerOptions{
		Logger:       logger,
		Metrics:      metrics,
		Audit:        auditLogger,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})
	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      otelhttp.NewHandler(apiServer, "clinic-access"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	health := observability.NewHealthChecker(cfg.Observability.OTelServiceVersion)
	health.Register("consistency", true, func(context.Context) error {
		if violations := enforcer.Verify(); len(violations) > 0 {
			return fmt.Errorf("%d role ownership violations, first: %w", len(violations), violations[0])
		}
		return nil
	})
	if store != nil {
		health.Register("snapshot_store", false, store.Ping)
	}

	opsMux := http.NewServeMux()
	observability.RegisterHealthRoutes(opsMux, health)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(opsMux, registry)
	}
	opsServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           opsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, httpServer, opsServer)
	if scheduler != nil {
		shutdown.RegisterShutdownFunc("final snapshot", scheduler.Stop)
	}
	if store != nil {
		shutdown.RegisterShutdownFunc("snapshot store", func(context.Context) error { return store.Close() })
	}
	if providers != nil {
		shutdown.RegisterShutdownFunc("opentelemetry", providers.Shutdown)
	}
	shutdown.RegisterShutdownFunc("audit log", func(context.Context) error { return auditLogger.Close() })

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", httpServer.Addr).Info("Starting clinic access API server")
		return serve(httpServer)
	})
	g.Go(func() error {
		logger.WithField("addr", opsServer.Addr).Info("Starting health and metrics server")
		return serve(opsServer)
	})
	g.Go(func() error {
		return shutdown.WaitForShutdown(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("clinic-access stopped")
	return nil
}

// serve runs srv until it is shut down
func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server %s failed: %w", srv.Addr, err)
	}
	return nil
}

func openAudit(cfg config.AuditConfig) (audit.Logger, error) {
	if !cfg.Enabled {
		return audit.NoOp(), nil
	}
	if cfg.Path == "" {
		return audit.NewLogrusLogger(os.Stdout), nil
	}
	logger, err := audit.NewFileLogger(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return logger, nil
}

// initialState restores the last snapshot, or else applies the seed file,
// or else creates the built-in roles.
func initialState(ctx context.Context, enforcer *rbac.Enforcer, store persistence.Snapshotter, cfg config.SeedConfig, logger *observability.Logger) error {
	if store != nil {
		snap, err := store.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load snapshot: %w", err)
		}
		if snap != nil {
			err := enforcer.Restore(*snap)
			logAuditEvent(ctx, logger, audit.Mutation{
				EventType:    audit.EventTypeSnapshotRestore,
				ResourceType: audit.ResourceTypeSnapshot,
				Metadata:     map[string]interface{}{"backend": store.Backend(), "taken_at": snap.TakenAt},
				Err:          err,
			})
			if err != nil {
				return fmt.Errorf("failed to restore snapshot: %w", err)
			}
			logger.WithField("backend", store.Backend()).Info("Restored access state from snapshot")
			return nil
		}
	}

	var (
		res    seed.Result
		source = "builtin"
		err    error
	)
	if cfg.Path != "" {
		source = cfg.Path
		var doc *seed.Document
		doc, err = seed.LoadFile(cfg.Path)
		if err == nil {
			res, err = seed.Apply(enforcer, doc)
		}
	} else {
		res, err = seed.ApplyBuiltInRoles(enforcer)
	}

	logAuditEvent(ctx, logger, audit.Mutation{
		EventType: audit.EventTypeSeedApply,
		Metadata: map[string]interface{}{
			"source": source,
			"roles":  res.Roles,
			"users":  res.Users,
			"groups": res.Groups,
		},
		Err: err,
	})
	if err != nil {
		return fmt.Errorf("failed to seed access state from %s: %w", source, err)
	}
	logger.WithFields(map[string]interface{}{
		"source": source,
		"roles":  res.Roles,
		"users":  res.Users,
		"groups": res.Groups,
	}).Info("Seeded access state")
	return nil
}

func logAuditEvent(ctx context.Context, logger *observability.Logger, m audit.Mutation) {
	if err := audit.LogMutation(ctx, nil, m); err != nil {
		logger.WithError(err).Warn("failed to write audit event")
	}
}
