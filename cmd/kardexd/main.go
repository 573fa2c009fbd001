package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/kardexhq/kardex/pkg/audit"
	"github.com/kardexhq/kardex/pkg/catalog"
	"github.com/kardexhq/kardex/pkg/config"
	"github.com/kardexhq/kardex/pkg/httputil"
	"github.com/kardexhq/kardex/pkg/middleware"
	"github.com/kardexhq/kardex/pkg/observability"
	"github.com/kardexhq/kardex/pkg/permissions"
	"github.com/kardexhq/kardex/pkg/storage/postgres"
)

const maxRequestBody = 1 << 20 // 1MB

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting kardexd")

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("kardexd exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx := context.Background()

	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("Connected to database")

	if err := permissions.RunMigrations(ctx, db); err != nil {
		return err
	}

	// The catalog is validated at startup so a bad descriptor set never
	// serves traffic.
	cat, err := catalog.Load()
	if err != nil {
		return err
	}
	logger.WithField("operations", len(cat.Descriptors())).Info("Operation catalog loaded")

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	gate := permissions.NewGate(db, cat, metrics, cfg.Engine.GateCacheTTL, cfg.Engine.GateCacheSize)
	reconciler := permissions.NewReconciler(db, cat, logger, metrics)
	reconciler.OnMatrixChange(gate.InvalidateCache)

	var auditLogger *audit.DBLogger
	if cfg.Engine.AuditEnabled {
		auditLogger, err = audit.NewDBLogger(db)
		if err != nil {
			return err
		}
		reconciler.SetAuditLogger(auditLogger)
	}

	if cfg.Engine.ReconcileOnStart {
		go func() {
			defer observability.RecoverPanic(logger, "startup reconcile")
			if err := reconciler.ReconcileAll(ctx); err != nil {
				logger.WithError(err).Warn("Startup reconcile finished with errors")
			} else {
				logger.Info("Startup reconcile complete")
			}
		}()
	}

	router := mux.NewRouter()
	handler := permissions.NewHandler(reconciler, gate, cat, logger)
	handler.RegisterRoutes(router)

	chain := []func(http.Handler) http.Handler{
		httputil.RecoveryMiddleware(logger),
		middleware.RequestID,
		middleware.RoleIdentity,
		httputil.MaxBytesMiddleware(maxRequestBody),
	}
	if metrics != nil {
		chain = append(chain, observability.HTTPMetricsMiddleware(metrics))
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      httputil.Chain(chain...)(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.NewHealthChecker(db).RegisterHealthEndpoints(healthMux)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	poolStop := make(chan struct{})
	if metrics != nil {
		go metrics.ObserveDBPool(db, 15*time.Second, poolStop)
	}

	var g errgroup.Group
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	shutdown := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		close(poolStop)
		return nil
	})
	if auditLogger != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return auditLogger.Close()
		})
	}

	if err := shutdown.WaitForShutdown(); err != nil {
		return err
	}
	return g.Wait()
}
