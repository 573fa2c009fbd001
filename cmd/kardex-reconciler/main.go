package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/kardexhq/kardex/pkg/audit"
	"github.com/kardexhq/kardex/pkg/catalog"
	"github.com/kardexhq/kardex/pkg/config"
	"github.com/kardexhq/kardex/pkg/observability"
	"github.com/kardexhq/kardex/pkg/permissions"
	"github.com/kardexhq/kardex/pkg/storage/postgres"
)

var (
	runOnce = flag.Bool("run-once", false, "Run one reconcile pass and exit")
	roleID  = flag.Int64("role", 0, "Reconcile a single role id. Only used with --run-once")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("kardex-reconciler exited with error")
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

	if err := permissions.RunMigrations(ctx, db); err != nil {
		return err
	}

	cat, err := catalog.Load()
	if err != nil {
		return err
	}

	reconciler := permissions.NewReconciler(db, cat, logger, nil)
	if cfg.Engine.AuditEnabled {
		auditLogger, err := audit.NewDBLogger(db)
		if err != nil {
			return err
		}
		defer auditLogger.Close()
		reconciler.SetAuditLogger(auditLogger)
	}

	if *runOnce {
		if *roleID > 0 {
			logger.WithField("role_id", *roleID).Info("Reconciling single role")
			return reconciler.ReconcileRole(ctx, *roleID)
		}
		logger.Info("Reconciling all roles")
		return reconciler.ReconcileAll(ctx)
	}

	c := cron.New()
	_, err = c.AddFunc(cfg.Engine.ReconcileSchedule, func() {
		defer observability.RecoverPanic(logger, "scheduled reconcile")

		logger.Info("Starting scheduled reconcile")
		if err := reconciler.ReconcileAll(ctx); err != nil {
			logger.WithError(err).Warn("Scheduled reconcile finished with errors")
		} else {
			logger.Info("Scheduled reconcile complete")
		}
	})
	if err != nil {
		return err
	}

	c.Start()
	logger.WithField("schedule", cfg.Engine.ReconcileSchedule).Info("kardex-reconciler started")

	if cfg.Engine.ReconcileOnStart {
		logger.Info("Running startup reconcile")
		if err := reconciler.ReconcileAll(ctx); err != nil {
			logger.WithError(err).Warn("Startup reconcile finished with errors")
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")
	stopCtx := c.Stop()
	<-stopCtx.Done()

	return nil
}
