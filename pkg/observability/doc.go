// Package observability provides structured logging, Prometheus metrics,
// health probes, and graceful shutdown for the kardex binaries.
//
// # Structured Logging
//
// Create a logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.Info("server started")
//
// Context-aware logging pulls the request id and role id off the request
// context:
//
//	observability.FromContext(ctx).WithError(err).Error("reconcile failed")
//
// # Prometheus Metrics
//
// Initialize metrics against a registry:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ReconcileRunsTotal.WithLabelValues("success").Inc()
//
// # Health Checks
//
// Configure the health checker:
//
//	checker := observability.NewHealthChecker(db)
//	checker.RegisterHealthEndpoints(healthMux)
//
// # Related Packages
//
//   - pkg/config: observability configuration
//   - pkg/middleware: request id and role identity middleware
package observability
