package permissions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kardexhq/kardex/pkg/audit"
	"github.com/kardexhq/kardex/pkg/catalog"
	"github.com/kardexhq/kardex/pkg/observability"
)

// reconcileLockKey is the advisory lock key shared by every reconciliation
// caller across all process instances. One global key: reconciliation is
// infrequent, and a coarse lock keeps concurrent reconcilers trivially
// serialized. Per-role keys would be the first change if contention ever
// mattered.
const reconcileLockKey int64 = 727150001

// Reconciler keeps role matrices converged to the catalog: it seeds rows for
// new codes, prunes rows for removed codes and re-normalizes, all inside one
// transaction per role, serialized by a cluster-wide advisory lock.
type Reconciler struct {
	db         *sql.DB
	store      *Store
	normalizer *Normalizer
	cat        *catalog.Catalog
	logger     *observability.Logger
	metrics    *observability.Metrics
	auditLog   audit.Logger
	onChange   []func()
}

// NewReconciler creates a reconciler. metrics may be nil (tests).
func NewReconciler(db *sql.DB, cat *catalog.Catalog, logger *observability.Logger, metrics *observability.Metrics) *Reconciler {
	store := NewStore(db)
	return &Reconciler{
		db:         db,
		store:      store,
		normalizer: NewNormalizer(store, cat),
		cat:        cat,
		logger:     logger,
		metrics:    metrics,
		auditLog:   audit.NoopLogger{},
	}
}

// Store exposes the matrix store for read-only consumers (handlers).
func (r *Reconciler) Store() *Store {
	return r.store
}

// SetAuditLogger installs the audit trail. Defaults to a no-op logger.
func (r *Reconciler) SetAuditLogger(l audit.Logger) {
	if l != nil {
		r.auditLog = l
	}
}

// OnMatrixChange registers a hook invoked after any committed matrix write.
// The gate registers its cache invalidation here.
func (r *Reconciler) OnMatrixChange(fn func()) {
	r.onChange = append(r.onChange, fn)
}

func (r *Reconciler) notifyChange() {
	for _, fn := range r.onChange {
		fn()
	}
}

// ReconcileRole brings one role's matrix in line with the current catalog.
// Safe to call concurrently from any number of processes.
func (r *Reconciler) ReconcileRole(ctx context.Context, roleID int64) error {
	if roleID <= 0 {
		return fmt.Errorf("permissions: invalid role id %d", roleID)
	}

	start := time.Now()
	seeded, pruned, patches, err := r.reconcileRole(ctx, roleID)

	if r.metrics != nil {
		r.metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		r.metrics.ReconcileRunsTotal.WithLabelValues(outcome).Inc()
		r.metrics.RowsSeededTotal.Add(float64(seeded))
		r.metrics.RowsPrunedTotal.Add(float64(pruned))
		r.metrics.PatchesAppliedTotal.Add(float64(patches))
	}

	if err != nil {
		r.logger.WithError(err).WithField("role_id", roleID).Error("role reconciliation failed")
		event := audit.NewEvent(audit.EventTypeReconcileFailed, roleID)
		event.RequestID = observability.GetRequestID(ctx)
		event.Message = err.Error()
		r.logAudit(ctx, event)
		return fmt.Errorf("failed to reconcile role %d: %w", roleID, err)
	}

	r.logger.WithFields(map[string]interface{}{
		"role_id": roleID,
		"seeded":  seeded,
		"pruned":  pruned,
		"patches": patches,
	}).Info("role reconciled")

	event := audit.NewEvent(audit.EventTypeRoleReconciled, roleID)
	event.RowsSeeded = seeded
	event.RowsPruned = pruned
	event.PatchesApplied = patches
	event.RequestID = observability.GetRequestID(ctx)
	if actor := observability.GetRoleID(ctx); actor > 0 {
		event.ActorRoleID = &actor
	}
	r.logAudit(ctx, event)

	if seeded+pruned+patches > 0 {
		r.notifyChange()
	}
	return nil
}

// reconcileRole does the locked, transactional work and reports row counts.
func (r *Reconciler) reconcileRole(ctx context.Context, roleID int64) (seeded, pruned, patches int, err error) {
	// The advisory lock is session-scoped, so it needs a dedicated
	// connection that lives for the whole critical section.
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, reconcileLockKey); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	defer func() {
		// Unlock must run even when ctx is already cancelled; a failed
		// unlock is still released when the connection closes.
		unlockCtx := context.WithoutCancel(ctx)
		if _, uerr := conn.ExecContext(unlockCtx, `SELECT pg_advisory_unlock($1)`, reconcileLockKey); uerr != nil {
			r.logger.WithError(uerr).Warn("failed to release advisory lock")
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	seeded, err = r.store.SeedMissing(ctx, tx, roleID, r.cat.Descriptors())
	if err != nil {
		tx.Rollback()
		return 0, 0, 0, err
	}

	pruned, err = r.store.PruneStale(ctx, tx, roleID, r.cat.CodeSet())
	if err != nil {
		tx.Rollback()
		return 0, 0, 0, err
	}

	patches, err = r.normalizer.NormalizeAllGroups(ctx, tx, roleID)
	if err != nil {
		tx.Rollback()
		return 0, 0, 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to commit reconciliation: %w", err)
	}
	return seeded, pruned, patches, nil
}

// ReconcileAll reconciles every role found in the matrix plus any ids the
// caller supplies (freshly created roles have no rows yet). A failure for
// one role does not abort the others; each role stays atomic on its own.
func (r *Reconciler) ReconcileAll(ctx context.Context, extraRoleIDs ...int64) error {
	ids, err := r.store.ListRoleIDs(ctx)
	if err != nil {
		return err
	}

	seen := make(map[int64]struct{}, len(ids)+len(extraRoleIDs))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	for _, id := range extraRoleIDs {
		if _, dup := seen[id]; !dup && id > 0 {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	var errs []error
	for _, id := range ids {
		if err := r.ReconcileRole(ctx, id); err != nil {
			// Logged with role context inside ReconcileRole.
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ToggleOperation flips one row's access and re-normalizes the code's group
// in the same transaction, so the engine's invariants hold at commit.
func (r *Reconciler) ToggleOperation(ctx context.Context, roleID int64, code string, access bool) error {
	if roleID <= 0 {
		return fmt.Errorf("permissions: invalid role id %d", roleID)
	}
	group, ok := r.cat.GroupOf(code)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCode, code)
	}

	patches, err := r.toggle(ctx, roleID, code, group, access)

	if r.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		r.metrics.TogglesTotal.WithLabelValues(outcome).Inc()
		r.metrics.PatchesAppliedTotal.Add(float64(patches))
	}

	if err != nil {
		return fmt.Errorf("failed to toggle %s for role %d: %w", code, roleID, err)
	}

	event := audit.NewEvent(audit.EventTypePermissionToggled, roleID)
	event.Code = code
	event.Access = boolPtr(access)
	event.PatchesApplied = patches
	event.RequestID = observability.GetRequestID(ctx)
	if actor := observability.GetRoleID(ctx); actor > 0 {
		event.ActorRoleID = &actor
	}
	r.logAudit(ctx, event)

	r.notifyChange()
	return nil
}

func (r *Reconciler) toggle(ctx context.Context, roleID int64, code, group string, access bool) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := r.store.SetAccess(ctx, tx, roleID, code, access); err != nil {
		tx.Rollback()
		return 0, err
	}

	patches, err := r.normalizer.NormalizeGroup(ctx, tx, roleID, group)
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit toggle: %w", err)
	}
	return patches, nil
}

// NormalizeRole re-runs the consistency rules for every group of one role in
// a single transaction, without touching row lifecycle. For callers that
// mutated rows out of band and need the matrix converged.
func (r *Reconciler) NormalizeRole(ctx context.Context, roleID int64) error {
	if roleID <= 0 {
		return fmt.Errorf("permissions: invalid role id %d", roleID)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	patches, err := r.normalizer.NormalizeAllGroups(ctx, tx, roleID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to normalize role %d: %w", roleID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit normalization: %w", err)
	}

	if r.metrics != nil {
		r.metrics.PatchesAppliedTotal.Add(float64(patches))
	}
	if patches > 0 {
		r.notifyChange()
	}
	return nil
}

func (r *Reconciler) logAudit(ctx context.Context, event *audit.Event) {
	if err := r.auditLog.Log(ctx, event); err != nil {
		r.logger.WithError(err).Warn("failed to write audit event")
	}
}
