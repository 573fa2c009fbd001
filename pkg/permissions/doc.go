// Package permissions implements the role-permission consistency engine for
// the kardex record-management service.
//
// # Overview
//
// Every role carries a matrix of permission rows, one per operation code in
// the catalog (pkg/catalog). Each row holds two booleans: access (is the
// operation granted) and disabled (is the row presentation-locked because a
// sibling rule implies its value). Groups couple their rows through three
// rules:
//
//   - The LIMITED and FULL list views of a group are complementary: granting
//     the limited view locks or unlocks the full view depending on its state,
//     and vice versa.
//   - The group's aggregate toggle ("grant everything in this group") is
//     derived: it reads true exactly when every other code in the group is
//     granted.
//   - All derived values are written with minimal patches: a row is only
//     touched when its final value differs from what was fetched, so
//     re-normalizing an already-consistent matrix writes nothing.
//
// # Components
//
//	Store        persistence for permission rows (seed, prune, fetch, patch)
//	Normalizer   the pure consistency rules, applied inside a transaction
//	Reconciler   catalog reconciliation under a cluster-wide advisory lock
//	Gate         read-only ANY/ALL authorization queries
//
// The Store owns row lifecycle: rows are created when the Reconciler seeds a
// role and deleted when it prunes codes that left the catalog. The Normalizer
// only flips access/disabled on existing rows.
//
// # Concurrency
//
// Reconciliation is serialized across all process instances by a Postgres
// advisory lock with a single fixed key, and each role's reconciliation runs
// in one transaction: either every patch for the role lands or none do.
// Ad-hoc single-operation toggles run in their own transaction so the
// normalization steps observe a consistent snapshot. The Gate issues
// read-only single queries and needs no locking.
//
// # Usage
//
//	cat, err := catalog.Load()
//	rec := permissions.NewReconciler(db, cat, logger, metrics)
//	if err := rec.ReconcileRole(ctx, roleID); err != nil { ... }
//
//	gate := permissions.NewGate(db, metrics, permissions.GateCacheConfig{})
//	allowed, missing, err := gate.RequireAll(ctx, roleID, []string{
//		catalog.OpEditPerson,
//	})
//
// # Related Packages
//
//   - pkg/catalog: the operation registry the matrix converges to
//   - pkg/audit: persisted trail of toggles and reconcile runs
//   - pkg/middleware: extracts the authenticated role id the Gate consumes
package permissions
