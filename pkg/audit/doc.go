// Package audit records permission-engine mutations: single-operation
// toggles and catalog reconciliation runs.
//
// Every write to a role's permission matrix leaves one event behind: who
// acted (the authenticated role, when known), which role and code were
// touched, and how many rows the engine seeded, pruned or patched. Gate
// reads are deliberately not audited; they happen on every request and
// belong in metrics, not the audit trail.
//
// The DBLogger persists events to the permission_audit table. The NoopLogger
// satisfies the interface for tests and for deployments that disable
// auditing.
package audit
