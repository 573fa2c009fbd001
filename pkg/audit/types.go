package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the category of audit event
type EventType string

const (
	EventTypePermissionToggled EventType = "permission.toggled"
	EventTypeRoleReconciled    EventType = "permission.role_reconciled"
	EventTypeReconcileFailed   EventType = "permission.reconcile_failed"
)

// Event is one audit record. Code and Access are set for toggles only;
// the row counters are set for reconcile runs.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	EventType EventType `json:"event_type"`

	// RoleID is the role whose matrix was mutated.
	RoleID int64 `json:"role_id"`

	// ActorRoleID is the authenticated role that performed the mutation,
	// nil for unattended runs (scheduled reconciliation, bootstrap).
	ActorRoleID *int64 `json:"actor_role_id,omitempty"`

	Code   string `json:"code,omitempty"`
	Access *bool  `json:"access,omitempty"`

	RowsSeeded     int `json:"rows_seeded,omitempty"`
	RowsPruned     int `json:"rows_pruned,omitempty"`
	PatchesApplied int `json:"patches_applied,omitempty"`

	RequestID string `json:"request_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// NewEvent creates an event with a fresh id and timestamp.
func NewEvent(eventType EventType, roleID int64) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		RoleID:    roleID,
	}
}
