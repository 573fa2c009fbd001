package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// DBLogger implements audit logging to PostgreSQL
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-backed audit logger
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	logger := &DBLogger{db: db}

	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure permission_audit table: %w", err)
	}

	return logger, nil
}

// ensureTable creates the permission_audit table if it doesn't exist
func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS permission_audit (
		id UUID PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		role_id BIGINT NOT NULL,
		actor_role_id BIGINT,
		code VARCHAR(128),
		access BOOLEAN,
		rows_seeded INTEGER NOT NULL DEFAULT 0,
		rows_pruned INTEGER NOT NULL DEFAULT 0,
		patches_applied INTEGER NOT NULL DEFAULT 0,
		request_id VARCHAR(100),
		message TEXT,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_permission_audit_timestamp ON permission_audit(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_permission_audit_role_id ON permission_audit(role_id);
	CREATE INDEX IF NOT EXISTS idx_permission_audit_event_type ON permission_audit(event_type);
	`

	_, err := l.db.Exec(query)
	return err
}

// Log persists one audit event
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO permission_audit (
			id, timestamp, event_type, role_id, actor_role_id,
			code, access, rows_seeded, rows_pruned, patches_applied,
			request_id, message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	var code interface{}
	if event.Code != "" {
		code = event.Code
	}

	_, err := l.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		string(event.EventType),
		event.RoleID,
		event.ActorRoleID,
		code,
		event.Access,
		event.RowsSeeded,
		event.RowsPruned,
		event.PatchesApplied,
		event.RequestID,
		event.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// List returns the most recent events for a role, newest first.
func (l *DBLogger) List(ctx context.Context, roleID int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, timestamp, event_type, role_id, actor_role_id,
		       code, access, rows_seeded, rows_pruned, patches_applied,
		       request_id, message
		FROM permission_audit
		WHERE role_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`, roleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var eventType string
		var actor sql.NullInt64
		var code sql.NullString
		var access sql.NullBool
		var requestID, message sql.NullString

		err := rows.Scan(
			&e.ID,
			&e.Timestamp,
			&eventType,
			&e.RoleID,
			&actor,
			&code,
			&access,
			&e.RowsSeeded,
			&e.RowsPruned,
			&e.PatchesApplied,
			&requestID,
			&message,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}

		e.EventType = EventType(eventType)
		if actor.Valid {
			id := actor.Int64
			e.ActorRoleID = &id
		}
		if code.Valid {
			e.Code = code.String
		}
		if access.Valid {
			v := access.Bool
			e.Access = &v
		}
		if requestID.Valid {
			e.RequestID = requestID.String
		}
		if message.Valid {
			e.Message = message.String
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// Close closes the logger. The database connection is owned by the caller.
func (l *DBLogger) Close() error {
	return nil
}
