package model

import "time"

// AuditLog is an append-only record of a reservation or payment event.
type AuditLog struct {
	ID        uint64    // audit_logs.id
	UserID    uint64    // audit_logs.user_id (0 for system actions)
	Action    string    // audit_logs.action
	Details   string    // audit_logs.details
	CreatedAt time.Time // audit_logs.created_at
}
