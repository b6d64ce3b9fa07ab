package shared

import "time"

// AuditLog is one row of the audit trail. Services emit it after a committed
// mutation; an empty Actor is filled from the request context by the writer.
type AuditLog struct {
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}
