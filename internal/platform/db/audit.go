package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/capsula-erp/capsula/internal/shared"
)

// AuditWriter appends shared.AuditLog entries to audit_logs.
type AuditWriter struct {
	db Execer
}

// NewAuditWriter returns a writer on top of the pool.
func NewAuditWriter(db Execer) *AuditWriter {
	return &AuditWriter{db: db}
}

// Record persists one entry. The actor falls back to the one carried by ctx
// and the timestamp to the database clock.
func (w *AuditWriter) Record(ctx context.Context, entry shared.AuditLog) error {
	if w == nil || w.db == nil {
		return errors.New("platform/db: audit writer not initialised")
	}
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return fmt.Errorf("platform/db: audit entry needs action, entity and entity id (got %q %q %q)", entry.Action, entry.Entity, entry.EntityID)
	}
	if entry.Actor == "" {
		entry.Actor = shared.ActorFromContext(ctx)
	}
	var meta []byte
	if len(entry.Meta) > 0 {
		var err error
		if meta, err = json.Marshal(entry.Meta); err != nil {
			return fmt.Errorf("platform/db: audit meta: %w", err)
		}
	}
	var at any
	if !entry.At.IsZero() {
		at = entry.At
	}
	_, err := w.db.Exec(ctx,
		`INSERT INTO audit_logs (actor, action, entity, entity_id, meta, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6::timestamptz, NOW()))`,
		entry.Actor, entry.Action, entry.Entity, entry.EntityID, meta, at)
	return err
}
