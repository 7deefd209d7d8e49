// Package audit records every tool invocation the gateway dispatches.
package audit

import (
	"context"
	"fmt"

	"github.com/markgromer/titan-mcp-server/internal/store"
)

// Logger writes audit records with parameter redaction.
type Logger struct {
	store store.AuditStore
	bus   *Bus
}

// NewLogger creates an audit Logger. The bus parameter is optional (nil-safe).
func NewLogger(auditStore store.AuditStore, bus *Bus) *Logger {
	return &Logger{store: auditStore, bus: bus}
}

// Record redacts sensitive parameters and inserts the audit record.
func (l *Logger) Record(ctx context.Context, rec *store.AuditRecord) error {
	if len(rec.ParamsRedacted) > 0 {
		rec.ParamsRedacted = Redact(rec.ParamsRedacted)
	}

	if err := l.store.InsertAuditRecord(ctx, rec); err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	if l.bus != nil {
		l.bus.Publish(rec)
	}
	return nil
}
