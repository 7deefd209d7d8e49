// Package store defines the persistence boundary for the gateway's audit
// log.
package store

import (
	"context"
	"time"
)

// AuditStore persists and queries tool-call audit records.
type AuditStore interface {
	InsertAuditRecord(ctx context.Context, r *AuditRecord) error
	QueryAuditRecords(ctx context.Context, f AuditFilter) ([]AuditRecord, int, error)
	DeleteAuditRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store is the composite interface for all data access.
type Store interface {
	AuditStore
	Ping(ctx context.Context) error
	Close() error
}
