package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/markgromer/titan-mcp-server/internal/store"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(context.Background(), filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInsertAndQueryAuditRecords(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	recs := []*store.AuditRecord{
		{ToolName: "get_price", SessionID: "s1", Status: "success", LatencyMs: 12},
		{ToolName: "create_customer", SessionID: "s1", Status: "error", ErrorMessage: "titan api error 400"},
		{ToolName: "get_price", SessionID: "s2", Status: "success",
			ParamsRedacted: json.RawMessage(`{"product_id":"prod_1"}`)},
	}
	for _, r := range recs {
		if err := db.InsertAuditRecord(ctx, r); err != nil {
			t.Fatalf("InsertAuditRecord() error = %v", err)
		}
		if r.ID == "" {
			t.Error("insert should assign an ID")
		}
	}

	tests := []struct {
		name      string
		filter    store.AuditFilter
		wantTotal int
	}{
		{"all", store.AuditFilter{}, 3},
		{"by tool", store.AuditFilter{ToolName: "get_price"}, 2},
		{"by status", store.AuditFilter{Status: "error"}, 1},
		{"by session", store.AuditFilter{SessionID: "s1"}, 2},
		{"combined", store.AuditFilter{ToolName: "get_price", SessionID: "s2"}, 1},
		{"no match", store.AuditFilter{ToolName: "nope"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, total, err := db.QueryAuditRecords(ctx, tt.filter)
			if err != nil {
				t.Fatalf("QueryAuditRecords() error = %v", err)
			}
			if total != tt.wantTotal || len(rows) != tt.wantTotal {
				t.Errorf("total = %d, rows = %d, want %d", total, len(rows), tt.wantTotal)
			}
		})
	}
}

func TestQueryAuditRecordsPagination(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := &store.AuditRecord{
			ToolName:  "list_products",
			Status:    "success",
			Timestamp: time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
		}
		if err := db.InsertAuditRecord(ctx, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	rows, total, err := db.QueryAuditRecords(ctx, store.AuditFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("QueryAuditRecords() error = %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	// Newest first: offset 2 of 5 gives minutes 2 and 1.
	if rows[0].Timestamp.Minute() != 2 || rows[1].Timestamp.Minute() != 1 {
		t.Errorf("unexpected page ordering: %v, %v", rows[0].Timestamp, rows[1].Timestamp)
	}
}

func TestDeleteAuditRecordsBefore(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	old := &store.AuditRecord{ToolName: "get_price", Status: "success",
		Timestamp: time.Now().UTC().Add(-48 * time.Hour)}
	fresh := &store.AuditRecord{ToolName: "get_price", Status: "success"}
	for _, r := range []*store.AuditRecord{old, fresh} {
		if err := db.InsertAuditRecord(ctx, r); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	n, err := db.DeleteAuditRecordsBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteAuditRecordsBefore() error = %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	_, total, err := db.QueryAuditRecords(ctx, store.AuditFilter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 1 {
		t.Errorf("remaining = %d, want 1", total)
	}
}
