package sqlite

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/markgromer/titan-mcp-server/internal/store"
)

const timeFormat = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeFormat, s)
	return t
}

func (d *DB) InsertAuditRecord(ctx context.Context, r *store.AuditRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	params := "{}"
	if len(r.ParamsRedacted) > 0 {
		params = string(r.ParamsRedacted)
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO audit_records
			(id, timestamp, session_id, tool_name, params_redacted,
			 status, error_message, latency_ms, response_size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, formatTime(r.Timestamp), r.SessionID, r.ToolName, params,
		r.Status, r.ErrorMessage, r.LatencyMs, r.ResponseSize,
		formatTime(r.CreatedAt),
	)
	return err
}

func (d *DB) QueryAuditRecords(
	ctx context.Context, f store.AuditFilter,
) ([]store.AuditRecord, int, error) {
	where, args := buildAuditWhere(f)

	var total int
	countQ := "SELECT COUNT(*) FROM audit_records" + where
	if err := d.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	dataQ := `SELECT id, timestamp, session_id, tool_name, params_redacted,
		status, error_message, latency_ms, response_size, created_at
		FROM audit_records` + where +
		` ORDER BY timestamp DESC LIMIT ? OFFSET ?`
	dataArgs := append(args, limit, f.Offset)

	rows, err := d.db.QueryContext(ctx, dataQ, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []store.AuditRecord
	for rows.Next() {
		var r store.AuditRecord
		var ts, created, params string
		if err := rows.Scan(&r.ID, &ts, &r.SessionID, &r.ToolName, &params,
			&r.Status, &r.ErrorMessage, &r.LatencyMs, &r.ResponseSize,
			&created); err != nil {
			return nil, 0, err
		}
		r.Timestamp = parseTime(ts)
		r.CreatedAt = parseTime(created)
		r.ParamsRedacted = json.RawMessage(params)
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func (d *DB) DeleteAuditRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM audit_records WHERE timestamp < ?`, formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func buildAuditWhere(f store.AuditFilter) (string, []any) {
	var clauses []string
	var args []any
	if f.ToolName != "" {
		clauses = append(clauses, "tool_name = ?")
		args = append(args, f.ToolName)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}
