package store

import (
	"encoding/json"
	"time"
)

// Audit record statuses.
const (
	AuditStatusSuccess = "success"
	AuditStatusError   = "error"
	AuditStatusDenied  = "denied"
)

// AuditRecord is one tool invocation as seen by the gateway.
type AuditRecord struct {
	ID             string          `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	SessionID      string          `json:"session_id,omitempty"`
	ToolName       string          `json:"tool_name"`
	ParamsRedacted json.RawMessage `json:"params_redacted,omitempty"`
	Status         string          `json:"status"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	LatencyMs      int             `json:"latency_ms"`
	ResponseSize   int             `json:"response_size"`
	CreatedAt      time.Time       `json:"created_at"`
}

// AuditFilter narrows an audit query. Zero values match everything.
type AuditFilter struct {
	ToolName  string
	Status    string
	SessionID string
	Limit     int
	Offset    int
}
