package api

import (
	"net/http"
	"strconv"

	"github.com/markgromer/titan-mcp-server/internal/store"
)

type auditHandler struct {
	store store.AuditStore
}

func (h *auditHandler) query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.AuditFilter{
		ToolName:  q.Get("tool_name"),
		Status:    q.Get("status"),
		SessionID: q.Get("session_id"),
		Limit:     50,
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	records, total, err := h.store.QueryAuditRecords(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query audit records")
		return
	}

	if records == nil {
		records = []store.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":   records,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}
