package api

import (
	"net/http"
	"time"

	"github.com/markgromer/titan-mcp-server/internal/store"
)

var startTime = time.Now()

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int    `json:"uptime_seconds"`
	Audit         string `json:"audit"`
}

type healthHandler struct {
	store store.Store
}

func (h *healthHandler) check(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		Version:       "0.1.0",
		UptimeSeconds: int(time.Since(startTime).Seconds()),
		Audit:         "ok",
	}

	if h.store == nil {
		resp.Audit = "disabled"
	} else if err := h.store.Ping(r.Context()); err != nil {
		resp.Audit = "unavailable"
	}

	writeJSON(w, http.StatusOK, resp)
}
