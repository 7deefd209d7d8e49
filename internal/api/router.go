// Package api exposes the gateway's HTTP surface: the MCP endpoint, the
// discovery manifest, and a small admin API for the audit log.
package api

import (
	"net/http"

	"github.com/markgromer/titan-mcp-server/internal/audit"
	"github.com/markgromer/titan-mcp-server/internal/catalog"
	"github.com/markgromer/titan-mcp-server/internal/store"
)

// RouterDeps holds the dependencies needed by the HTTP router.
type RouterDeps struct {
	Gateway  http.Handler // MCP transport, mounted at BasePath
	BasePath string
	Catalog  *catalog.Catalog
	Store    store.Store // nil disables the audit query API
	AuditBus *audit.Bus  // optional; enables the SSE audit stream
}

// NewRouter creates an http.Handler with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	mux.Handle(deps.BasePath, deps.Gateway)

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "titan-mcp-server",
		})
	})

	manifest := &manifestHandler{basePath: deps.BasePath, catalog: deps.Catalog}
	mux.HandleFunc("GET /.well-known/mcp/manifest.json", manifest.get)

	if deps.Store != nil {
		auditH := &auditHandler{store: deps.Store}
		mux.HandleFunc("GET /api/v1/audit", auditH.query)
	}

	if deps.AuditBus != nil {
		sse := &auditSSEHandler{bus: deps.AuditBus}
		mux.HandleFunc("GET /api/v1/audit/stream", sse.stream)
	}

	health := &healthHandler{store: deps.Store}
	mux.HandleFunc("GET /api/v1/health", health.check)

	// Apply middleware chain: CORS -> RequestID -> Logging -> mux
	var handler http.Handler = mux
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = corsMiddleware(handler)

	return handler
}
