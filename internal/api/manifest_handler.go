package api

import (
	"net/http"
	"net/url"

	"github.com/markgromer/titan-mcp-server/internal/catalog"
)

// manifestHandler serves the discovery document clients fetch before
// opening an MCP connection.
type manifestHandler struct {
	basePath string
	catalog  *catalog.Catalog
}

func (h *manifestHandler) get(w http.ResponseWriter, r *http.Request) {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	endpointURL := (&url.URL{Scheme: scheme, Host: r.Host, Path: h.basePath}).String()

	tools := make([]map[string]string, 0)
	if h.catalog != nil {
		for _, t := range h.catalog.Tools() {
			tools = append(tools, map[string]string{
				"name":        t.Name,
				"description": t.Description,
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "titan-mcp-server",
		"version":     "0.1.0",
		"protocol":    "mcp",
		"endpoint":    h.basePath,
		"endpointURL": endpointURL,
		"transport":   []string{"sse", "http"},
		"tools":       tools,
	})
}
