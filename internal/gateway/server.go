package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	heartbeatInterval = 15 * time.Second
	maxRequestBody    = 1 << 20 // 1 MiB
)

// Server is the MCP transport surface. It serves the gateway endpoint in
// both modes: GET opens a long-lived SSE session, POST carries JSON-RPC
// requests either statelessly or scoped to an open session.
type Server struct {
	dispatcher *Dispatcher
	registry   *Registry
	auth       *Authorizer
	basePath   string
}

// NewServer creates the transport server for the given endpoint path.
func NewServer(d *Dispatcher, auth *Authorizer, basePath string) *Server {
	return &Server{
		dispatcher: d,
		registry:   NewRegistry(),
		auth:       auth,
		basePath:   basePath,
	}
}

// Sessions exposes the live session registry.
func (s *Server) Sessions() *Registry {
	return s.registry
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if !s.auth.Allow(r) {
		writeTransportError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleSSE(w, r)
	case http.MethodPost:
		s.handlePost(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		writeTransportError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSSE opens a streaming session. The first event announces the
// session-scoped POST endpoint; afterwards the loop pushes routed
// responses as message events and keeps the connection alive with
// comment heartbeats.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeTransportError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	session := s.registry.Open()
	defer s.registry.Close(session.ID)

	slog.Info("session opened", "session_id", session.ID, "remote", r.RemoteAddr)
	defer slog.Info("session closed", "session_id", session.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: endpoint\ndata: %s?sessionId=%s\n\n", s.basePath, session.ID)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case resp := <-session.Deliveries():
			data, err := json.Marshal(resp)
			if err != nil {
				slog.Error("marshal session response", "session_id", session.ID, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ":\n\n")
			flusher.Flush()
		}
	}
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeTransportError(w, http.StatusBadRequest, "read request body: "+err.Error())
		return
	}

	if sessionID := r.URL.Query().Get("sessionId"); sessionID != "" {
		s.handleSessionPost(w, sessionID, body)
		return
	}
	s.handleStatelessPost(w, r, body)
}

// handleSessionPost accepts a request on behalf of an open session. The
// HTTP response only acknowledges receipt; the call itself runs on the
// session's worker, which preserves arrival order, and the JSON-RPC
// response travels over the session's SSE stream.
func (s *Server) handleSessionPost(w http.ResponseWriter, sessionID string, body []byte) {
	if _, ok := s.registry.Lookup(sessionID); !ok {
		writeTransportError(w, http.StatusNotFound, "unknown session: "+sessionID)
		return
	}

	// A session-scoped caller already speaks the protocol, so a body that
	// doesn't parse is rejected rather than answered leniently.
	if !validEnvelope(body) {
		writeTransportError(w, http.StatusBadRequest, "malformed JSON-RPC request")
		return
	}

	err := s.registry.Enqueue(sessionID, func(ctx context.Context) {
		resp := s.dispatcher.Dispatch(ctx, sessionID, body)
		if resp == nil {
			return
		}
		if err := s.registry.Route(sessionID, resp); err != nil {
			slog.Debug("session closed before delivery", "session_id", sessionID)
		}
	})
	if err != nil {
		writeTransportError(w, http.StatusNotFound, "unknown session: "+sessionID)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// handleStatelessPost answers a single JSON-RPC request directly. A body
// that isn't a parseable envelope gets the tool listing instead of an
// error, so probing clients still discover the catalog.
func (s *Server) handleStatelessPost(w http.ResponseWriter, r *http.Request, body []byte) {
	var resp *Response
	if validEnvelope(body) {
		resp = s.dispatcher.Dispatch(r.Context(), "", body)
	} else {
		resp = s.dispatcher.FallbackResponse()
	}

	if resp == nil { // notification
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("write stateless response", "error", err)
	}
}

// validEnvelope reports whether body parses as a JSON-RPC 2.0 request
// object: the protocol tag must be present and right, and a method named.
func validEnvelope(body []byte) bool {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return false
	}
	return req.JSONRPC == "2.0" && req.Method != ""
}

func writeTransportError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg}) //nolint:errcheck
}
