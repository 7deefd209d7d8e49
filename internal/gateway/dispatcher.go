package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/markgromer/titan-mcp-server/internal/audit"
	"github.com/markgromer/titan-mcp-server/internal/catalog"
	"github.com/markgromer/titan-mcp-server/internal/schema"
	"github.com/markgromer/titan-mcp-server/internal/store"
	"github.com/markgromer/titan-mcp-server/internal/titan"
)

const (
	protocolVersion = "2024-11-05"
	serverName      = "titan-mcp-server"
	serverVersion   = "0.1.0"
)

// Dispatcher executes JSON-RPC requests against the tool catalog. It is
// shared by both transports: the SSE session loop and the stateless POST
// handler feed it raw request bytes and forward whatever it returns.
type Dispatcher struct {
	catalog      *catalog.Catalog
	api          catalog.Sender
	auditor      *audit.Logger
	enableWrites bool
}

// NewDispatcher creates a Dispatcher. The auditor is optional (nil-safe).
func NewDispatcher(cat *catalog.Catalog, api catalog.Sender, auditor *audit.Logger, enableWrites bool) *Dispatcher {
	return &Dispatcher{
		catalog:      cat,
		api:          api,
		auditor:      auditor,
		enableWrites: enableWrites,
	}
}

// Dispatch parses one JSON-RPC request and returns the response to send.
// A nil response means the request was a notification and nothing goes
// back to the client. sessionID tags audit records; it is empty for
// stateless calls.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, body []byte) *Response {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return &Response{
			JSONRPC: "2.0",
			Error: &RPCError{
				Code:    CodeParseError,
				Message: "invalid JSON: " + err.Error(),
			},
		}
	}

	// Notifications have no ID; don't send a response.
	if req.ID == nil {
		d.handleNotification(req)
		return nil
	}

	var result json.RawMessage
	var rpcErr *RPCError

	switch req.Method {
	case "initialize":
		result, rpcErr = d.handleInitialize(req.Params)
	case "ping":
		result, _ = json.Marshal(map[string]any{})
	case "tools/list":
		result = d.toolsListResult()
	case "tools/call":
		result, rpcErr = d.handleToolsCall(ctx, sessionID, req.Params)
	default:
		rpcErr = &RPCError{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("unknown method: %s", req.Method),
		}
	}

	resp := &Response{JSONRPC: "2.0", ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	return resp
}

func (d *Dispatcher) handleNotification(req Request) {
	switch req.Method {
	case "notifications/initialized":
		slog.Info("client initialized")
	default:
		slog.Debug("unhandled notification", "method", req.Method)
	}
}

func (d *Dispatcher) handleInitialize(params json.RawMessage) (json.RawMessage, *RPCError) {
	var p InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
		}
	}

	if p.ClientInfo.Name != "" {
		slog.Info("client connecting",
			"client", p.ClientInfo.Name, "client_version", p.ClientInfo.Version)
	}

	result := InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities: ServerCapability{
			Tools: &ToolCapability{ListChanged: false},
		},
		ServerInfo: ServerInfo{Name: serverName, Version: serverVersion},
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return data, nil
}

// toolsListResult renders the full catalog. The catalog is fixed at
// startup, so the listing is also the fallback response for requests
// whose envelope could not be parsed.
func (d *Dispatcher) toolsListResult() json.RawMessage {
	tools := d.catalog.Tools()
	wire := make([]Tool, 0, len(tools))
	for _, t := range tools {
		schemaJSON, err := json.Marshal(t.InputSchema)
		if err != nil {
			slog.Error("marshal tool schema", "tool", t.Name, "error", err)
			continue
		}
		wire = append(wire, Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schemaJSON,
		})
	}

	data, _ := json.Marshal(map[string]any{"tools": wire})
	return data
}

// FallbackResponse is what a stateless caller gets when its body could
// not be parsed as a JSON-RPC envelope: the tool listing, so a confused
// client still learns what it can do.
func (d *Dispatcher) FallbackResponse() *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      json.RawMessage("null"),
		Result:  d.toolsListResult(),
	}
}

func (d *Dispatcher) handleToolsCall(
	ctx context.Context, sessionID string, params json.RawMessage,
) (json.RawMessage, *RPCError) {
	var req CallToolRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}

	start := time.Now()
	result, status, errMsg := d.executeTool(ctx, req)
	d.recordAudit(ctx, sessionID, req, status, errMsg, time.Since(start), len(result))
	return result, nil
}

// executeTool runs the tools/call pipeline: catalog lookup, argument
// validation, write policy, downstream request. Every failure mode maps
// to an in-band tool result; nothing here produces an RPCError.
func (d *Dispatcher) executeTool(
	ctx context.Context, req CallToolRequest,
) (result json.RawMessage, status, errMsg string) {
	tool, ok := d.catalog.Lookup(req.Name)
	if !ok {
		msg := fmt.Sprintf("unknown tool: %q", req.Name)
		return marshalErrorResult(msg), store.AuditStatusError, msg
	}

	args, err := tool.InputSchema.Validate(req.Arguments)
	if err != nil {
		return marshalErrorResult(validationMessage(err)), store.AuditStatusError, err.Error()
	}

	if tool.Mutating && !d.enableWrites {
		return writesDisabledResult(tool.Name), store.AuditStatusDenied, ""
	}

	res, err := tool.Handler(ctx, d.api, args)
	if err != nil {
		return marshalErrorResult(downstreamMessage(err)), store.AuditStatusError, err.Error()
	}

	text := res.Text
	if res.IsJSON {
		text = string(res.JSON)
	}
	return marshalToolResult(text), store.AuditStatusSuccess, ""
}

// validationMessage flattens every violation into one readable message.
func validationMessage(err error) string {
	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		return err.Error()
	}

	var b strings.Builder
	b.WriteString("invalid arguments:")
	for _, v := range verr.Violations {
		b.WriteString("\n  - ")
		b.WriteString(v.String())
	}
	return b.String()
}

func downstreamMessage(err error) string {
	var apiErr *titan.APIError
	switch {
	case errors.As(err, &apiErr):
		return "Titan API error: " + apiErr.Error()
	case errors.Is(err, titan.ErrUnavailable):
		return "Titan API is temporarily unavailable, try again shortly."
	default:
		return "request failed: " + err.Error()
	}
}

func (d *Dispatcher) recordAudit(
	ctx context.Context, sessionID string, req CallToolRequest,
	status, errMsg string, latency time.Duration, size int,
) {
	if d.auditor == nil {
		return
	}

	rec := &store.AuditRecord{
		SessionID:      sessionID,
		ToolName:       req.Name,
		ParamsRedacted: req.Arguments,
		Status:         status,
		ErrorMessage:   errMsg,
		LatencyMs:      int(latency.Milliseconds()),
		ResponseSize:   size,
	}
	if err := d.auditor.Record(ctx, rec); err != nil {
		slog.Error("record audit entry", "tool", req.Name, "error", err)
	}
}
