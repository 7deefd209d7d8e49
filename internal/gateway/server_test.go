package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/markgromer/titan-mcp-server/internal/catalog"
	"github.com/markgromer/titan-mcp-server/internal/titan"
)

func mockPriceResult() *titan.Result {
	return &titan.Result{JSON: json.RawMessage(`{"price": 42}`), IsJSON: true}
}

func newTestServer(t *testing.T, sender catalog.Sender, secret string, enableWrites bool) *httptest.Server {
	t.Helper()
	d, _ := newTestDispatcher(sender, enableWrites)
	srv := httptest.NewServer(NewServer(d, NewAuthorizer(secret), "/mcp"))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response) *Response {
	t.Helper()
	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return &out
}

// readEvent reads one SSE event, skipping comment heartbeats.
func readEvent(t *testing.T, r *bufio.Reader) (event, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read SSE stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if event != "" || data != "" {
				return event, data
			}
		case strings.HasPrefix(line, ":"):
			// heartbeat comment
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

// --- Stateless transport ---

func TestStatelessToolsCall(t *testing.T) {
	sender := &mockSender{res: mockPriceResult()}
	srv := newTestServer(t, sender, "", false)

	resp := postJSON(t, srv.URL, callBody("get_price", `{"product_id":"prod_1"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	out := decodeResponse(t, resp)
	var result CallToolResult
	if err := json.Unmarshal(out.Result, &result); err != nil {
		t.Fatal(err)
	}
	if result.IsError || result.Content[0].Text != `{"price": 42}` {
		t.Errorf("result = %+v", result)
	}
}

func TestStatelessMalformedBodyFallsBackToToolListing(t *testing.T) {
	srv := newTestServer(t, &mockSender{}, "", false)

	bodies := []string{
		"",
		"not json at all",
		`{"no_method":true}`,
		`{"jsonrpc":"1.0","id":1,"method":"resources/read"}`, // wrong protocol tag
		`{"id":1,"method":"tools/list"}`,                     // missing protocol tag
	}
	for _, body := range bodies {
		resp := postJSON(t, srv.URL, body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("body %q: status = %d", body, resp.StatusCode)
		}

		out := decodeResponse(t, resp)
		var result struct {
			Tools []Tool `json:"tools"`
		}
		if err := json.Unmarshal(out.Result, &result); err != nil {
			t.Fatalf("body %q: %v", body, err)
		}
		if len(result.Tools) == 0 {
			t.Errorf("body %q: fallback did not list tools", body)
		}
	}
}

func TestStatelessNotificationAccepted(t *testing.T) {
	srv := newTestServer(t, &mockSender{}, "", false)

	resp := postJSON(t, srv.URL, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
}

// --- Transport errors ---

func TestBearerAuth(t *testing.T) {
	srv := newTestServer(t, &mockSender{}, "s3cret", false)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic s3cret", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, srv.URL,
				strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &mockSender{}, "", false)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestOptionsPreflight(t *testing.T) {
	srv := newTestServer(t, &mockSender{}, "s3cret", false)

	// Preflight must succeed without credentials.
	req, _ := http.NewRequest(http.MethodOptions, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
}

func TestSessionPostUnknownSession(t *testing.T) {
	srv := newTestServer(t, &mockSender{}, "", false)

	resp := postJSON(t, srv.URL+"?sessionId=ghost", callBody("get_price", `{"product_id":"p"}`))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

// --- SSE session flow ---

func TestSSESessionFlow(t *testing.T) {
	sender := &mockSender{res: mockPriceResult()}
	srv := newTestServer(t, sender, "", false)

	stream, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Body.Close()

	if ct := stream.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	reader := bufio.NewReader(stream.Body)
	event, data := readEvent(t, reader)
	if event != "endpoint" {
		t.Fatalf("first event = %q, want endpoint", event)
	}
	if !strings.HasPrefix(data, "/mcp?sessionId=") {
		t.Fatalf("endpoint data = %q", data)
	}

	// Post a request against the announced endpoint.
	resp := postJSON(t, srv.URL+strings.TrimPrefix(data, "/mcp"),
		callBody("get_price", `{"product_id":"prod_1"}`))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("session POST status = %d, want 202", resp.StatusCode)
	}

	// The JSON-RPC response arrives on the stream, not the POST.
	event, data = readEvent(t, reader)
	if event != "message" {
		t.Fatalf("second event = %q, want message", event)
	}
	var out Response
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		t.Fatal(err)
	}
	var result CallToolResult
	if err := json.Unmarshal(out.Result, &result); err != nil {
		t.Fatal(err)
	}
	if result.Content[0].Text != `{"price": 42}` {
		t.Errorf("streamed result = %+v", result)
	}
}

// stalledFirstSender delays its first downstream call so a later call
// would finish first without per-session serialization.
type stalledFirstSender struct {
	mu    sync.Mutex
	calls int
}

func (s *stalledFirstSender) Send(ctx context.Context, _ string, _ titan.RequestOptions) (*titan.Result, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()

	if n == 1 {
		select {
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &titan.Result{JSON: json.RawMessage(`{}`), IsJSON: true}, nil
}

func TestSessionDeliveryOrderWithSlowDownstream(t *testing.T) {
	srv := newTestServer(t, &stalledFirstSender{}, "", false)

	stream, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Body.Close()

	reader := bufio.NewReader(stream.Body)
	_, data := readEvent(t, reader)
	endpoint := srv.URL + strings.TrimPrefix(data, "/mcp")

	// The first call stalls downstream; the second is fast. Both are
	// accepted immediately, but delivery must follow arrival order.
	for id := 1; id <= 2; id++ {
		body := fmt.Sprintf(
			`{"jsonrpc":"2.0","id":%d,"method":"tools/call","params":{"name":"get_price","arguments":{"product_id":"p"}}}`, id)
		resp := postJSON(t, endpoint, body)
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("POST %d status = %d, want 202", id, resp.StatusCode)
		}
	}

	for want := 1; want <= 2; want++ {
		event, data := readEvent(t, reader)
		if event != "message" {
			t.Fatalf("event = %q, want message", event)
		}
		var out Response
		if err := json.Unmarshal([]byte(data), &out); err != nil {
			t.Fatal(err)
		}
		if string(out.ID) != strconv.Itoa(want) {
			t.Fatalf("delivery %d carried id %s; responses out of order", want, out.ID)
		}
	}
}

func TestSessionPostMalformedBodyRejected(t *testing.T) {
	srv := newTestServer(t, &mockSender{}, "", false)

	stream, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Body.Close()

	reader := bufio.NewReader(stream.Body)
	_, data := readEvent(t, reader)
	endpoint := srv.URL + strings.TrimPrefix(data, "/mcp")

	resp := postJSON(t, endpoint, "this is not json-rpc")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSessionClosedAfterDisconnect(t *testing.T) {
	d, _ := newTestDispatcher(&mockSender{}, false)
	gw := NewServer(d, NewAuthorizer(""), "/mcp")
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)

	stream, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	reader := bufio.NewReader(stream.Body)
	_, data := readEvent(t, reader)
	sessionID := strings.TrimPrefix(data, "/mcp?sessionId=")

	if _, ok := gw.Sessions().Lookup(sessionID); !ok {
		t.Fatal("session not registered while stream open")
	}

	stream.Body.Close()

	timeout := time.After(2 * time.Second)
	for {
		if _, ok := gw.Sessions().Lookup(sessionID); !ok {
			return
		}
		select {
		case <-timeout:
			t.Fatal("session still registered after disconnect")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
