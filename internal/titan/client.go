// Package titan is the HTTP client for the downstream Titan API. The
// gateway forwards every validated tool call through it and shapes the
// JSON (or text) it returns back into the MCP content envelope.
package titan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// ErrUnavailable is returned when the circuit breaker is open and calls
// are being short-circuited without contacting the API.
var ErrUnavailable = errors.New("titan api unavailable")

// APIError is a non-success response from the Titan API.
type APIError struct {
	Status     int
	StatusText string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("titan api error %d %s: %s", e.Status, e.StatusText, e.Body)
}

// RequestOptions shapes a single outbound request.
type RequestOptions struct {
	Method string     // defaults to GET
	Query  url.Values // optional query parameters
	Body   any        // optional JSON body
}

// Result is a successful API response. JSON responses carry the raw
// payload (an empty body decodes as an empty object); anything else is
// passed through as text.
type Result struct {
	JSON   json.RawMessage
	Text   string
	IsJSON bool
}

// Client issues requests against the Titan API. All requests carry the
// configured bearer token, and the organization scope header when one is
// set. A circuit breaker trips after consecutive transport failures so a
// dead downstream fails fast instead of holding every call open.
type Client struct {
	baseURL string
	token   string
	orgID   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a Titan API client. baseURL must not have a trailing
// slash; token is the downstream credential; orgID may be empty.
func NewClient(baseURL, token, orgID string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		orgID:   orgID,
		http:    &http.Client{Timeout: 30 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "titan-api",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("titan api breaker state change",
					"from", from.String(), "to", to.String())
			},
			// API-level errors (4xx/5xx) are the caller's problem, not a
			// sign the downstream is unreachable.
			IsSuccessful: func(err error) bool {
				var apiErr *APIError
				return err == nil || errors.As(err, &apiErr)
			},
		}),
	}
}

// Send issues one request and returns the decoded result. Non-success
// statuses return an *APIError; breaker-rejected calls return
// ErrUnavailable.
func (c *Client) Send(ctx context.Context, path string, opt RequestOptions) (*Result, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		return c.send(ctx, path, opt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return out.(*Result), nil
}

func (c *Client) send(ctx context.Context, path string, opt RequestOptions) (*Result, error) {
	method := opt.Method
	if method == "" {
		method = http.MethodGet
	}

	u := c.baseURL + path
	if len(opt.Query) > 0 {
		u += "?" + opt.Query.Encode()
	}

	var body io.Reader
	if opt.Body != nil {
		data, err := json.Marshal(opt.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if opt.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.orgID != "" {
		req.Header.Set("Titan-Org-Id", c.orgID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("titan request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read titan response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	ct := resp.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		if len(bytes.TrimSpace(respBody)) == 0 {
			return &Result{JSON: json.RawMessage(`{}`), IsJSON: true}, nil
		}
		return &Result{JSON: respBody, IsJSON: true}, nil
	}
	return &Result{Text: string(respBody)}, nil
}
