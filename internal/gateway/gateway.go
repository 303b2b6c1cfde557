// package gateway performs authenticated requests against the backend.
//
// Every request carries the caller's credentials. An unauthorized response triggers exactly one
// credential refresh followed by exactly one retry; a second failure is reported as
// [shared.ErrAuthRequired] and never loops.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fleetroute/internal/shared"
)

// Authorizer decorates an outgoing request with the current credentials.
type Authorizer interface {
	Authorize(req *http.Request)
}

// Credentials attaches and renews the caller's session.
type Credentials interface {
	Authorizer
	// Refresh renews the session and reports whether it succeeded.
	Refresh(ctx context.Context) bool
}

// APIError is a non-2xx response other than an unrecoverable 401.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return shared.ErrUpstreamUnavailable
}

// AuthRequiredError is returned once the refresh-and-retry policy is exhausted.
type AuthRequiredError struct {
	Endpoint string
}

func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("%s: %s", shared.ErrAuthRequired, e.Endpoint)
}

func (e *AuthRequiredError) Unwrap() error {
	return shared.ErrAuthRequired
}

// StatusCode extracts the HTTP status from an [APIError] in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Response is a successful response with its raw body.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Decode unmarshals the body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if v == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Gateway is safe for concurrent use.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	auth       Authorizer
	creds      Credentials
	logger     *log.Logger
}

// New creates a Gateway. A nil client falls back to [http.DefaultClient]; nil creds sends requests
// unauthenticated.
func New(baseURL string, client *http.Client, creds Credentials) *Gateway {
	if client == nil {
		client = http.DefaultClient
	}

	g := &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		logger:     shared.DiscardLogger(),
	}
	if creds != nil {
		g.auth = creds
		g.creds = creds
	}
	return g
}

// NewAuthorizeOnly creates a Gateway that attaches credentials but never refreshes them. A 401 is
// reported as [AuthRequiredError] straight away.
func NewAuthorizeOnly(baseURL string, client *http.Client, auth Authorizer) *Gateway {
	g := New(baseURL, client, nil)
	g.auth = auth
	return g
}

// SetLogger replaces the gateway's logger.
func (g *Gateway) SetLogger(l *log.Logger) {
	if l != nil {
		g.logger = shared.WithLogger(l, "component", "gateway")
	}
}

// BaseURL returns the prefix joined to relative endpoints.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// Request performs a request and decodes a successful JSON body into out (when non-nil).
func (g *Gateway) Request(ctx context.Context, method, endpoint string, body, out any) error {
	resp, err := g.Do(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// Do performs a request with the refresh-and-retry policy and returns the raw successful response.
//
// body may be nil, a []byte, an [io.Reader] or any JSON-encodable value. It is buffered so the
// retry sends identical bytes.
func (g *Gateway) Do(ctx context.Context, method, endpoint string, body any) (*Response, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	url := g.resolve(endpoint)

	resp, err := g.send(ctx, method, url, payload)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if g.creds == nil {
			g.logger.Debug("unauthorized", "endpoint", endpoint)
			return nil, &AuthRequiredError{Endpoint: endpoint}
		}

		g.logger.Debug("unauthorized, refreshing credentials", "endpoint", endpoint)
		if !g.creds.Refresh(ctx) {
			g.logger.Warn("credential refresh failed", "endpoint", endpoint)
			return nil, &AuthRequiredError{Endpoint: endpoint}
		}

		resp, err = g.send(ctx, method, url, payload)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			g.logger.Warn("still unauthorized after refresh", "endpoint", endpoint)
			return nil, &AuthRequiredError{Endpoint: endpoint}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    ErrorMessage(resp.StatusCode, resp.Body),
			Endpoint:   endpoint,
		}
	}

	return resp, nil
}

func (g *Gateway) send(ctx context.Context, method, url string, payload []byte) (*Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.auth != nil {
		g.auth.Authorize(req)
	}

	g.logger.Debug("request", "method", method, "url", url)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", shared.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", shared.ErrUpstreamUnavailable, err)
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		out.IsJSON = true
		out.JSONData = jsonData
	}

	return out, nil
}

func (g *Gateway) resolve(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return g.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

// ErrorMessage picks the user-facing message for a failed response: the JSON message (or error)
// field, then the raw body text, then a generic status line.
//
// A JSON object without either field reports "API request failed".
func ErrorMessage(status int, body []byte) string {
	var payload struct {
		Message any    `json:"message"`
		Error   string `json:"error"`
	}
	if bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) && json.Unmarshal(body, &payload) == nil {
		switch m := payload.Message.(type) {
		case string:
			if m != "" {
				return m
			}
		case []any:
			parts := make([]string, 0, len(m))
			for _, p := range m {
				parts = append(parts, fmt.Sprint(p))
			}
			if len(parts) > 0 {
				return strings.Join(parts, "; ")
			}
		}
		if payload.Error != "" {
			return payload.Error
		}
		return "API request failed"
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP error %d", status)
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		return data, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		return data, nil
	}
}
