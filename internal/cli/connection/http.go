// Package connection provides the auth service client for finance-cli.
package connection

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/oauth2"

	"github.com/jtuchinsky/finance-planner-cli/internal/core/domain"
	"github.com/jtuchinsky/finance-planner-cli/internal/infra/buildinfo"
	"github.com/jtuchinsky/finance-planner-cli/internal/telemetry/logger"
)

// DefaultTimeout bounds every request, including the refresh call made
// while reading a stale token.
const DefaultTimeout = 30 * time.Second

// RequestIDHeader carries a per-request ULID for correlation with server logs.
const RequestIDHeader = "X-Request-ID"

// HTTPClient provides HTTP communication with a remote service.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithTLSConfig sets the TLS configuration, e.g. a custom CA pool.
func WithTLSConfig(cfg *tls.Config) HTTPOption {
	return func(c *HTTPClient) {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = cfg
		c.client.Transport = transport
	}
}

// WithTokenSource attaches bearer tokens from src to every request.
func WithTokenSource(src oauth2.TokenSource) HTTPOption {
	return func(c *HTTPClient) {
		base := c.client.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.client.Transport = &oauth2.Transport{Source: src, Base: base}
	}
}

// NewHTTPClient creates a new HTTP client for the service at server.
func NewHTTPClient(server string, opts ...HTTPOption) *HTTPClient {
	// Ensure baseURL has http:// prefix
	baseURL := strings.TrimRight(server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	c := &HTTPClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	requestID := ulid.Make().String()
	c.addHeaders(req, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := logger.L(logger.WithRequestID(ctx, requestID))
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		log.Debug("request failed", "method", method, "path", path, "error", err, "duration", time.Since(start))
		return nil, classifyTransportError(err)
	}
	log.Debug("request done", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))
	return resp, nil
}

// addHeaders adds common headers.
func (c *HTTPClient) addHeaders(req *http.Request, requestID string) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	req.Header.Set(RequestIDHeader, requestID)
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// classifyTransportError maps failures to reach the service onto
// ErrServiceUnreachable. Errors produced before the request was sent,
// such as a missing bearer token, are returned as they are.
func classifyTransportError(err error) error {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return domain.ErrServiceUnreachable.WithCause(err)
}

// ParseResponse parses a JSON response body into the target struct.
// Non-2xx statuses are mapped onto domain errors.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}

	return nil
}

// errorBody is the error payload of the auth service. Detail is either a
// message string or a list of field validation errors.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type fieldError struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	detail, fields := parseDetail(data)

	switch resp.StatusCode {
	case http.StatusUnprocessableEntity:
		if len(fields) > 0 {
			return domain.ErrValidationFailed.WithDetails(formatFieldErrors(fields))
		}
		return domain.ErrValidationFailed.WithDetails(orStatus(detail, resp))
	default:
		return domain.ErrAuthenticationFailed.WithDetails(orStatus(detail, resp))
	}
}

func parseDetail(data []byte) (string, []fieldError) {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return strings.TrimSpace(string(data)), nil
	}
	var msg string
	if err := json.Unmarshal(body.Detail, &msg); err == nil {
		return msg, nil
	}
	var fields []fieldError
	if err := json.Unmarshal(body.Detail, &fields); err == nil {
		return "", fields
	}
	return string(body.Detail), nil
}

func formatFieldErrors(fields []fieldError) string {
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		parts := make([]string, 0, len(f.Loc))
		for _, l := range f.Loc {
			parts = append(parts, fmt.Sprint(l))
		}
		msg := f.Msg
		if msg == "" {
			msg = "invalid value"
		}
		lines = append(lines, strings.Join(parts, " -> ")+": "+msg)
	}
	return strings.Join(lines, "; ")
}

func orStatus(detail string, resp *http.Response) string {
	if detail != "" {
		return fmt.Sprintf("%d: %s", resp.StatusCode, detail)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
