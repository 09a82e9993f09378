// Package client is an HTTP client for the convmem memory API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/strainwise/convmem/pkg/api/middleware"
	"github.com/strainwise/convmem/pkg/api/response"
)

// Client talks to one convmem server.
type Client struct {
	baseURL     *url.URL
	http        *http.Client
	opts        *Options
	retryPolicy *RetryPolicy
}

// Options contains client configuration options
type Options struct {
	// BaseURL is the server root, e.g. http://localhost:8080.
	BaseURL string

	// Timeout bounds each attempt.
	Timeout time.Duration

	// RetryPolicy governs retries of throttled or unavailable responses.
	RetryPolicy *RetryPolicy

	// HTTPClient overrides the transport. Timeout still applies per attempt.
	HTTPClient *http.Client

	// UserAgent is sent with every request.
	UserAgent string
}

// RetryPolicy defines retry behavior
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	RetryableStatuses []int
}

// DefaultOptions returns default client options
func DefaultOptions(baseURL string) *Options {
	return &Options{
		BaseURL:     baseURL,
		Timeout:     30 * time.Second,
		RetryPolicy: DefaultRetryPolicy(),
		UserAgent:   "convmem-client",
	}
}

// DefaultRetryPolicy returns default retry policy
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		RetryableStatuses: []int{
			http.StatusTooManyRequests,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// NewClient creates a client for opts.BaseURL.
func NewClient(opts *Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("options cannot be nil")
	}
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https, got %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:     base,
		http:        httpClient,
		opts:        opts,
		retryPolicy: opts.RetryPolicy,
	}, nil
}

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	RequestID  string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("convmem: %d %s: %s (request %s)", e.StatusCode, e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("convmem: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// endpoint builds an absolute URL from escaped path segments.
func (c *Client) endpoint(segments ...string) string {
	u := *c.baseURL
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u.RawPath = u.Path + "/" + strings.Join(escaped, "/")
	u.Path = u.Path + "/" + strings.Join(segments, "/")
	return u.String()
}

func userPath(userID string, rest ...string) []string {
	return append([]string{"api", "v1", "users", userID}, rest...)
}

// do sends one request with retries and decodes a JSON body into out when
// out is non-nil. It returns the final response headers.
func (c *Client) do(ctx context.Context, method string, segments []string, in, out any) (http.Header, error) {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}
	target := c.endpoint(segments...)

	return withRetry(c, ctx, func(ctx context.Context) (http.Header, error) {
		if c.opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
			defer cancel()
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := middleware.NewTracingRequest(ctx, method, target, body)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		if c.opts.UserAgent != "" {
			req.Header.Set("User-Agent", c.opts.UserAgent)
		}
		if id := middleware.GetRequestID(ctx); id != "" {
			req.Header.Set(middleware.RequestIDHeader, id)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return nil, decodeAPIError(resp)
		}
		if out != nil && resp.StatusCode != http.StatusNoContent {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return nil, fmt.Errorf("decode response: %w", err)
			}
		}
		return resp.Header, nil
	})
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Code:       response.ErrorCodeFromStatus(resp.StatusCode),
		Message:    http.StatusText(resp.StatusCode),
		RequestID:  resp.Header.Get(middleware.RequestIDHeader),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}

	var envelope response.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.Details = envelope.Error.Details
		if envelope.Error.RequestID != "" {
			apiErr.RequestID = envelope.Error.RequestID
		}
	}
	return apiErr
}
