// Package apiclient issues JSON and NDJSON requests against the backend under test.
//
// Error statuses are data, not errors: a response with status >= 400 is returned
// with its decoded body (or {"raw": body} when it is not JSON) so callers can
// report it and move on. Only transport failures and undecodable success bodies
// produce a Go error.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds every request, including reading the body.
const DefaultTimeout = 90 * time.Second

// Response is a decoded HTTP response. Payload holds the decoded JSON document
// for plain requests and a []any of chunks for streams.
type Response struct {
	Status  int
	Payload any
}

// Client talks to a single base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.With().Str("service", "apiclient").Logger()
	}
}

// New returns a client for baseURL whose requests time out after timeout.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the base URL requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PostJSON sends body as JSON and decodes a JSON response.
func (c *Client) PostJSON(ctx context.Context, path string, body any, headers http.Header) (Response, error) {
	return c.doJSON(ctx, http.MethodPost, path, body, headers)
}

// GetJSON decodes a JSON response.
func (c *Client) GetJSON(ctx context.Context, path string, headers http.Header) (Response, error) {
	return c.doJSON(ctx, http.MethodGet, path, nil, headers)
}

// DeleteJSON sends body as JSON with a DELETE and decodes a JSON response.
func (c *Client) DeleteJSON(ctx context.Context, path string, body any, headers http.Header) (Response, error) {
	return c.doJSON(ctx, http.MethodDelete, path, body, headers)
}

// PostStream sends body as JSON and decodes an NDJSON response into chunks.
func (c *Client) PostStream(ctx context.Context, path string, body any, headers http.Header) (Response, error) {
	status, data, err := c.do(ctx, http.MethodPost, path, body, headers)
	if err != nil {
		return Response{}, err
	}

	if status >= http.StatusBadRequest {
		return Response{Status: status, Payload: []any{decodeErrorBody(data)}}, nil
	}

	chunks, err := DecodeNDJSON(data)
	if err != nil {
		return Response{Status: status}, fmt.Errorf("failed to decode stream from %s: %w", path, err)
	}
	return Response{Status: status, Payload: chunks}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, headers http.Header) (Response, error) {
	status, data, err := c.do(ctx, method, path, body, headers)
	if err != nil {
		return Response{}, err
	}

	if status >= http.StatusBadRequest {
		return Response{Status: status, Payload: decodeErrorBody(data)}, nil
	}

	payload, err := decode(data)
	if err != nil {
		return Response{Status: status}, fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return Response{Status: status, Payload: payload}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers http.Header) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("request completed")

	return resp.StatusCode, data, nil
}

// DecodeNDJSON decodes every non-blank line of data as one JSON value.
func DecodeNDJSON(data []byte) ([]any, error) {
	chunks := []any{}
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		chunk, err := decode([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func decode(data []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var v any
	if err := decoder.Decode(&v); err != nil {
		return nil, err
	}
	if decoder.More() {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return v, nil
}

func decodeErrorBody(data []byte) any {
	if v, err := decode(data); err == nil {
		return v
	}
	return map[string]any{"raw": string(data)}
}
