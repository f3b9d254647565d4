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

	"ragapi/internal/service"
)

// Client talks to a running RAG API server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the HTTP client timeout. A client passed to
// WithHTTPClient is copied, not modified.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		hc := *client.httpClient
		hc.Timeout = d
		client.httpClient = &hc
	}
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8000").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Error is a non-2xx response from the server.
type Error struct {
	StatusCode int
	Detail     string
	Op         string
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Detail)
}

// IsNotFound reports whether err indicates a 404 response.
func IsNotFound(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// QueryOptions mirror the optional fields of a query request.
type QueryOptions struct {
	NResults      int
	IncludeScores bool
	UseBestOnly   bool
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	var out statusResponse
	return c.do(ctx, "Health", http.MethodGet, "/", nil, &out)
}

// Add stores text and returns the new document id.
func (c *Client) Add(ctx context.Context, text string, metadata map[string]any) (string, error) {
	body := map[string]any{"text": text}
	if len(metadata) > 0 {
		body["metadata"] = metadata
	}
	var out statusResponse
	if err := c.do(ctx, "Add", http.MethodPost, "/add", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Query asks a question against the knowledge base.
func (c *Client) Query(ctx context.Context, q string, opts QueryOptions) (*service.QueryResult, error) {
	n := opts.NResults
	if n == 0 {
		n = 1
	}
	body := map[string]any{
		"q":              q,
		"n_results":      n,
		"include_scores": opts.IncludeScores,
		"use_best_only":  opts.UseBestOnly,
	}
	var out service.QueryResult
	if err := c.do(ctx, "Query", http.MethodPost, "/query", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a document by id.
func (c *Client) Delete(ctx context.Context, id string) error {
	var out statusResponse
	return c.do(ctx, "Delete", http.MethodDelete, "/delete/"+url.PathEscape(id), nil, &out)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: do request: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Detail string `json:"detail"`
		}
		detail := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &errBody) == nil && errBody.Detail != "" {
			detail = errBody.Detail
		}
		return &Error{StatusCode: resp.StatusCode, Detail: detail, Op: op}
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}
