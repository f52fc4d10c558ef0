package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a thin HTTP client for the daemon API, used by CLI commands.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the daemon listening at bind (host:port).
func NewClient(bind string) *Client {
	base := strings.TrimSpace(bind)
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		// Exports block until the pipeline settles, so the client timeout has
		// to outlast both artifact wait budgets.
		http: &http.Client{Timeout: 15 * time.Minute},
	}
}

// Health fetches the daemon health snapshot.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.get(ctx, "/api/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueueStatus fetches the backlog summary.
func (c *Client) QueueStatus(ctx context.Context) (*QueueStatusResponse, error) {
	var out QueueStatusResponse
	if err := c.get(ctx, "/api/queue-status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Export submits one pattern and blocks until the pipeline settles.
func (c *Client) Export(ctx context.Context, req ExportRequest) (*ExportResponse, error) {
	var out ExportResponse
	if err := c.post(ctx, "/api/export-mockup", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportBatch submits multiple patterns for sequential export.
func (c *Client) ExportBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	var out BatchResponse
	if err := c.post(ctx, "/api/export-batch", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueueList fetches persisted export jobs, optionally filtered by status.
func (c *Client) QueueList(ctx context.Context, statuses ...string) (*QueueListResponse, error) {
	path := "/api/queue"
	if len(statuses) > 0 {
		path += "?status=" + strings.Join(statuses, "&status=")
	}
	var out QueueListResponse
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueueClear removes settled jobs from the queue database.
func (c *Client) QueueClear(ctx context.Context) (*QueueClearResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/queue", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	var out QueueClearResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (%s)", apiErr.Error, resp.Status)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
