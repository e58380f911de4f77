package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUnavailable means the daemon could not be reached.
var ErrUnavailable = errors.New("daemon unavailable")

// Client talks to a running daemon's HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the daemon bound at bind. A wildcard bind
// host is dialed on loopback. httpClient may be nil.
func NewClient(bind, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: maxEventWait + 10*time.Second}
	}
	return &Client{
		baseURL: baseURL(bind),
		token:   strings.TrimSpace(token),
		http:    httpClient,
	}
}

func baseURL(bind string) string {
	bind = strings.TrimSpace(bind)
	if strings.HasPrefix(bind, "http://") || strings.HasPrefix(bind, "https://") {
		return strings.TrimRight(bind, "/")
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "http://" + bind
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Health checks that the daemon is up.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Queue returns the daemon's queue.
func (c *Client) Queue(ctx context.Context) (*QueueResponse, error) {
	var resp QueueResponse
	if err := c.do(ctx, http.MethodGet, "/api/queue", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Enqueue submits posts by id or URL.
func (c *Client) Enqueue(ctx context.Context, posts []string, force bool) (*EnqueueResponse, error) {
	var resp EnqueueResponse
	if err := c.do(ctx, http.MethodPost, "/api/queue", nil, EnqueueRequest{Posts: posts, Force: force}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events fetches progress events after since, long-polling when wait is set.
func (c *Client) Events(ctx context.Context, since uint64, wait bool) (*EventsResponse, error) {
	query := url.Values{}
	query.Set("since", strconv.FormatUint(since, 10))
	if wait {
		query.Set("wait", "true")
	}
	var resp EventsResponse
	if err := c.do(ctx, http.MethodGet, "/api/events", query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History lists finished downloads. status may be empty.
func (c *Client) History(ctx context.Context, limit int, status string) (*HistoryResponse, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if status = strings.TrimSpace(status); status != "" {
		query.Set("status", status)
	}
	var resp HistoryResponse
	if err := c.do(ctx, http.MethodGet, "/api/history", query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w at %s (is `fanboxed daemon run` running?): %w", ErrUnavailable, c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr errorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
