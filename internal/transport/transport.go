// Package transport performs the raw byte fetches used for the content API
// and asset hosts. A failed fetch carries no structured cause of its own;
// callers supply the user-facing message that the resulting
// *services.TransportError reports.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fanboxed/internal/logging"
	"fanboxed/internal/services"
)

// DefaultMaxBytes caps a single response body.
const DefaultMaxBytes int64 = 1 << 30

// errorBodyLimit caps how much of a non-2xx body is kept for the caller.
const errorBodyLimit = 4096

// Request describes a single GET.
type Request struct {
	URL     string
	Headers http.Header
	// FailureMessage is reported verbatim when the fetch fails.
	FailureMessage string
}

// Getter fetches a URL and returns the full response body.
type Getter interface {
	Get(ctx context.Context, req Request) ([]byte, error)
}

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
	Logger    *slog.Logger
}

// Client is a Getter backed by net/http.
type Client struct {
	http      *http.Client
	userAgent string
	maxBytes  int64
	logger    *slog.Logger
}

// New constructs a Client. A nil httpClient uses a dedicated client with the
// configured timeout.
func New(httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Client{
		http:      httpClient,
		userAgent: strings.TrimSpace(opts.UserAgent),
		maxBytes:  maxBytes,
		logger:    logging.NewComponentLogger(opts.Logger, "transport"),
	}
}

// Get performs the request and returns the body. Non-2xx responses count as
// failures; the returned *services.TransportError keeps their status and the
// head of their body.
func (c *Client) Get(ctx context.Context, req Request) ([]byte, error) {
	started := time.Now()
	body, status, err := c.get(ctx, req)
	log := logging.WithContext(ctx, c.logger)
	if err != nil {
		log.Debug("fetch failed",
			logging.String("url", req.URL),
			logging.Int("status", status),
			logging.Error(err),
		)
		te := &services.TransportError{URL: req.URL, Message: req.FailureMessage, Err: err}
		if status >= 300 {
			te.Status = status
			te.Body = body
		}
		return nil, te
	}
	log.Debug("fetch complete",
		logging.String("url", req.URL),
		logging.Int("bytes", len(body)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return body, nil
}

func (c *Client) get(ctx context.Context, req Request) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if c.userAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		head, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return head, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, resp.StatusCode, errors.New("response exceeds size limit")
	}
	return data, resp.StatusCode, nil
}
