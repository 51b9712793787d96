// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jeranaias/cortex-tui/internal/model"
)

// =============================================================================
// CLIENT
// =============================================================================

const (
	defaultTimeout     = 15 * time.Second
	defaultMaxAttempts = 3
	defaultBackoffBase = 250 * time.Millisecond
)

// Client fetches persisted conversation threads from the Cortex backend.
// These are one-shot JSON endpoints, separate from the streaming path.
// Connection failures and 5xx responses retry with exponential backoff;
// client errors (4xx) do not.
type Client struct {
	baseURL     string
	client      *http.Client
	maxAttempts int
	backoffBase time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (used by tests).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// WithBackoffBase sets the first retry delay.
func WithBackoffBase(d time.Duration) Option {
	return func(cl *Client) { cl.backoffBase = d }
}

// NewClient creates a history client for the given backend base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	cl := &Client{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: defaultTimeout},
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// =============================================================================
// WIRE SHAPES
// =============================================================================

// ThreadResponse is one fully hydrated thread.
type ThreadResponse struct {
	ThreadID int64               `json:"thread_id"`
	Messages []model.ChatMessage `json:"messages"`
}

type historyResponse struct {
	Snapshots []model.ChatSnapshot `json:"snapshots"`
}

// =============================================================================
// FETCHING
// =============================================================================

// FetchThread loads an existing thread by id, used to hydrate a conversation
// log when the user opens it from the sidebar.
func (c *Client) FetchThread(ctx context.Context, id int64) (*ThreadResponse, error) {
	var thread ThreadResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/thread/%d", c.baseURL, id), &thread); err != nil {
		return nil, fmt.Errorf("fetch thread %d: %w", id, err)
	}
	return &thread, nil
}

// FetchHistory lists the snapshots shown in the history sidebar, newest
// first (server order is preserved).
func (c *Client) FetchHistory(ctx context.Context) ([]model.ChatSnapshot, error) {
	var hist historyResponse
	if err := c.getJSON(ctx, c.baseURL+"/history", &hist); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return hist.Snapshots, nil
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := c.backoffBase << (attempt - 2)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		retryable, err := c.getJSONOnce(ctx, url, v)
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (c *Client) getJSONOnce(ctx context.Context, url string, v any) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode >= 500, fmt.Errorf("backend returned %d", resp.StatusCode)
	}
	return false, json.NewDecoder(resp.Body).Decode(v)
}
