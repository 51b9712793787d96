// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/cortex-tui/internal/model"
)

// =============================================================================
// REQUEST / ERRORS
// =============================================================================

// Request is the JSON body of a chat stream request. History carries prior
// user/assistant turns only; agent traces and sources are never replayed.
type Request struct {
	Query     string                 `json:"query"`
	History   []model.HistoryMessage `json:"history"`
	ThreadID  *int64                 `json:"thread_id"`
	Model     string                 `json:"model"`
	ProSearch bool                   `json:"pro_search"`
}

// ErrAborted reports a stream torn down by its caller. It is never shown to
// the user.
var ErrAborted = errors.New("stream aborted")

// TransportError reports a connection that failed before delivering a single
// byte, after all retry attempts were exhausted.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("stream failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError reports a non-success HTTP response.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("backend returned %d", e.Code)
}

// =============================================================================
// DRIVER
// =============================================================================

const (
	defaultMaxAttempts    = 3
	defaultBackoffBase    = 500 * time.Millisecond
	defaultOverallTimeout = 5 * time.Minute
	defaultHeartbeat      = 10 * time.Second
	readBufferSize        = 4 * 1024
)

// Driver opens streaming chat connections against the Cortex backend.
//
// Retry policy: a connection that fails before delivering any byte is retried
// with exponential backoff, up to MaxAttempts. Once at least one byte has
// arrived, a later failure is treated as partial success - the stream
// resolves normally and the caller keeps whatever it received.
type Driver struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger

	maxAttempts    int
	backoffBase    time.Duration
	overallTimeout time.Duration

	// Heartbeat watches for stalled streams and logs staleness. It is
	// observability only: it never cancels the connection.
	heartbeat    time.Duration
	staleLogRate *rate.Limiter
}

// Option configures a Driver.
type Option func(*Driver)

// WithHTTPClient replaces the underlying HTTP client (used by tests).
func WithHTTPClient(c *http.Client) Option {
	return func(d *Driver) { d.client = c }
}

// WithLogger sets the destination for retry and staleness logs.
func WithLogger(l *log.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithMaxAttempts sets how many times a zero-byte failure is retried.
func WithMaxAttempts(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithBackoffBase sets the first retry delay; later delays double it.
func WithBackoffBase(base time.Duration) Option {
	return func(d *Driver) {
		if base > 0 {
			d.backoffBase = base
		}
	}
}

// WithOverallTimeout bounds one Stream call end to end, retries included.
func WithOverallTimeout(t time.Duration) Option {
	return func(d *Driver) {
		if t > 0 {
			d.overallTimeout = t
		}
	}
}

// WithHeartbeat sets the staleness check interval. Zero disables it.
func WithHeartbeat(interval time.Duration) Option {
	return func(d *Driver) { d.heartbeat = interval }
}

// New creates a Driver for the given backend base URL.
func New(baseURL string, opts ...Option) *Driver {
	d := &Driver{
		baseURL:        baseURL,
		client:         &http.Client{},
		logger:         log.Default(),
		maxAttempts:    defaultMaxAttempts,
		backoffBase:    defaultBackoffBase,
		overallTimeout: defaultOverallTimeout,
		heartbeat:      defaultHeartbeat,
		// At most one staleness line every 30s per driver.
		staleLogRate: rate.NewLimiter(rate.Every(30*time.Second), 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// =============================================================================
// STREAMING
// =============================================================================

// Stream POSTs req to the backend and delivers raw body chunks to onChunk as
// they arrive. It returns nil when the stream ended normally or with partial
// success, ErrAborted (wrapped) when ctx was canceled, and a TransportError
// when every attempt failed before a byte arrived.
func (d *Driver) Stream(ctx context.Context, req Request, onChunk func([]byte)) error {
	ctx, cancel := context.WithTimeout(ctx, d.overallTimeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		received, err := d.streamOnce(ctx, body, onChunk)
		if err == nil {
			return nil
		}
		// Caller cancellation is an abort regardless of how much arrived; the
		// caller owns the partial-commit decision.
		if errors.Is(ctx.Err(), context.Canceled) {
			return fmt.Errorf("%w: %v", ErrAborted, context.Cause(ctx))
		}
		if received > 0 {
			// RELIABILITY: partial success. The caller already has usable
			// data; surfacing a failure now would throw it away.
			d.logger.Printf("stream ended early after %d bytes (keeping partial): %v", received, err)
			return nil
		}
		if ctx.Err() != nil {
			// Overall deadline expired before any data arrived.
			return &TransportError{Attempts: attempt, Err: ctx.Err()}
		}

		lastErr = err
		if attempt < d.maxAttempts {
			delay := d.backoffBase << (attempt - 1)
			d.logger.Printf("stream attempt %d/%d failed, retrying in %v: %v",
				attempt, d.maxAttempts, delay, err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrAborted, context.Cause(ctx))
			}
		}
	}
	return &TransportError{Attempts: d.maxAttempts, Err: lastErr}
}

// streamOnce performs a single connection attempt and returns how many body
// bytes were delivered before it ended.
func (d *Driver) streamOnce(ctx context.Context, body []byte, onChunk func([]byte)) (int64, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, &StatusError{Code: resp.StatusCode, Detail: string(bytes.TrimSpace(detail))}
	}

	var lastChunk atomic.Int64
	lastChunk.Store(time.Now().UnixNano())
	if d.heartbeat > 0 {
		stopBeat := d.watchStaleness(ctx, &lastChunk)
		defer stopBeat()
	}

	var received int64
	buf := make([]byte, readBufferSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			received += int64(n)
			lastChunk.Store(time.Now().UnixNano())
			onChunk(buf[:n])
		}
		if err == io.EOF {
			return received, nil
		}
		if err != nil {
			return received, fmt.Errorf("read stream: %w", err)
		}
	}
}

// watchStaleness logs when no data has arrived for a heartbeat interval.
// Slow backends legitimately stall during agent search, so this observes and
// never cancels.
func (d *Driver) watchStaleness(ctx context.Context, lastChunk *atomic.Int64) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(d.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				idle := time.Since(time.Unix(0, lastChunk.Load()))
				if idle >= d.heartbeat && d.staleLogRate.Allow() {
					d.logger.Printf("stream stalled: no data for %v", idle.Round(time.Second))
				}
			}
		}
	}()
	return func() { close(done) }
}
