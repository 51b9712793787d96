// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jeranaias/cortex-tui/internal/model"
	"github.com/jeranaias/cortex-tui/internal/protocol"
	"github.com/jeranaias/cortex-tui/internal/transport"
	"github.com/jeranaias/cortex-tui/internal/util"
)

// =============================================================================
// CONTROLLER STATE
// =============================================================================

// State is the lifecycle phase of the current (or last) streaming turn.
type State int

const (
	// StateIdle means no turn has been submitted yet.
	StateIdle State = iota
	// StateAwaitingBegin means a request is in flight but begin-stream has
	// not arrived.
	StateAwaitingBegin
	// StateStreaming means events are being applied to the accumulator.
	StateStreaming
	// StateFinalized means the turn completed normally and was committed.
	StateFinalized
	// StateErrored means the turn ended with a user-visible error message.
	StateErrored
	// StateAborted means the turn was torn down by the user. Never surfaced
	// as an error.
	StateAborted
)

// String returns a human-readable state name for logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingBegin:
		return "awaiting-begin"
	case StateStreaming:
		return "streaming"
	case StateFinalized:
		return "finalized"
	case StateErrored:
		return "errored"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Streamer opens one raw chat stream. Implemented by *transport.Driver;
// tests substitute scripted streams.
type Streamer interface {
	Stream(ctx context.Context, req transport.Request, onChunk func([]byte)) error
}

// Options configures a Controller.
type Options struct {
	// Model is the backend model identifier sent with each request.
	Model string
	// ProSearch enables the agent search trace.
	ProSearch bool
	// Recovery, when set, is tried on frames that fail normal parsing.
	Recovery protocol.RecoveryFunc
	// Logger defaults to log.Default().
	Logger *log.Logger

	// OnSnapshot receives a copy of the in-progress message after every
	// applied event.
	OnSnapshot func(model.ChatMessage)
	// OnTerminated fires once per turn with the terminal state.
	OnTerminated func(State)
	// OnThreadAssigned fires when the log first receives a server thread id,
	// signalling the history sidebar to refresh.
	OnThreadAssigned func(int64)
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller drives one conversation view: it owns the conversation log,
// runs at most one streaming turn at a time, and publishes snapshots to the
// rendering layer.
//
// Submitting while a turn is active aborts the previous turn first; a partial
// answer that was already visible is committed to the log rather than
// retracted.
type Controller struct {
	mu sync.Mutex

	log      *model.ConversationLog
	streamer Streamer
	opts     Options
	logger   *log.Logger

	state   State
	sess    *Session
	decoder *protocol.FrameDecoder
	cancel  context.CancelFunc

	// generation guards against a superseded stream's goroutine mutating the
	// turn that replaced it.
	generation uint64
	streamID   string

	framesParsed int
	framesFailed int
}

// NewController creates a controller over the given conversation log.
func NewController(conv *model.ConversationLog, streamer Streamer, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		log:      conv,
		streamer: streamer,
		opts:     opts,
		logger:   logger,
		state:    StateIdle,
	}
}

// Log returns the conversation log the controller appends to.
func (c *Controller) Log() *model.ConversationLog {
	return c.log
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Streaming reports whether a turn is currently in flight.
func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateAwaitingBegin || c.state == StateStreaming
}

// SetModel changes the model used for subsequent turns.
func (c *Controller) SetModel(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Model = name
}

// Model returns the model used for subsequent turns.
func (c *Controller) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.Model
}

// SetProSearch toggles the agent search trace for subsequent turns.
func (c *Controller) SetProSearch(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.ProSearch = on
}

// ProSearch reports whether the agent search trace is enabled.
func (c *Controller) ProSearch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.ProSearch
}

// Snapshot returns a copy of the in-progress assistant message, if any.
func (c *Controller) Snapshot() (model.ChatMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || (c.state != StateAwaitingBegin && c.state != StateStreaming) {
		return model.ChatMessage{}, false
	}
	return c.sess.Snapshot(), true
}

// =============================================================================
// SUBMIT / ABORT
// =============================================================================

// Submit starts a new streaming turn for query. The user message is appended
// to the log immediately (optimistic), before any response arrives. An active
// turn is aborted first; its visible partial answer is committed.
func (c *Controller) Submit(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return errors.New("empty query")
	}

	c.mu.Lock()
	var after []func()
	if c.state == StateAwaitingBegin || c.state == StateStreaming {
		after = c.abortLocked()
	}

	c.generation++
	gen := c.generation
	c.streamID = uuid.NewString()
	c.sess = New()
	c.decoder = protocol.NewFrameDecoder()
	c.framesParsed = 0
	c.framesFailed = 0
	c.state = StateAwaitingBegin

	// History is the prior turns only; the new query travels in its own
	// field, so build it before the optimistic append.
	req := transport.Request{
		Query:     query,
		History:   c.log.History(),
		ThreadID:  c.log.ThreadID,
		Model:     c.opts.Model,
		ProSearch: c.opts.ProSearch,
	}
	c.log.Append(model.NewUserMessage(query))

	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.logger.Printf("[%s] submit query (%d history turns, pro_search=%t)",
		shortID(c.streamID), len(req.History), req.ProSearch)
	c.mu.Unlock()

	for _, fn := range after {
		fn()
	}

	go c.run(streamCtx, gen, req)
	return nil
}

// Abort tears down the active turn, if any. The stream goroutine settles the
// session once the cancellation propagates.
func (c *Controller) Abort() {
	c.mu.Lock()
	cancel := c.cancel
	active := c.state == StateAwaitingBegin || c.state == StateStreaming
	c.mu.Unlock()
	if active && cancel != nil {
		cancel()
	}
}

// =============================================================================
// STREAM GOROUTINE
// =============================================================================

func (c *Controller) run(ctx context.Context, gen uint64, req transport.Request) {
	err := c.streamer.Stream(ctx, req, func(chunk []byte) {
		c.handleChunk(gen, chunk)
	})
	c.settle(gen, err)
}

// handleChunk decodes one raw chunk and applies every completed frame.
// Callbacks collected under the lock run after it is released.
func (c *Controller) handleChunk(gen uint64, chunk []byte) {
	c.mu.Lock()
	if gen != c.generation || c.terminalLocked() {
		c.mu.Unlock()
		return
	}
	var after []func()
	for _, frame := range c.decoder.Feed(chunk) {
		after = append(after, c.applyFrameLocked(frame)...)
		if c.terminalLocked() {
			break
		}
	}
	c.mu.Unlock()

	for _, fn := range after {
		fn()
	}
}

// settle resolves the turn once the transport returns. It flushes any final
// unterminated frame, then maps the transport outcome to a terminal state if
// no terminal event already did.
func (c *Controller) settle(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.generation || c.terminalLocked() {
		c.mu.Unlock()
		return
	}

	var after []func()
	for _, frame := range c.decoder.Close() {
		after = append(after, c.applyFrameLocked(frame)...)
		if c.terminalLocked() {
			break
		}
	}

	if !c.terminalLocked() {
		switch {
		case err == nil:
			// Stream closed without stream-end: commit what arrived.
			c.logger.Printf("[%s] stream closed without end event, committing partial",
				shortID(c.streamID))
			after = append(after, c.finalizeLocked(nil)...)

		case errors.Is(err, transport.ErrAborted):
			after = append(after, c.abortLocked()...)

		default:
			c.logger.Printf("[%s] stream failed: %v", shortID(c.streamID), err)
			after = append(after, c.errorLocked(userFacingError(err))...)
		}
	}
	c.mu.Unlock()

	for _, fn := range after {
		fn()
	}
}

// =============================================================================
// EVENT APPLICATION (all hold c.mu)
// =============================================================================

// applyFrameLocked parses and applies one frame payload, returning callbacks
// to invoke after the lock is released.
func (c *Controller) applyFrameLocked(frame []byte) []func() {
	ev, err := protocol.ParseEvent(frame)
	if err != nil {
		c.framesFailed++
		c.logger.Printf("[%s] skipping frame: %v", shortID(c.streamID), err)
		if c.opts.Recovery != nil {
			if text, ok := c.opts.Recovery(frame); ok {
				c.logger.Printf("[%s] recovered %d chars from malformed frame",
					shortID(c.streamID), len(text))
				c.state = StateStreaming
				c.sess.AppendText(text)
				return c.publishLocked()
			}
		}
		return nil
	}
	c.framesParsed++

	switch e := ev.(type) {
	case protocol.StreamEndEvent:
		return c.finalizeLocked(e.ThreadID)
	case protocol.ErrorEvent:
		return c.errorLocked(rewriteErrorDetail(e.Detail, c.opts.Model))
	default:
		c.state = StateStreaming
		c.sess.Apply(ev)
		return c.publishLocked()
	}
}

// finalizeLocked commits the accumulated turn and enters StateFinalized.
func (c *Controller) finalizeLocked(threadID *int64) []func() {
	final := c.sess.Finalize()

	// A stream where every frame was malformed and nothing was recovered
	// still owes the user an explanation.
	if final.IsEmpty() && c.framesFailed > 0 {
		return c.errorLocked("The backend response could not be decoded.")
	}

	if !final.IsEmpty() {
		c.log.Append(final)
	}
	c.state = StateFinalized
	c.cancel = nil
	c.logger.Printf("[%s] finalized (%d frames, %d skipped)",
		shortID(c.streamID), c.framesParsed, c.framesFailed)

	var firstAssignment bool
	var tid int64
	if threadID != nil {
		tid = *threadID
		firstAssignment = c.log.SetThreadID(tid)
	}

	after := c.notifySnapshotLocked(final)
	if firstAssignment && c.opts.OnThreadAssigned != nil {
		fn := c.opts.OnThreadAssigned
		after = append(after, func() { fn(tid) })
	}
	return append(after, c.notifyTerminatedLocked(StateFinalized)...)
}

// errorLocked synthesizes the error turn and enters StateErrored. The
// partial agent trace rides along on the error message.
func (c *Controller) errorLocked(detail string) []func() {
	turn := c.sess.ErrorTurn(detail)
	c.log.Append(turn)
	c.state = StateErrored
	c.cancel = nil
	c.logger.Printf("[%s] errored: %s", shortID(c.streamID),
		util.TruncateRunes(util.OneLine(detail), 120))

	after := c.notifySnapshotLocked(turn)
	return append(after, c.notifyTerminatedLocked(StateErrored)...)
}

// abortLocked settles an aborted turn: a partial answer that was already
// visible is committed, and no error is ever surfaced.
func (c *Controller) abortLocked() []func() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	var after []func()
	if c.sess != nil && c.sess.HasContent() {
		partial := c.sess.Finalize()
		c.log.Append(partial)
		after = c.notifySnapshotLocked(partial)
	}
	c.state = StateAborted
	c.logger.Printf("[%s] aborted", shortID(c.streamID))
	return append(after, c.notifyTerminatedLocked(StateAborted)...)
}

func (c *Controller) publishLocked() []func() {
	if c.opts.OnSnapshot == nil {
		return nil
	}
	return c.notifySnapshotLocked(c.sess.Snapshot())
}

func (c *Controller) notifySnapshotLocked(msg model.ChatMessage) []func() {
	if c.opts.OnSnapshot == nil {
		return nil
	}
	fn := c.opts.OnSnapshot
	return []func(){func() { fn(msg) }}
}

func (c *Controller) notifyTerminatedLocked(s State) []func() {
	if c.opts.OnTerminated == nil {
		return nil
	}
	fn := c.opts.OnTerminated
	return []func(){func() { fn(s) }}
}

func (c *Controller) terminalLocked() bool {
	return c.state == StateFinalized || c.state == StateErrored || c.state == StateAborted
}

// =============================================================================
// ERROR PRESENTATION
// =============================================================================

// ollamaSignatures are substrings of backend error details that indicate a
// local-model serving failure rather than a genuine protocol problem.
var ollamaSignatures = []string{
	"CompletionResponse",
	"LLMCompletionEndEvent",
	"validation error",
}

// rewriteErrorDetail swaps known local-model failure signatures for an
// actionable message. Presentation only; unrecognized details pass through.
func rewriteErrorDetail(detail, modelName string) string {
	for _, sig := range ollamaSignatures {
		if strings.Contains(detail, sig) {
			return fmt.Sprintf(
				"The local model backend returned an invalid response. "+
					"If the model is missing, install it with: ollama pull %s",
				modelName)
		}
	}
	return detail
}

// userFacingError renders a transport failure for display.
func userFacingError(err error) string {
	var te *transport.TransportError
	if errors.As(err, &te) {
		if errors.Is(err, context.DeadlineExceeded) {
			return "The request to the Cortex backend timed out before any response arrived."
		}
		return fmt.Sprintf("Could not reach the Cortex backend after %d attempts. "+
			"Check that the server is running.", te.Attempts)
	}
	var se *transport.StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("The Cortex backend rejected the request (%d).", se.Code)
	}
	return fmt.Sprintf("The stream failed: %v", err)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
