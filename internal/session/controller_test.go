// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/cortex-tui/internal/model"
	"github.com/jeranaias/cortex-tui/internal/protocol"
	"github.com/jeranaias/cortex-tui/internal/transport"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// wire renders event payloads as the backend's SSE framing.
func wire(payloads ...string) []byte {
	var b strings.Builder
	for _, p := range payloads {
		b.WriteString("data: ")
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	return []byte(b.String())
}

// scriptedStreamer replays fixed chunks, then returns err.
type scriptedStreamer struct {
	mu     sync.Mutex
	chunks [][]byte
	err    error
	reqs   []transport.Request
}

func (s *scriptedStreamer) Stream(ctx context.Context, req transport.Request, onChunk func([]byte)) error {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	for _, c := range s.chunks {
		onChunk(c)
	}
	return s.err
}

func (s *scriptedStreamer) requests() []transport.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transport.Request(nil), s.reqs...)
}

// blockingStreamer sends its chunks, signals, then waits for cancellation.
type blockingStreamer struct {
	chunks [][]byte
	sent   chan struct{}
}

func (s *blockingStreamer) Stream(ctx context.Context, req transport.Request, onChunk func([]byte)) error {
	for _, c := range s.chunks {
		onChunk(c)
	}
	close(s.sent)
	<-ctx.Done()
	return fmt.Errorf("%w: canceled", transport.ErrAborted)
}

func waitState(t *testing.T, done <-chan State) State {
	t.Helper()
	select {
	case s := <-done:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for terminal state")
		return StateIdle
	}
}

func newTestController(conv *model.ConversationLog, streamer Streamer, opts Options) (*Controller, chan State) {
	done := make(chan State, 4)
	prev := opts.OnTerminated
	opts.OnTerminated = func(s State) {
		if prev != nil {
			prev(s)
		}
		done <- s
	}
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	return NewController(conv, streamer, opts), done
}

func TestControllerHappyPath(t *testing.T) {
	conv := model.NewConversationLog()
	str := &scriptedStreamer{chunks: [][]byte{wire(
		`{"event":"begin-stream"}`,
		`{"event":"text-chunk","data":{"text":"Hel"}}`,
		`{"event":"text-chunk","data":{"text":"lo"}}`,
		`{"event":"stream-end","data":{"thread_id":42}}`,
	)}}

	var assigned []int64
	ctrl, done := newTestController(conv, str, Options{
		Model:            "sonar",
		OnThreadAssigned: func(id int64) { assigned = append(assigned, id) },
	})

	require.NoError(t, ctrl.Submit(context.Background(), "hello"))
	assert.Equal(t, StateFinalized, waitState(t, done))

	require.Equal(t, 2, conv.Len())
	assert.Equal(t, model.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "hello", conv.Messages[0].Content)
	assert.Equal(t, model.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, "Hello", conv.Messages[1].Content)

	require.NotNil(t, conv.ThreadID)
	assert.Equal(t, int64(42), *conv.ThreadID)
	assert.Equal(t, []int64{42}, assigned)
}

func TestControllerSnapshotPerEvent(t *testing.T) {
	conv := model.NewConversationLog()
	str := &scriptedStreamer{chunks: [][]byte{wire(
		`{"event":"begin-stream"}`,
		`{"event":"text-chunk","data":{"text":"a"}}`,
		`{"event":"text-chunk","data":{"text":"b"}}`,
		`{"event":"stream-end"}`,
	)}}

	var mu sync.Mutex
	var snapshots []string
	ctrl, done := newTestController(conv, str, Options{
		OnSnapshot: func(msg model.ChatMessage) {
			mu.Lock()
			snapshots = append(snapshots, msg.Content)
			mu.Unlock()
		},
	})

	require.NoError(t, ctrl.Submit(context.Background(), "q"))
	waitState(t, done)

	mu.Lock()
	defer mu.Unlock()
	// begin, two chunks, and the finalize snapshot.
	require.GreaterOrEqual(t, len(snapshots), 4)
	assert.Equal(t, "ab", snapshots[len(snapshots)-1])
}

func TestControllerRequestShape(t *testing.T) {
	conv := model.NewConversationLog()
	conv.Append(model.NewUserMessage("earlier question"))
	asst := model.NewAssistantMessage()
	asst.Content = "earlier answer"
	conv.Append(asst)
	conv.SetThreadID(7)

	str := &scriptedStreamer{chunks: [][]byte{wire(`{"event":"stream-end"}`)}}
	ctrl, done := newTestController(conv, str, Options{Model: "sonar-pro", ProSearch: true})

	require.NoError(t, ctrl.Submit(context.Background(), "follow-up"))
	waitState(t, done)

	reqs := str.requests()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, "follow-up", req.Query)
	assert.Equal(t, "sonar-pro", req.Model)
	assert.True(t, req.ProSearch)
	require.NotNil(t, req.ThreadID)
	assert.Equal(t, int64(7), *req.ThreadID)
	// Prior turns only; the new query is not in history.
	require.Len(t, req.History, 2)
	assert.Equal(t, "earlier question", req.History[0].Content)
	assert.Equal(t, "earlier answer", req.History[1].Content)
}

func TestControllerBackendError(t *testing.T) {
	conv := model.NewConversationLog()
	str := &scriptedStreamer{chunks: [][]byte{wire(
		`{"event":"begin-stream"}`,
		`{"event":"agent-query-plan","data":{"steps":["Plan","Search"]}}`,
		`{"event":"agent-search-queries","data":{"queries":["q1"],"step_number":0}}`,
		`{"event":"error","data":{"detail":"backend exploded"}}`,
	)}}

	ctrl, done := newTestController(conv, str, Options{})
	require.NoError(t, ctrl.Submit(context.Background(), "q"))
	assert.Equal(t, StateErrored, waitState(t, done))

	last, ok := conv.Last()
	require.True(t, ok)
	assert.True(t, last.IsErrorMessage)
	assert.Equal(t, "backend exploded", last.Content)
	// The partial agent trace stays visible on the error turn.
	require.NotNil(t, last.AgentResponse)
	require.Len(t, last.AgentResponse.StepsDetails, 2)
	assert.Equal(t, []string{"q1"}, last.AgentResponse.StepsDetails[0].Queries)
}

func TestControllerOllamaErrorRewritten(t *testing.T) {
	conv := model.NewConversationLog()
	str := &scriptedStreamer{chunks: [][]byte{wire(
		`{"event":"error","data":{"detail":"1 validation error for CompletionResponse"}}`,
	)}}

	ctrl, done := newTestController(conv, str, Options{Model: "llama3"})
	require.NoError(t, ctrl.Submit(context.Background(), "q"))
	assert.Equal(t, StateErrored, waitState(t, done))

	last, _ := conv.Last()
	assert.Contains(t, last.Content, "ollama pull llama3")
}

func TestControllerAbortCommitsVisiblePartial(t *testing.T) {
	conv := model.NewConversationLog()
	str := &blockingStreamer{
		sent: make(chan struct{}),
		chunks: [][]byte{wire(
			`{"event":"begin-stream"}`,
			`{"event":"text-chunk","data":{"text":"partial answer"}}`,
		)},
	}

	ctrl, done := newTestController(conv, str, Options{})
	require.NoError(t, ctrl.Submit(context.Background(), "q"))
	<-str.sent
	ctrl.Abort()

	assert.Equal(t, StateAborted, waitState(t, done))
	require.Equal(t, 2, conv.Len())
	last, _ := conv.Last()
	assert.Equal(t, "partial answer", last.Content)
	assert.False(t, last.IsErrorMessage, "an abort never surfaces an error")
}

func TestControllerAbortWithNothingPublished(t *testing.T) {
	conv := model.NewConversationLog()
	str := &blockingStreamer{sent: make(chan struct{})}

	ctrl, done := newTestController(conv, str, Options{})
	require.NoError(t, ctrl.Submit(context.Background(), "q"))
	<-str.sent
	ctrl.Abort()

	assert.Equal(t, StateAborted, waitState(t, done))
	// Only the optimistic user message remains.
	assert.Equal(t, 1, conv.Len())
}

func TestControllerSubmitSupersedesActiveTurn(t *testing.T) {
	conv := model.NewConversationLog()
	first := make(chan struct{})
	var calls int
	var mu sync.Mutex

	streamer := streamFunc(func(ctx context.Context, req transport.Request, onChunk func([]byte)) error {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			onChunk(wire(
				`{"event":"begin-stream"}`,
				`{"event":"text-chunk","data":{"text":"old partial"}}`,
			))
			close(first)
			<-ctx.Done()
			return fmt.Errorf("%w: superseded", transport.ErrAborted)
		}
		onChunk(wire(
			`{"event":"begin-stream"}`,
			`{"event":"text-chunk","data":{"text":"new answer"}}`,
			`{"event":"stream-end"}`,
		))
		return nil
	})

	ctrl, done := newTestController(conv, streamer, Options{})
	require.NoError(t, ctrl.Submit(context.Background(), "first"))
	<-first
	require.NoError(t, ctrl.Submit(context.Background(), "second"))

	assert.Equal(t, StateAborted, waitState(t, done))
	assert.Equal(t, StateFinalized, waitState(t, done))

	require.Equal(t, 4, conv.Len())
	assert.Equal(t, "first", conv.Messages[0].Content)
	assert.Equal(t, "old partial", conv.Messages[1].Content)
	assert.Equal(t, "second", conv.Messages[2].Content)
	assert.Equal(t, "new answer", conv.Messages[3].Content)
}

// streamFunc adapts a function to the Streamer interface.
type streamFunc func(ctx context.Context, req transport.Request, onChunk func([]byte)) error

func (f streamFunc) Stream(ctx context.Context, req transport.Request, onChunk func([]byte)) error {
	return f(ctx, req, onChunk)
}

func TestControllerStreamClosedWithoutEndCommitsPartial(t *testing.T) {
	conv := model.NewConversationLog()
	str := &scriptedStreamer{chunks: [][]byte{wire(
		`{"event":"begin-stream"}`,
		`{"event":"text-chunk","data":{"text":"cut short"}}`,
	)}}

	ctrl, done := newTestController(conv, str, Options{})
	require.NoError(t, ctrl.Submit(context.Background(), "q"))
	assert.Equal(t, StateFinalized, waitState(t, done))

	last, _ := conv.Last()
	assert.Equal(t, "cut short", last.Content)
	assert.False(t, last.IsErrorMessage)
	assert.Nil(t, conv.ThreadID)
}

func TestControllerTransportFailureSurfaces(t *testing.T) {
	conv := model.NewConversationLog()
	str := &scriptedStreamer{err: &transport.TransportError{Attempts: 3, Err: fmt.Errorf("refused")}}

	ctrl, done := newTestController(conv, str, Options{})
	require.NoError(t, ctrl.Submit(context.Background(), "q"))
	assert.Equal(t, StateErrored, waitState(t, done))

	last, _ := conv.Last()
	assert.True(t, last.IsErrorMessage)
	assert.Contains(t, last.Content, "3 attempts")
}

func TestControllerTimeoutSurfacesDistinctMessage(t *testing.T) {
	conv := model.NewConversationLog()
	str := &scriptedStreamer{err: &transport.TransportError{Attempts: 1, Err: context.DeadlineExceeded}}

	ctrl, done := newTestController(conv, str, Options{})
	require.NoError(t, ctrl.Submit(context.Background(), "q"))
	assert.Equal(t, StateErrored, waitState(t, done))

	last, _ := conv.Last()
	assert.True(t, last.IsErrorMessage)
	assert.Contains(t, last.Content, "timed out")
	assert.NotContains(t, last.Content, "attempts")
}

func TestControllerSkipsMalformedFrames(t *testing.T) {
	conv := model.NewConversationLog()
	str := &scriptedStreamer{chunks: [][]byte{wire(
		`{"event":"begin-stream"}`,
		`{"event":"nonsense"}`,
		`{not json`,
		`{"event":"text-chunk","data":{"text":"ok"}}`,
		`{"event":"stream-end"}`,
	)}}

	ctrl, done := newTestController(conv, str, Options{})
	require.NoError(t, ctrl.Submit(context.Background(), "q"))
	assert.Equal(t, StateFinalized, waitState(t, done))

	last, _ := conv.Last()
	assert.Equal(t, "ok", last.Content)
	assert.False(t, last.IsErrorMessage)
}

func TestControllerRecoveryPath(t *testing.T) {
	conv := model.NewConversationLog()
	str := &scriptedStreamer{chunks: [][]byte{wire(
		`{"response": "salvaged text"}`,
	)}}

	ctrl, done := newTestController(conv, str, Options{
		Recovery: protocol.RecoverResponseText,
	})
	require.NoError(t, ctrl.Submit(context.Background(), "q"))
	assert.Equal(t, StateFinalized, waitState(t, done))

	last, _ := conv.Last()
	assert.Equal(t, "salvaged text", last.Content)
	assert.False(t, last.IsErrorMessage)
}

func TestControllerAllFramesMalformedSurfacesError(t *testing.T) {
	conv := model.NewConversationLog()
	str := &scriptedStreamer{chunks: [][]byte{wire(
		`{garbage one`,
		`{garbage two`,
	)}}

	ctrl, done := newTestController(conv, str, Options{})
	require.NoError(t, ctrl.Submit(context.Background(), "q"))
	assert.Equal(t, StateErrored, waitState(t, done))

	last, _ := conv.Last()
	assert.True(t, last.IsErrorMessage)
}

func TestControllerEmptyQueryRejected(t *testing.T) {
	ctrl, _ := newTestController(model.NewConversationLog(), &scriptedStreamer{}, Options{})
	assert.Error(t, ctrl.Submit(context.Background(), "   "))
	assert.Equal(t, StateIdle, ctrl.State())
}
