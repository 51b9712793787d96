// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeranaias/cortex-tui/internal/model"
)

// =============================================================================
// EVENT KINDS
// =============================================================================

// EventKind identifies one of the backend's stream event types. The values
// are the exact wire tokens carried in each frame's "event" field.
type EventKind string

const (
	KindBeginStream        EventKind = "begin-stream"
	KindSearchResults      EventKind = "search-results"
	KindTextChunk          EventKind = "text-chunk"
	KindRelatedQueries     EventKind = "related-queries"
	KindAgentQueryPlan     EventKind = "agent-query-plan"
	KindAgentSearchQueries EventKind = "agent-search-queries"
	KindAgentReadResults   EventKind = "agent-read-results"
	KindAgentFinish        EventKind = "agent-finish"
	KindStreamEnd          EventKind = "stream-end"
	KindError              EventKind = "error"
)

// ErrUnknownEvent is wrapped by the DecodeError returned for a frame whose
// "event" token is not one of the kinds above.
var ErrUnknownEvent = errors.New("unknown event kind")

// =============================================================================
// TYPED EVENTS
// =============================================================================

// Event is one parsed stream event. The concrete type carries the payload;
// consumers switch on it (or on Kind) to apply the event.
type Event interface {
	Kind() EventKind
}

// BeginStreamEvent opens a streaming turn. It carries no payload.
type BeginStreamEvent struct{}

// SearchResultsEvent replaces the turn's sources and images wholesale.
type SearchResultsEvent struct {
	Results []model.SearchResult
	Images  []string
}

// TextChunkEvent appends a fragment of answer text.
type TextChunkEvent struct {
	Text string
}

// RelatedQueriesEvent replaces the follow-up question list wholesale.
type RelatedQueriesEvent struct {
	RelatedQueries []string
}

// AgentQueryPlanEvent announces the pro-search step plan.
type AgentQueryPlanEvent struct {
	Steps []string
}

// AgentSearchQueriesEvent attaches search queries to one plan step and marks
// it current.
type AgentSearchQueriesEvent struct {
	Queries    []string
	StepNumber int
}

// AgentReadResultsEvent attaches read results to one plan step.
type AgentReadResultsEvent struct {
	Results    []model.SearchResult
	StepNumber int
}

// AgentFinishEvent marks every plan step done.
type AgentFinishEvent struct{}

// StreamEndEvent terminates the stream normally. ThreadID is nil when the
// backend did not assign or echo a thread identifier.
type StreamEndEvent struct {
	ThreadID *int64
}

// ErrorEvent terminates the stream with a backend-reported failure.
type ErrorEvent struct {
	Detail string
}

func (BeginStreamEvent) Kind() EventKind        { return KindBeginStream }
func (SearchResultsEvent) Kind() EventKind      { return KindSearchResults }
func (TextChunkEvent) Kind() EventKind          { return KindTextChunk }
func (RelatedQueriesEvent) Kind() EventKind     { return KindRelatedQueries }
func (AgentQueryPlanEvent) Kind() EventKind     { return KindAgentQueryPlan }
func (AgentSearchQueriesEvent) Kind() EventKind { return KindAgentSearchQueries }
func (AgentReadResultsEvent) Kind() EventKind   { return KindAgentReadResults }
func (AgentFinishEvent) Kind() EventKind        { return KindAgentFinish }
func (StreamEndEvent) Kind() EventKind          { return KindStreamEnd }
func (ErrorEvent) Kind() EventKind              { return KindError }

// =============================================================================
// DECODE ERROR
// =============================================================================

// DecodeError reports a single frame that could not be parsed. It is local to
// that frame: the caller logs it and keeps decoding subsequent frames.
type DecodeError struct {
	Raw string // the offending frame payload, for logging
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// =============================================================================
// PARSING
// =============================================================================

// envelope is the outer wire shape of every frame.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type searchResultsData struct {
	Results []model.SearchResult `json:"results"`
	Images  []string             `json:"images"`
}

type textChunkData struct {
	Text string `json:"text"`
}

type relatedQueriesData struct {
	RelatedQueries []string `json:"related_queries"`
}

type agentQueryPlanData struct {
	Steps []string `json:"steps"`
}

type agentSearchQueriesData struct {
	Queries    []string `json:"queries"`
	StepNumber int      `json:"step_number"`
}

type agentReadResultsData struct {
	Results    []model.SearchResult `json:"results"`
	StepNumber int                  `json:"step_number"`
}

type streamEndData struct {
	ThreadID *int64 `json:"thread_id"`
}

type errorData struct {
	Detail string `json:"detail"`
}

// ParseEvent parses one decoded frame payload into a typed Event.
//
// A nil event plus *DecodeError means this one frame is bad; the stream
// itself is still healthy and the caller should log and continue.
func ParseEvent(payload []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &DecodeError{Raw: string(payload), Err: err}
	}

	switch EventKind(env.Event) {
	case KindBeginStream:
		return BeginStreamEvent{}, nil

	case KindSearchResults:
		var d searchResultsData
		if err := unmarshalData(env.Data, &d); err != nil {
			return nil, &DecodeError{Raw: string(payload), Err: err}
		}
		return SearchResultsEvent{Results: d.Results, Images: d.Images}, nil

	case KindTextChunk:
		var d textChunkData
		if err := unmarshalData(env.Data, &d); err != nil {
			return nil, &DecodeError{Raw: string(payload), Err: err}
		}
		return TextChunkEvent{Text: d.Text}, nil

	case KindRelatedQueries:
		var d relatedQueriesData
		if err := unmarshalData(env.Data, &d); err != nil {
			return nil, &DecodeError{Raw: string(payload), Err: err}
		}
		return RelatedQueriesEvent{RelatedQueries: d.RelatedQueries}, nil

	case KindAgentQueryPlan:
		var d agentQueryPlanData
		if err := unmarshalData(env.Data, &d); err != nil {
			return nil, &DecodeError{Raw: string(payload), Err: err}
		}
		return AgentQueryPlanEvent{Steps: d.Steps}, nil

	case KindAgentSearchQueries:
		var d agentSearchQueriesData
		if err := unmarshalData(env.Data, &d); err != nil {
			return nil, &DecodeError{Raw: string(payload), Err: err}
		}
		return AgentSearchQueriesEvent{Queries: d.Queries, StepNumber: d.StepNumber}, nil

	case KindAgentReadResults:
		var d agentReadResultsData
		if err := unmarshalData(env.Data, &d); err != nil {
			return nil, &DecodeError{Raw: string(payload), Err: err}
		}
		return AgentReadResultsEvent{Results: d.Results, StepNumber: d.StepNumber}, nil

	case KindAgentFinish:
		return AgentFinishEvent{}, nil

	case KindStreamEnd:
		var d streamEndData
		if err := unmarshalData(env.Data, &d); err != nil {
			return nil, &DecodeError{Raw: string(payload), Err: err}
		}
		return StreamEndEvent{ThreadID: d.ThreadID}, nil

	case KindError:
		var d errorData
		if err := unmarshalData(env.Data, &d); err != nil {
			return nil, &DecodeError{Raw: string(payload), Err: err}
		}
		return ErrorEvent{Detail: d.Detail}, nil

	default:
		return nil, &DecodeError{
			Raw: string(payload),
			Err: fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event),
		}
	}
}

// unmarshalData decodes a frame's data section, tolerating an absent one.
// Some backends omit "data" entirely for payload-free kinds.
func unmarshalData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
