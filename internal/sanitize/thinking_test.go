// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMatchedBlock(t *testing.T) {
	res := Extract("before <think>reasoning here</think> after")

	assert.Equal(t, "before  after", res.Content)
	require.Len(t, res.Thinking, 1)
	assert.Equal(t, "reasoning here", res.Thinking[0])
}

func TestExtractMultipleBlocks(t *testing.T) {
	res := Extract("<think>first</think>answer<think>second</think>")

	assert.Equal(t, "answer", res.Content)
	assert.Equal(t, []string{"first", "second"}, res.Thinking)
}

func TestExtractMultilineBlock(t *testing.T) {
	res := Extract("x<think>line one\nline two</think>y")

	assert.Equal(t, "xy", res.Content)
	require.Len(t, res.Thinking, 1)
	assert.Equal(t, "line one\nline two", res.Thinking[0])
}

func TestExtractCaseInsensitive(t *testing.T) {
	res := Extract("a<THINK>loud</THINK>b<Think>mixed</tHiNk>c")

	assert.Equal(t, "abc", res.Content)
	assert.Equal(t, []string{"loud", "mixed"}, res.Thinking)
}

func TestExtractEmptyBlockDropped(t *testing.T) {
	res := Extract("a<think>   </think>b")

	assert.Equal(t, "ab", res.Content)
	assert.Empty(t, res.Thinking)
}

func TestExtractSelfClosing(t *testing.T) {
	res := Extract("a<think/>b")

	assert.Equal(t, "ab", res.Content)
	assert.Empty(t, res.Thinking)
}

func TestExtractUnterminatedOpenEscaped(t *testing.T) {
	res := Extract("answer so far <think>still reasoning")

	assert.Equal(t, "answer so far &lt;think>still reasoning", res.Content)
	assert.Empty(t, res.Thinking)
}

func TestExtractStrayCloserEscaped(t *testing.T) {
	res := Extract("oops</think> trailing")

	assert.Equal(t, "oops&lt;/think> trailing", res.Content)
	assert.Empty(t, res.Thinking)
}

func TestExtractTruncatedFragmentEscaped(t *testing.T) {
	// Chunk boundary cut the tag mid-word.
	res := Extract("partial <thin")

	assert.Equal(t, "partial <thin", res.Content,
		"an incomplete prefix shorter than the marker is left alone")

	res = Extract("partial <think")
	assert.Equal(t, "partial &lt;think", res.Content)
}

func TestExtractReassembledTagNeutralized(t *testing.T) {
	// Removing the inner block glues "<th" and "ink>" into a new tag; it must
	// not survive as live markup.
	res := Extract("<th<think>hidden</think>ink>visible")

	assert.Equal(t, "&lt;think>visible", res.Content)
	assert.Equal(t, []string{"hidden"}, res.Thinking)
}

func TestExtractIdempotent(t *testing.T) {
	inputs := []string{
		"plain text, no markers",
		"a<think>b</think>c",
		"unterminated <think>tail",
		"</think> stray",
		"<th<think>x</think>ink>y</think>z",
		"nested <think>outer <think>inner</think> rest</think> end",
	}
	for _, in := range inputs {
		first := Extract(in)
		second := Extract(first.Content)
		assert.Equal(t, first.Content, second.Content, "input %q", in)
		assert.Empty(t, second.Thinking, "input %q", in)
	}
}

func TestExtractStreamingGrowth(t *testing.T) {
	// A session re-sanitizes the whole raw text on every chunk. While the
	// block is open it is escaped; once closed it is extracted.
	raw := "Hello <think>hm"
	mid := Extract(raw)
	assert.Equal(t, "Hello &lt;think>hm", mid.Content)
	assert.Empty(t, mid.Thinking)

	raw += "m, ok</think> world"
	done := Extract(raw)
	assert.Equal(t, "Hello  world", done.Content)
	assert.Equal(t, []string{"hmm, ok"}, done.Thinking)
}

func TestExtractEmptyInput(t *testing.T) {
	res := Extract("")
	assert.Equal(t, "", res.Content)
	assert.Empty(t, res.Thinking)
}
