// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sanitize separates model "thinking" blocks from answer text.
//
// Some backend models (DeepSeek in particular) emit reasoning inline, wrapped
// in <think>...</think> markers. The visible answer must not contain those
// blocks, but they are not thrown away either: extracted blocks are kept so
// the UI can surface them behind a disclosure toggle. Marker fragments that
// cannot be matched - truncated tags, stray closers, adversarial nesting -
// are HTML-escaped so they can never be misread as markup downstream.
package sanitize

import (
	"regexp"
	"strings"
)

// =============================================================================
// MARKER PATTERNS
// =============================================================================

var (
	// A fully matched thinking block, case-insensitive, spanning newlines.
	blockPattern = regexp.MustCompile(`(?is)<think\b[^>]*>(.*?)</think\b[^>]*>`)

	// Self-closing form: <think/>.
	selfClosePattern = regexp.MustCompile(`(?i)<think\b[^>]*/>`)

	// Any leftover marker fragment, complete or truncated. Matching just the
	// opening "<" run means even a chunk cut mid-tag gets neutralized.
	fragmentPattern = regexp.MustCompile(`(?i)</?think`)
)

// =============================================================================
// RESULT TYPE
// =============================================================================

// Result holds the visible text and the extracted thinking blocks.
type Result struct {
	Content  string
	Thinking []string
}

// =============================================================================
// EXTRACTION
// =============================================================================

// Extract splits text into visible content and thinking blocks.
//
// Idempotent: Extract(Extract(x).Content) returns the content unchanged with
// no further thinking blocks, because every marker that survives a pass has
// had its "<" escaped and can no longer match.
//
// Callers that sanitize a growing stream should re-run Extract over the whole
// raw accumulated text on each chunk: a block split across chunk boundaries
// is neutralized while open and extracted once its closing marker arrives.
func Extract(text string) Result {
	if text == "" {
		return Result{Content: ""}
	}

	var thinking []string

	// Pull out every matched block.
	content := blockPattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := blockPattern.FindStringSubmatch(match)
		if len(sub) > 1 {
			if inner := strings.TrimSpace(sub[1]); inner != "" {
				thinking = append(thinking, inner)
			}
		}
		return ""
	})

	// Self-closing markers carry no content.
	content = selfClosePattern.ReplaceAllString(content, "")

	// Neutralize whatever marker text remains, including fragments formed by
	// the removals above (e.g. "<th" + block + "ink>" reassembling a tag).
	content = fragmentPattern.ReplaceAllStringFunc(content, func(match string) string {
		return "&lt;" + match[1:]
	})

	return Result{Content: content, Thinking: thinking}
}
