// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"encoding/json"
	"regexp"
	"strings"
)

// =============================================================================
// MALFORMED-FRAME RECOVERY
// =============================================================================

// RecoveryFunc tries to salvage displayable answer text from a frame that
// failed normal parsing. It reports ok=false when nothing usable was found.
//
// Recovery only runs on the DecodeError path, after ParseEvent has rejected
// the frame. It never sees well-formed frames, so it cannot mask a genuine
// protocol error.
type RecoveryFunc func(raw []byte) (text string, ok bool)

var responseFieldPattern = regexp.MustCompile(`"response"\s*:\s*"([^"]+)"`)

// RecoverResponseText extracts the "response" field that some local-model
// backends emit in frames that are otherwise corrupt (stray control bytes,
// truncated envelopes). It first retries strict JSON on the cleaned bytes,
// then falls back to lifting the field textually.
func RecoverResponseText(raw []byte) (string, bool) {
	cleaned := stripNonPrintable(raw)
	if cleaned == "" {
		return "", false
	}

	var body struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal([]byte(cleaned), &body); err == nil {
		if text := strings.TrimSpace(body.Response); text != "" {
			return text, true
		}
	}

	if m := responseFieldPattern.FindStringSubmatch(cleaned); m != nil {
		if text := strings.TrimSpace(m[1]); text != "" {
			return text, true
		}
	}
	return "", false
}

// stripNonPrintable drops control bytes that corrupt vendor frames, keeping
// tabs and newlines.
func stripNonPrintable(raw []byte) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, c := range string(raw) {
		if c == '\t' || c == '\n' || c >= 0x20 {
			b.WriteRune(c)
		}
	}
	return b.String()
}
