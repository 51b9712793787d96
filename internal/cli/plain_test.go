// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/cortex-tui/internal/model"
)

func TestPrintAttachments(t *testing.T) {
	var buf bytes.Buffer
	l := &plainLoop{out: &buf, showThinking: true}

	msg := model.NewAssistantMessage()
	msg.ThinkingContent = []string{"reasoning"}
	msg.Sources = []model.SearchResult{{Title: "Example", URL: "https://example.test"}}
	msg.Images = []string{"https://img.example/a.png"}
	msg.RelatedQueries = []string{"follow up"}

	l.printAttachments(msg)

	out := buf.String()
	assert.Contains(t, out, "[thinking]")
	assert.Contains(t, out, "reasoning")
	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "https://example.test")
	assert.Contains(t, out, "Images:")
	assert.Contains(t, out, "https://img.example/a.png")
	assert.Contains(t, out, "Related:")
	assert.Contains(t, out, "follow up")
}
