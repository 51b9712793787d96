// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the plain (non-TUI) chat mode.
//
// USABILITY: Markdown rendering and input history for a readline-style
// experience in dumb terminals, pipes, and SSH sessions where the full TUI
// is unavailable or unwanted.
//
// Commands:
//
//	/pro          Toggle pro search (agent trace)
//	/think        Toggle thinking block display
//	/quit, /q     Exit
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"

	"github.com/jeranaias/cortex-tui/internal/config"
	"github.com/jeranaias/cortex-tui/internal/model"
	"github.com/jeranaias/cortex-tui/internal/session"
)

// =============================================================================
// INPUT HANDLING
// =============================================================================

// lineReader wraps liner with persistent input history.
type lineReader struct {
	line        *liner.State
	historyFile string
}

func newLineReader() *lineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	historyFile := ""
	if dir, err := config.ConfigDir(); err == nil {
		os.MkdirAll(dir, 0755)
		historyFile = filepath.Join(dir, "chat_history")
		if f, err := os.Open(historyFile); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}
	return &lineReader{line: line, historyFile: historyFile}
}

func (r *lineReader) read(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

func (r *lineReader) close() {
	if r.historyFile != "" {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// =============================================================================
// PLAIN CHAT LOOP
// =============================================================================

// Run starts the plain-mode chat REPL over the given streamer. It blocks
// until the user exits.
func Run(streamer session.Streamer, cfg *config.Config, out io.Writer) error {
	reader := newLineReader()
	defer reader.close()

	var markdown *glamour.TermRenderer
	if cfg.UI.RenderMarkdown {
		if md, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(), glamour.WithWordWrap(100)); err == nil {
			markdown = md
		}
	}

	loop := &plainLoop{
		out:          out,
		markdown:     markdown,
		showThinking: cfg.UI.ShowThinking,
		done:         make(chan session.State, 1),
	}

	ctrl := session.NewController(model.NewConversationLog(), streamer, session.Options{
		Model:        cfg.DefaultModel,
		ProSearch:    cfg.ProSearch,
		OnSnapshot:   loop.onSnapshot,
		OnTerminated: loop.onTerminated,
	})

	fmt.Fprintf(out, "cortex plain mode — model %s. /quit to exit.\n\n", cfg.DefaultModel)

	for {
		input, err := reader.read("> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		input = strings.TrimSpace(input)
		switch {
		case input == "":
			continue
		case input == "/quit" || input == "/q":
			return nil
		case input == "/pro":
			ctrl.SetProSearch(!ctrl.ProSearch())
			fmt.Fprintf(out, "pro search: %t\n", ctrl.ProSearch())
			continue
		case input == "/think":
			loop.toggleThinking()
			continue
		case strings.HasPrefix(input, "/"):
			fmt.Fprintf(out, "unknown command %s\n", input)
			continue
		}

		if err := ctrl.Submit(context.Background(), input); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		loop.await(ctrl)
	}
}

// plainLoop owns the streaming output for one REPL. Snapshots arrive on the
// stream goroutine; only the text delta since the last snapshot is printed
// so output appends naturally.
type plainLoop struct {
	mu           sync.Mutex
	out          io.Writer
	markdown     *glamour.TermRenderer
	showThinking bool
	printed      int
	last         model.ChatMessage
	done         chan session.State
}

func (l *plainLoop) toggleThinking() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.showThinking = !l.showThinking
	fmt.Fprintf(l.out, "thinking blocks: %t\n", l.showThinking)
}

func (l *plainLoop) onSnapshot(msg model.ChatMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = msg
	// Sanitation can rewrite earlier text (a thinking block closing), so the
	// prefix may shrink; reprinting from scratch mid-line is worse than a
	// brief lag, so only print when the text grew.
	if len(msg.Content) > l.printed {
		fmt.Fprint(l.out, msg.Content[l.printed:])
		l.printed = len(msg.Content)
	}
}

func (l *plainLoop) onTerminated(state session.State) {
	l.done <- state
}

// await blocks the REPL until the in-flight turn terminates, then prints the
// finalized attachments.
func (l *plainLoop) await(ctrl *session.Controller) {
	state := <-l.done

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out)

	final, ok := ctrl.Log().Last()
	if !ok {
		l.reset()
		return
	}

	if state == session.StateFinalized && final.Role == model.RoleAssistant {
		// Replace the raw streamed text with the formatted rendering.
		if l.markdown != nil && !final.IsErrorMessage {
			if rendered, err := l.markdown.Render(final.Content); err == nil {
				fmt.Fprint(l.out, rendered)
			}
		}
		l.printAttachments(final)
	}
	if state == session.StateErrored {
		fmt.Fprintf(l.out, "\n! %s\n", final.Content)
	}
	l.reset()
}

func (l *plainLoop) printAttachments(msg model.ChatMessage) {
	if l.showThinking && len(msg.ThinkingContent) > 0 {
		fmt.Fprintln(l.out, "\n[thinking]")
		for _, block := range msg.ThinkingContent {
			fmt.Fprintf(l.out, "  %s\n", block)
		}
	}
	if len(msg.Sources) > 0 {
		fmt.Fprintln(l.out, "\nSources:")
		for i, src := range msg.Sources {
			fmt.Fprintf(l.out, "  [%d] %s — %s\n", i+1, src.Title, src.URL)
		}
	}
	if len(msg.Images) > 0 {
		fmt.Fprintln(l.out, "\nImages:")
		for i, url := range msg.Images {
			fmt.Fprintf(l.out, "  [%d] %s\n", i+1, url)
		}
	}
	if len(msg.RelatedQueries) > 0 {
		fmt.Fprintln(l.out, "\nRelated:")
		for _, q := range msg.RelatedQueries {
			fmt.Fprintf(l.out, "  • %s\n", q)
		}
	}
}

func (l *plainLoop) reset() {
	l.printed = 0
	l.last = model.ChatMessage{}
}
