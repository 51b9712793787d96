// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// CONFIG WATCHER
// =============================================================================

// debounceWindow coalesces the burst of filesystem events an editor save
// produces into one reload.
const debounceWindow = 250 * time.Millisecond

// Watcher reloads the configuration when the file changes on disk and hands
// the fresh Config to the callback.
type Watcher struct {
	fsw    *fsnotify.Watcher
	logger *log.Logger
	done   chan struct{}
}

// Watch starts watching the config file. onChange runs on the watcher
// goroutine after each successful reload; an invalid edit is logged and the
// previous configuration stays in effect.
func Watch(path string, onChange func(*Config), logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace the file, which would orphan a
	// watch on the file itself.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{fsw: fsw, logger: logger, done: make(chan struct{})}
	go w.loop(path, onChange)
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) loop(path string, onChange func(*Config)) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerC = timer.C
			} else {
				timer.Reset(debounceWindow)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			cfg, err := LoadFromPath(path)
			if err != nil {
				w.logger.Printf("config reload failed, keeping previous: %v", err)
				continue
			}
			w.logger.Printf("config reloaded from %s", path)
			onChange(cfg)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Printf("config watcher error: %v", err)
		}
	}
}
