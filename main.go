// cortex TUI - a terminal client for the Cortex answer engine.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/jeranaias/cortex-tui/internal/cli"
	"github.com/jeranaias/cortex-tui/internal/config"
	"github.com/jeranaias/cortex-tui/internal/history"
	"github.com/jeranaias/cortex-tui/internal/model"
	"github.com/jeranaias/cortex-tui/internal/protocol"
	"github.com/jeranaias/cortex-tui/internal/session"
	"github.com/jeranaias/cortex-tui/internal/storage"
	"github.com/jeranaias/cortex-tui/internal/transport"
	"github.com/jeranaias/cortex-tui/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	var (
		plain       = flag.Bool("plain", false, "run the readline REPL instead of the TUI")
		modelName   = flag.String("model", "", "override the configured model")
		proSearch   = flag.Bool("pro", false, "enable pro search (agent trace)")
		configPath  = flag.String("config", "", "load configuration from this file")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("cortex %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cortex: %v\n", err)
		os.Exit(1)
	}
	if *modelName != "" {
		cfg.DefaultModel = *modelName
	}
	if *proSearch {
		cfg.ProSearch = true
	}
	config.SetGlobal(cfg)

	// A dumb terminal or a pipe gets the plain REPL regardless of flags.
	usePlain := *plain || !term.IsTerminal(int(os.Stdout.Fd()))

	logger := setupLogger(usePlain)

	driver := transport.New(cfg.Backend.BaseURL,
		transport.WithLogger(logger),
		transport.WithMaxAttempts(cfg.Backend.MaxAttempts),
		transport.WithBackoffBase(time.Duration(cfg.Backend.BackoffMS)*time.Millisecond),
		transport.WithOverallTimeout(time.Duration(cfg.Backend.TimeoutSeconds)*time.Second),
		transport.WithHeartbeat(time.Duration(cfg.Backend.HeartbeatSeconds)*time.Second),
	)

	if usePlain {
		if err := cli.Run(driver, cfg, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "cortex: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runTUI(driver, cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "cortex: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(driver *transport.Driver, cfg *config.Config, logger *log.Logger) error {
	var cache *storage.SnapshotCache
	if cfg.History.Enabled {
		if path, err := cfg.CachePath(); err == nil {
			if c, err := storage.Open(path); err == nil {
				cache = c
				defer cache.Close()
			} else {
				logger.Printf("history cache unavailable: %v", err)
			}
		}
	}

	bridge := chat.NewBridge()
	ctrl := session.NewController(model.NewConversationLog(), driver, session.Options{
		Model:            cfg.DefaultModel,
		ProSearch:        cfg.ProSearch,
		Recovery:         protocol.RecoverResponseText,
		Logger:           logger,
		OnSnapshot:       bridge.PublishSnapshot,
		OnTerminated:     bridge.PublishTerminated,
		OnThreadAssigned: bridge.PublishThreadAssigned,
	})

	// Live-reload model/search settings when the config file changes.
	if path, err := config.ConfigPathTOML(); err == nil {
		if watcher, err := config.Watch(path, func(fresh *config.Config) {
			config.SetGlobal(fresh)
			ctrl.SetModel(fresh.DefaultModel)
			ctrl.SetProSearch(fresh.ProSearch)
		}, logger); err == nil {
			defer watcher.Close()
		}
	}

	threads := history.NewClient(cfg.Backend.BaseURL)
	m := chat.New(ctrl, bridge, threads, cache, cfg)

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// setupLogger sends logs to a file in TUI mode so they cannot corrupt the
// alternate screen.
func setupLogger(plain bool) *log.Logger {
	if plain {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	if dir, err := config.ConfigDir(); err == nil {
		if err := os.MkdirAll(dir, 0755); err == nil {
			path := filepath.Join(dir, "cortex.log")
			if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600); err == nil {
				return log.New(f, "", log.LstdFlags)
			}
		}
	}
	return log.New(os.Stderr, "", log.LstdFlags)
}
