// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config manages cortex-tui configuration.
//
// Configuration lives at ~/.cortex/config.toml (TOML preferred, JSON
// fallback) and can be overridden per-run with CORTEX_* environment
// variables. Loading never hard-fails on a missing file: defaults apply.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/cortex-tui/internal/util"
)

// =============================================================================
// CONFIG TYPES
// =============================================================================

// Config is the root configuration.
type Config struct {
	// DefaultModel is the backend model identifier for new conversations.
	DefaultModel string `toml:"default_model" json:"default_model"`

	// ProSearch enables the agent search trace by default.
	ProSearch bool `toml:"pro_search" json:"pro_search"`

	Backend BackendConfig `toml:"backend" json:"backend"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	History HistoryConfig `toml:"history" json:"history"`
}

// BackendConfig configures the connection to the Cortex backend.
type BackendConfig struct {
	// BaseURL is the backend root, e.g. "http://localhost:8000".
	BaseURL string `toml:"base_url" json:"base_url"`

	// TimeoutSeconds bounds one streaming turn end to end.
	TimeoutSeconds int `toml:"timeout_seconds" json:"timeout_seconds"`

	// MaxAttempts is how many times a zero-byte connection failure retries.
	MaxAttempts int `toml:"max_attempts" json:"max_attempts"`

	// BackoffMS is the first retry delay in milliseconds; it doubles on
	// each subsequent attempt.
	BackoffMS int `toml:"backoff_ms" json:"backoff_ms"`

	// HeartbeatSeconds is the stream staleness log interval. 0 disables.
	HeartbeatSeconds int `toml:"heartbeat_seconds" json:"heartbeat_seconds"`
}

// UIConfig configures rendering.
type UIConfig struct {
	// Theme selects the color theme ("dark" or "light").
	Theme string `toml:"theme" json:"theme"`

	// ShowThinking reveals extracted model reasoning blocks by default.
	ShowThinking bool `toml:"show_thinking" json:"show_thinking"`

	// RenderMarkdown formats finalized answers with glamour.
	RenderMarkdown bool `toml:"render_markdown" json:"render_markdown"`
}

// HistoryConfig configures the local sidebar cache.
type HistoryConfig struct {
	// CachePath is the SQLite snapshot cache location. Empty means
	// ~/.cortex/history.db.
	CachePath string `toml:"cache_path" json:"cache_path"`

	// Enabled turns the local cache on.
	Enabled bool `toml:"enabled" json:"enabled"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DefaultModel: "sonar",
		ProSearch:    false,
		Backend: BackendConfig{
			BaseURL:          "http://localhost:8000",
			TimeoutSeconds:   300,
			MaxAttempts:      3,
			BackoffMS:        500,
			HeartbeatSeconds: 10,
		},
		UI: UIConfig{
			Theme:          "dark",
			ShowThinking:   false,
			RenderMarkdown: true,
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the configuration directory (~/.cortex).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".cortex"), nil
}

// ConfigPathTOML returns the TOML config path.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the JSON config path.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// CachePath resolves the snapshot cache location.
func (c *Config) CachePath() (string, error) {
	if c.History.CachePath != "" {
		return c.History.CachePath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration, preferring TOML over JSON, applies CORTEX_*
// environment overrides, and validates. A missing file yields defaults.
func Load() (*Config, error) {
	cfg := Default()

	if path, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("load TOML config: %w", err)
			}
			return finish(cfg)
		}
	}

	if path, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadJSON(cfg, path); err != nil {
				return nil, fmt.Errorf("load JSON config: %w", err)
			}
			return finish(cfg)
		}
	}

	return finish(cfg)
}

// LoadFromPath loads a config file by extension.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	var err error
	switch filepath.Ext(path) {
	case ".toml":
		err = LoadTOML(cfg, path)
	case ".json":
		err = LoadJSON(cfg, path)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", path)
	}
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("decode JSON file: %w", err)
	}
	return nil
}

// fillDefaults replaces zero values that have no meaningful zero semantics.
func (c *Config) fillDefaults() {
	def := Default()
	if c.DefaultModel == "" {
		c.DefaultModel = def.DefaultModel
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = def.Backend.BaseURL
	}
	if c.Backend.TimeoutSeconds <= 0 {
		c.Backend.TimeoutSeconds = def.Backend.TimeoutSeconds
	}
	if c.Backend.MaxAttempts <= 0 {
		c.Backend.MaxAttempts = def.Backend.MaxAttempts
	}
	if c.Backend.BackoffMS <= 0 {
		c.Backend.BackoffMS = def.Backend.BackoffMS
	}
	if c.UI.Theme == "" {
		c.UI.Theme = def.UI.Theme
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies CORTEX_* environment variables over the loaded
// values. Overrides win over both file contents and defaults.
func (c *Config) ApplyEnvOverrides() {
	if url := os.Getenv("CORTEX_BACKEND_URL"); url != "" {
		c.Backend.BaseURL = url
	}
	if model := os.Getenv("CORTEX_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if pro := os.Getenv("CORTEX_PRO_SEARCH"); pro != "" {
		c.ProSearch = isTruthy(pro)
	}
	if theme := os.Getenv("CORTEX_THEME"); theme != "" {
		c.UI.Theme = theme
	}
	if thinking := os.Getenv("CORTEX_SHOW_THINKING"); thinking != "" {
		c.UI.ShowThinking = isTruthy(thinking)
	}
	if timeout := os.Getenv("CORTEX_TIMEOUT"); timeout != "" {
		if secs, err := strconv.Atoi(timeout); err == nil && secs > 0 {
			c.Backend.TimeoutSeconds = secs
		}
	}
}

func isTruthy(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors aggregates every validation failure.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if !strings.HasPrefix(c.Backend.BaseURL, "http://") &&
		!strings.HasPrefix(c.Backend.BaseURL, "https://") {
		errs = append(errs, ValidationError{
			Field:   "backend.base_url",
			Message: "must start with http:// or https://",
		})
	}
	if c.Backend.TimeoutSeconds <= 0 {
		errs = append(errs, ValidationError{
			Field:   "backend.timeout_seconds",
			Message: "must be positive",
		})
	}
	if c.Backend.MaxAttempts <= 0 || c.Backend.MaxAttempts > 10 {
		errs = append(errs, ValidationError{
			Field:   "backend.max_attempts",
			Message: "must be between 1 and 10",
		})
	}
	if c.Backend.HeartbeatSeconds < 0 {
		errs = append(errs, ValidationError{
			Field:   "backend.heartbeat_seconds",
			Message: "must not be negative",
		})
	}
	if c.UI.Theme != "dark" && c.UI.Theme != "light" {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: `must be "dark" or "light"`,
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration to the TOML path atomically with 0600
// permissions.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path as TOML.
func SaveTOML(cfg *Config, path string) error {
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode TOML: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// =============================================================================
// GLOBAL ACCESSOR
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process-wide configuration, loading it on first access.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal re-reads the configuration from disk.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *Config) {
	// Consume the once so a later Global() cannot clobber this with a disk load.
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting clears global state between tests.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
