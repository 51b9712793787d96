// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_model = "sonar-pro"
pro_search = true

[backend]
base_url = "http://cortex.local:9000"
timeout_seconds = 60

[ui]
theme = "light"
`), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "sonar-pro", cfg.DefaultModel)
	assert.True(t, cfg.ProSearch)
	assert.Equal(t, "http://cortex.local:9000", cfg.Backend.BaseURL)
	assert.Equal(t, 60, cfg.Backend.TimeoutSeconds)
	assert.Equal(t, "light", cfg.UI.Theme)
	// Unset fields fall back to defaults.
	assert.Equal(t, 3, cfg.Backend.MaxAttempts)
}

func TestLoadJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"default_model": "llama3",
		"backend": {"base_url": "http://localhost:8000"}
	}`), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "llama3", cfg.DefaultModel)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`default_model = "from-file"`), 0600))

	t.Setenv("CORTEX_MODEL", "from-env")
	t.Setenv("CORTEX_PRO_SEARCH", "true")
	t.Setenv("CORTEX_BACKEND_URL", "https://remote.example")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.DefaultModel)
	assert.True(t, cfg.ProSearch)
	assert.Equal(t, "https://remote.example", cfg.Backend.BaseURL)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Backend.BaseURL = "localhost:8000"
	cfg.UI.Theme = "solarized"
	cfg.Backend.MaxAttempts = 99

	err := cfg.Validate()
	require.Error(t, err)

	var errs ValidateErrors
	require.ErrorAs(t, err, &errs)
	fields := make([]string, len(errs))
	for i, e := range errs {
		fields[i] = e.Field
	}
	assert.Contains(t, fields, "backend.base_url")
	assert.Contains(t, fields, "ui.theme")
	assert.Contains(t, fields, "backend.max_attempts")
}

func TestSaveTOMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := Default()
	cfg.DefaultModel = "saved-model"
	cfg.UI.ShowThinking = true

	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "saved-model", loaded.DefaultModel)
	assert.True(t, loaded.UI.ShowThinking)
}

func TestUnsupportedExtension(t *testing.T) {
	_, err := LoadFromPath("/tmp/config.yaml")
	assert.Error(t, err)
}

func TestGlobalAccessor(t *testing.T) {
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	cfg := Default()
	cfg.DefaultModel = "pinned"
	SetGlobal(cfg)

	assert.Equal(t, "pinned", Global().DefaultModel)
}
