package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/leaselens/configs"
	"github.com/Aman-CERP/leaselens/internal/config"
)

func TestConfigInit_CreatesUserConfig(t *testing.T) {
	// Given: no user config
	xdg := isolate(t)
	path := filepath.Join(xdg, "leaselens", "config.yaml")

	// When
	stdout, _, err := execute(t, nil, "config", "init")

	// Then: the template is written and loads cleanly
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created configuration")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, configs.ConfigTemplate, string(data))

	_, err = config.Load(t.TempDir())
	assert.NoError(t, err)
}

func TestConfigInit_ExistingNeedsForce(t *testing.T) {
	// Given: an edited user config
	xdg := isolate(t)
	path := filepath.Join(xdg, "leaselens", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("chunking:\n  size: 400\n"), 0644))

	// When: init without --force
	stdout, _, err := execute(t, nil, "config", "init")

	// Then: the file is untouched
	require.NoError(t, err)
	assert.Contains(t, stdout, "already exists")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "chunking:\n  size: 400\n", string(data))

	// When: init with --force
	stdout, _, err = execute(t, nil, "config", "init", "--force")

	// Then: the old file is backed up and replaced
	require.NoError(t, err)
	assert.Contains(t, stdout, "Backup:")
	backups, err := config.ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	old, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, "chunking:\n  size: 400\n", string(old))

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, configs.ConfigTemplate, string(data))
}

func TestConfigInit_Project(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	t.Chdir(dir)

	_, _, err := execute(t, nil, "config", "init", "--project")

	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, config.ProjectConfigName))
}

func TestConfigShow_JSONWithOffline(t *testing.T) {
	isolate(t)

	stdout, _, err := execute(t, nil, "config", "show", "--json", "--offline")

	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(stdout), &cfg))
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, "extractive", cfg.Generation.Provider)
	assert.Equal(t, 60, cfg.Retrieval.RRFConstant)
}

func TestConfigShow_MasksAPIKey(t *testing.T) {
	isolate(t)
	t.Setenv("LEASELENS_API_KEY", "super-secret")

	stdout, _, err := execute(t, nil, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, stdout, "api_key: '********'")
	assert.NotContains(t, stdout, "super-secret")

	stdout, _, err = execute(t, nil, "config", "show", "--json")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "super-secret")
}

func TestConfigPath(t *testing.T) {
	xdg := isolate(t)

	stdout, _, err := execute(t, nil, "config", "path")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(xdg, "leaselens", "config.yaml")+"\n", stdout)
}
