package setup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeBinary(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "genepi")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	return path
}

func TestRegister_PreservesOtherServersAndKeys(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "client", "config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0o755))
	require.NoError(t, os.WriteFile(configPath, []byte(`{
		"globalShortcut": "Ctrl+Space",
		"mcpServers": {"other": {"command": "/usr/bin/other"}}
	}`), 0o644))

	written, err := Register(Options{
		ConfigPath: configPath,
		BinaryPath: fakeBinary(t, dir),
		ConfigFile: filepath.Join(dir, "config.yaml"),
		Env:        map[string]string{"GENEPI_LOGGING_LEVEL": "warn"},
	})
	require.NoError(t, err)
	assert.Equal(t, configPath, written)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "Ctrl+Space", raw["globalShortcut"])

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Contains(t, cfg.MCPServers, "other")

	entry := cfg.MCPServers[ServerName]
	assert.Equal(t, filepath.Join(dir, "genepi"), entry.Command)
	assert.Equal(t, []string{"mcp", "--config", filepath.Join(dir, "config.yaml")}, entry.Args)
	assert.Equal(t, "warn", entry.Env["GENEPI_LOGGING_LEVEL"])
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, cfg.MCPServers)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")

	status, err := Check(configPath)
	require.NoError(t, err)
	assert.False(t, status.Registered)
	assert.Len(t, status.Issues, 1)

	binary := fakeBinary(t, dir)
	_, err = Register(Options{ConfigPath: configPath, BinaryPath: binary})
	require.NoError(t, err)

	status, err = Check(configPath)
	require.NoError(t, err)
	assert.True(t, status.Registered)
	assert.Empty(t, status.Issues)
	assert.Equal(t, []string{"mcp"}, status.Entry.Args)

	require.NoError(t, os.Remove(binary))
	status, err = Check(configPath)
	require.NoError(t, err)
	assert.Len(t, status.Issues, 1)
}
