package setup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestConfigPath(t *testing.T) {
	tests := []struct {
		goos    string
		env     map[string]string
		want    string
		wantErr bool
	}{
		{"darwin", map[string]string{"HOME": "/Users/a"}, "/Users/a/Library/Application Support/Claude/claude_desktop_config.json", false},
		{"linux", map[string]string{"HOME": "/home/a"}, "/home/a/.config/Claude/claude_desktop_config.json", false},
		{"linux", map[string]string{"HOME": "/home/a", "XDG_CONFIG_HOME": "/xdg"}, "/xdg/Claude/claude_desktop_config.json", false},
		{"windows", map[string]string{"APPDATA": "/appdata"}, "/appdata/Claude/claude_desktop_config.json", false},
		{"windows", map[string]string{}, "", true},
		{"plan9", map[string]string{"HOME": "/"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			got, err := ConfigPath(tt.goos, envFrom(tt.env))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Empty(t, cfg.MCPServers)
}

func TestRegister_PreservesOtherEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client", "config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(`{
  "globalShortcut": "Ctrl+Space",
  "mcpServers": {"other": {"command": "/usr/bin/other"}}
}`), 0644))

	binary := filepath.Join(dir, "mcp-server-lite")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0755))

	entry, err := Register(path, Options{BinaryPath: binary, DataDir: "/data/pcos"})
	require.NoError(t, err)
	assert.Equal(t, binary, entry.Command)
	assert.Equal(t, "/data/pcos", entry.Env["PCOS_DATA_DIR"])
	assert.NotContains(t, entry.Env, "PCOS_CATALOG_PATH")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `"Ctrl+Space"`, string(raw["globalShortcut"]))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.MCPServers, 2)
	assert.Equal(t, "/usr/bin/other", cfg.MCPServers["other"].Command)
	assert.Equal(t, binary, cfg.MCPServers[ServerKey].Command)
}

func TestRegister_MalformedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Register(path, Options{BinaryPath: "/bin/sh"})
	assert.Error(t, err)
}

func TestGetStatus(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	status, err := GetStatus(path, dir)
	require.NoError(t, err)
	assert.False(t, status.Registered)
	assert.Contains(t, status.Issues, "server is not registered")

	_, err = Register(path, Options{BinaryPath: filepath.Join(dir, "missing-binary")})
	require.NoError(t, err)

	status, err = GetStatus(path, dir)
	require.NoError(t, err)
	assert.True(t, status.Registered)
	assert.Equal(t, dir, status.DataDir)
	require.Len(t, status.Issues, 1)
	assert.Contains(t, status.Issues[0], "server binary not found")
}
