// Package setup registers the MCP server with desktop MCP clients that read a
// claude_desktop_config.json style file.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ServerKey is the entry name used in the client's mcpServers map.
const ServerKey = "pcos-assessment"

// ClientConfig is the client configuration file. Unknown top-level keys are kept.
type ClientConfig struct {
	MCPServers map[string]ServerEntry `json:"mcpServers"`

	extra map[string]json.RawMessage
}

// ServerEntry launches one MCP server over stdio.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options controls Register.
type Options struct {
	BinaryPath  string // Empty searches PATH and common install locations
	DataDir     string // Passed as PCOS_DATA_DIR when set
	CatalogPath string // Passed as PCOS_CATALOG_PATH when set
}

// Status reports whether the server is registered and runnable.
type Status struct {
	ConfigPath string   `json:"config_path"`
	Registered bool     `json:"registered"`
	Command    string   `json:"command,omitempty"`
	DataDir    string   `json:"data_dir,omitempty"`
	Issues     []string `json:"issues"`
}

// ConfigPath returns the client config location for goos. getenv is os.Getenv in
// production.
func ConfigPath(goos string, getenv func(string) string) (string, error) {
	home := getenv("HOME")
	switch goos {
	case "darwin":
		if home == "" {
			return "", errors.New("HOME is not set")
		}
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json"), nil
	case "linux":
		if xdg := getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "Claude", "claude_desktop_config.json"), nil
		}
		if home == "" {
			return "", errors.New("HOME is not set")
		}
		return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json"), nil
	case "windows":
		appData := getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA environment variable not set")
		}
		return filepath.Join(appData, "Claude", "claude_desktop_config.json"), nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", goos)
	}
}

// DefaultConfigPath returns the client config location for this machine.
func DefaultConfigPath() (string, error) {
	return ConfigPath(runtime.GOOS, os.Getenv)
}

// Load reads the client config. A missing file yields an empty config.
func Load(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{MCPServers: make(map[string]ServerEntry)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.extra, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]ServerEntry)
	}
	return cfg, nil
}

// Save writes the client config, creating its directory.
func Save(path string, cfg *ClientConfig) error {
	out := make(map[string]any, len(cfg.extra)+1)
	for k, v := range cfg.extra {
		out[k] = v
	}
	out["mcpServers"] = cfg.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Register adds or replaces the ServerKey entry in the config at path and returns it.
func Register(path string, opts Options) (ServerEntry, error) {
	binary := opts.BinaryPath
	if binary == "" {
		found, err := FindBinary("mcp-server-lite")
		if err != nil {
			return ServerEntry{}, err
		}
		binary = found
	}
	binary, err := filepath.Abs(binary)
	if err != nil {
		return ServerEntry{}, err
	}

	entry := ServerEntry{Command: binary}
	if opts.DataDir != "" || opts.CatalogPath != "" {
		entry.Env = make(map[string]string)
	}
	if opts.DataDir != "" {
		entry.Env["PCOS_DATA_DIR"] = opts.DataDir
	}
	if opts.CatalogPath != "" {
		entry.Env["PCOS_CATALOG_PATH"] = opts.CatalogPath
	}

	cfg, err := Load(path)
	if err != nil {
		return ServerEntry{}, err
	}
	cfg.MCPServers[ServerKey] = entry
	return entry, Save(path, cfg)
}

// FindBinary looks for name on PATH, then in ./, ./bin and ~/.local/bin.
func FindBinary(name string) (string, error) {
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	for _, dir := range []string{".", "bin", filepath.Join(home, ".local", "bin")} {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return filepath.Abs(candidate)
		}
	}
	return "", fmt.Errorf("binary %q not found on PATH or in common locations", name)
}

// GetStatus inspects the registration in the config at path. defaultDataDir is
// reported when the entry does not override PCOS_DATA_DIR.
func GetStatus(path, defaultDataDir string) (*Status, error) {
	status := &Status{ConfigPath: path, Issues: []string{}}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	entry, ok := cfg.MCPServers[ServerKey]
	if !ok {
		status.Issues = append(status.Issues, "server is not registered")
		return status, nil
	}
	status.Registered = true
	status.Command = entry.Command
	status.DataDir = defaultDataDir
	if dir, ok := entry.Env["PCOS_DATA_DIR"]; ok {
		status.DataDir = dir
	}

	if _, err := os.Stat(entry.Command); err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("server binary not found at %s", entry.Command))
	}
	if _, err := os.Stat(status.DataDir); err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("data directory does not exist yet: %s", status.DataDir))
	}
	return status, nil
}
