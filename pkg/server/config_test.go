package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultTOMLConfig(t *testing.T) {
	cfg := DefaultTOMLConfig()

	if cfg.Server.Port != 8765 {
		t.Fatalf("expected default port 8765, got %d", cfg.Server.Port)
	}
	if cfg.Server.HistoryPath == "" {
		t.Fatal("expected default history path to be set")
	}
	if cfg.Limits.HistoryLimit != 1000 {
		t.Fatalf("expected default history limit 1000, got %d", cfg.Limits.HistoryLimit)
	}
	if cfg.Limits.IdleTimeoutSeconds != 0 {
		t.Fatalf("idle timeout should default to disabled, got %d", cfg.Limits.IdleTimeoutSeconds)
	}
}

func TestToServerConfigMapsValues(t *testing.T) {
	cfg := DefaultTOMLConfig()
	cfg.Server.Port = 9000
	cfg.Server.HistoryPath = "/tmp/history.json"
	cfg.Limits.HistoryLimit = 50
	cfg.Limits.LoginTimeoutSeconds = 5
	cfg.Limits.IdleTimeoutSeconds = 120

	serverCfg := cfg.ToServerConfig()

	if serverCfg.Port != 9000 {
		t.Fatalf("expected port 9000, got %d", serverCfg.Port)
	}
	if serverCfg.HistoryPath != "/tmp/history.json" {
		t.Fatalf("expected history path /tmp/history.json, got %s", serverCfg.HistoryPath)
	}
	if serverCfg.HistoryLimit != 50 {
		t.Fatalf("expected history limit 50, got %d", serverCfg.HistoryLimit)
	}
	if serverCfg.LoginTimeout != 5*time.Second {
		t.Fatalf("expected login timeout 5s, got %v", serverCfg.LoginTimeout)
	}
	if serverCfg.IdleTimeout != 120*time.Second {
		t.Fatalf("expected idle timeout 120s, got %v", serverCfg.IdleTimeout)
	}
}

func TestToServerConfigFallsBackToDefaults(t *testing.T) {
	var cfg TOMLConfig

	serverCfg := cfg.ToServerConfig()
	defaults := DefaultConfig()

	if serverCfg.Port != defaults.Port {
		t.Fatalf("expected fallback port %d, got %d", defaults.Port, serverCfg.Port)
	}
	if serverCfg.HistoryLimit != defaults.HistoryLimit {
		t.Fatalf("expected fallback history limit %d, got %d", defaults.HistoryLimit, serverCfg.HistoryLimit)
	}
	if serverCfg.LoginTimeout != defaults.LoginTimeout {
		t.Fatalf("expected fallback login timeout %v, got %v", defaults.LoginTimeout, serverCfg.LoginTimeout)
	}
	if serverCfg.IdleTimeout != 0 {
		t.Fatalf("expected idle timeout to stay disabled, got %v", serverCfg.IdleTimeout)
	}
}

func TestLoadConfigCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatrelay.toml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != 8765 {
		t.Fatalf("expected default config, got port %d", cfg.Server.Port)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file should have been written: %v", err)
	}

	// Loading again parses the file it just wrote.
	again, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if again.Server.Port != cfg.Server.Port {
		t.Fatalf("reloaded port %d differs from %d", again.Server.Port, cfg.Server.Port)
	}
}

func TestLoadConfigParsesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatrelay.toml")
	content := `
[server]
port = 9100
history_path = "relay_history.json"

[limits]
history_limit = 250
idle_timeout_seconds = 300
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Fatalf("expected port 9100, got %d", cfg.Server.Port)
	}
	if cfg.Limits.HistoryLimit != 250 {
		t.Fatalf("expected history limit 250, got %d", cfg.Limits.HistoryLimit)
	}
}

func TestLoadConfigRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatrelay.toml")
	if err := os.WriteFile(path, []byte("this = is = not toml"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for invalid config file")
	}
}
