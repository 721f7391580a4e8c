package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ServerConfig holds the resolved runtime configuration.
type ServerConfig struct {
	Port            int
	HistoryPath     string
	HistoryLimit    int
	LoginTimeout    time.Duration // max wait for the login frame; 0 disables
	IdleTimeout     time.Duration // max gap between frames after auth; 0 disables
	MaxMessageBytes int64
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default runtime configuration. The idle
// timeout defaults to disabled: an authenticated connection is held open
// indefinitely unless the operator opts in.
func DefaultConfig() ServerConfig {
	return ServerConfig{
		Port:            8765,
		HistoryPath:     "chat_history.json",
		HistoryLimit:    1000,
		LoginTimeout:    30 * time.Second,
		IdleTimeout:     0,
		MaxMessageBytes: 4096,
		ShutdownTimeout: 10 * time.Second,
	}
}

// TOMLConfig represents the structure of the server config file.
type TOMLConfig struct {
	Server ServerSection `toml:"server"`
	Limits LimitsSection `toml:"limits"`
}

type ServerSection struct {
	Port        int    `toml:"port"`
	HistoryPath string `toml:"history_path"`
}

type LimitsSection struct {
	HistoryLimit        int `toml:"history_limit"`
	LoginTimeoutSeconds int `toml:"login_timeout_seconds"`
	IdleTimeoutSeconds  int `toml:"idle_timeout_seconds"`
	MaxMessageBytes     int `toml:"max_message_bytes"`
}

// DefaultTOMLConfig returns the default TOML configuration.
func DefaultTOMLConfig() TOMLConfig {
	return TOMLConfig{
		Server: ServerSection{
			Port:        8765,
			HistoryPath: "chat_history.json",
		},
		Limits: LimitsSection{
			HistoryLimit:        1000,
			LoginTimeoutSeconds: 30,
			IdleTimeoutSeconds:  0,
			MaxMessageBytes:     4096,
		},
	}
}

// LoadConfig loads configuration from a TOML file, creating a default file
// if none exists.
func LoadConfig(path string) (TOMLConfig, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return TOMLConfig{}, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := DefaultTOMLConfig()
		if err := writeDefaultConfig(path, config); err != nil {
			// Could not write (permissions, read-only fs); run on defaults.
			return config, nil
		}
		return config, nil
	}

	var config TOMLConfig
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return TOMLConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

func writeDefaultConfig(path string, config TOMLConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	header := `# chatrelay server configuration
# This file was auto-generated with default values.
# Edit as needed and restart the server for changes to take effect.

`
	if _, err := f.WriteString(header); err != nil {
		return err
	}

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ToServerConfig converts TOMLConfig to ServerConfig. Unset values fall
// back to defaults, except the idle timeout whose default is already
// disabled.
func (c *TOMLConfig) ToServerConfig() ServerConfig {
	cfg := DefaultConfig()

	if c.Server.Port != 0 {
		cfg.Port = c.Server.Port
	}
	if strings.TrimSpace(c.Server.HistoryPath) != "" {
		cfg.HistoryPath = c.Server.HistoryPath
	}
	if c.Limits.HistoryLimit != 0 {
		cfg.HistoryLimit = c.Limits.HistoryLimit
	}
	if c.Limits.LoginTimeoutSeconds != 0 {
		cfg.LoginTimeout = time.Duration(c.Limits.LoginTimeoutSeconds) * time.Second
	}
	if c.Limits.IdleTimeoutSeconds != 0 {
		cfg.IdleTimeout = time.Duration(c.Limits.IdleTimeoutSeconds) * time.Second
	}
	if c.Limits.MaxMessageBytes != 0 {
		cfg.MaxMessageBytes = int64(c.Limits.MaxMessageBytes)
	}
	return cfg
}
