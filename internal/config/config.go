// Package config handles configuration for the Agent Chat client.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variable overrides
const (
	EnvBackendURL = "AGENTCHAT_BACKEND_URL"
	EnvModel      = "AGENTCHAT_MODEL"
	EnvStreaming  = "AGENTCHAT_STREAMING"
	EnvVerbose    = "AGENTCHAT_VERBOSE"
)

// MarkdownConfig configures markdown rendering options
type MarkdownConfig struct {
	Style            string `json:"style"`             // "dark", "light", or path to JSON theme
	PreserveNewLines bool   `json:"preserve_newlines"` // Preserve original line breaks
}

// Config represents the user configuration
type Config struct {
	// BackendURL is the base address of the Agent Chat backend. The
	// websocket, REST fallback and upload endpoints are all resolved
	// against it.
	BackendURL string `json:"backend_url"`
	// DefaultModel is sent with every request unless overridden per call.
	DefaultModel string `json:"default_model"`
	// Streaming selects the persistent channel when available; when false
	// every request uses the REST path.
	Streaming bool `json:"streaming"`
	// StallTimeoutSeconds force-fails an exchange that receives no event
	// for this long. 0 disables the watchdog.
	StallTimeoutSeconds int `json:"stall_timeout_s"`
	// Verbose enables debug-level logging.
	Verbose         bool           `json:"verbose"`
	CopyToClipboard bool           `json:"copy_to_clipboard"`
	Markdown        MarkdownConfig `json:"markdown,omitempty"`
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Style:            "dark",
		PreserveNewLines: true,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BackendURL:          "http://localhost:8000",
		DefaultModel:        "gemini-2.0-flash",
		Streaming:           true,
		StallTimeoutSeconds: 120,
		Verbose:             false,
		CopyToClipboard:     false,
		Markdown:            DefaultMarkdownConfig(),
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".agentchat"), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// LoadConfig loads the configuration from disk and applies environment
// overrides. A missing config file yields the defaults. A .env file in the
// working directory is honored when present.
func LoadConfig() (Config, error) {
	// Ignore a missing .env; only explicit settings matter
	_ = godotenv.Load()

	cfg := DefaultConfig()

	configPath, err := GetConfigPath()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return applyEnv(cfg), nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return applyEnv(DefaultConfig()), fmt.Errorf("failed to parse config file: %w", err)
	}

	return applyEnv(cfg), nil
}

// applyEnv layers environment variables over the loaded configuration
func applyEnv(cfg Config) Config {
	if v := os.Getenv(EnvBackendURL); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		cfg.DefaultModel = v
	}
	if v := os.Getenv(EnvStreaming); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Streaming = b
		}
	}
	if v := os.Getenv(EnvVerbose); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Verbose = b
		}
	}
	return cfg
}

// SaveConfig saves the configuration to disk
func SaveConfig(cfg Config) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.json")

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
