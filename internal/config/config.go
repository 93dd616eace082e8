// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for
// vibeforge.
//
// TOML configuration with sensible defaults, environment variable
// overrides, and validation.
//
// Configuration file location:
//   - ~/.vibeforge/config.toml
//   - Built-in defaults otherwise
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete vibeforge configuration.
type Config struct {
	Version string `toml:"version"`

	// OpenRouter (model endpoint) configuration
	OpenRouter OpenRouterConfig `toml:"openrouter"`

	// Document store configuration
	Store StoreConfig `toml:"store"`

	// Preview workspace configuration
	Preview PreviewConfig `toml:"preview"`

	// HTTP server configuration (vibeforge serve)
	Server ServerConfig `toml:"server"`

	// Stream sync throttling
	Sync SyncConfig `toml:"sync"`

	// UI configuration
	UI UIConfig `toml:"ui"`
}

// OpenRouterConfig contains model endpoint configuration.
type OpenRouterConfig struct {
	// APIKey is the OpenRouter API key. Values with the keystore ENC:
	// prefix are decrypted on load when the keystore is initialized.
	APIKey string `toml:"api_key"`
	// BaseURL overrides the API endpoint (tests, proxies).
	BaseURL string `toml:"base_url"`
	// Model is the generation model identifier.
	Model string `toml:"model"`
	// TimeoutSecs bounds non-streaming requests.
	TimeoutSecs int `toml:"timeout_secs"`
}

// StoreConfig contains document store configuration.
type StoreConfig struct {
	// Path is the sqlite database file. Empty means ~/.vibeforge/vibeforge.db.
	Path string `toml:"path"`
}

// PreviewConfig contains preview workspace configuration.
type PreviewConfig struct {
	// Dir is where generated components are materialized.
	// Empty means ~/.vibeforge/preview.
	Dir string `toml:"dir"`
	// ScreenshotDir is where captured preview images land.
	// Empty means ~/.vibeforge/screenshots.
	ScreenshotDir string `toml:"screenshot_dir"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Addr is the listen address for vibeforge serve.
	Addr string `toml:"addr"`
	// RatePerSecond caps requests per client IP; 0 disables limiting.
	RatePerSecond float64 `toml:"rate_per_second"`
	// Burst is the rate limiter burst size.
	Burst int `toml:"burst"`
	// AllowedOrigin is the CORS origin for the browser client.
	AllowedOrigin string `toml:"allowed_origin"`
}

// SyncConfig controls throttling of partial-response persistence.
type SyncConfig struct {
	// BaseDelayMs is the quiet delay before a propagation fires.
	BaseDelayMs int `toml:"base_delay_ms"`
	// MinIntervalMs is the floor between consecutive propagations.
	MinIntervalMs int `toml:"min_interval_ms"`
}

// UIConfig contains TUI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// WordWrap is the markdown rendering width.
	WordWrap int `toml:"word_wrap"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		OpenRouter: OpenRouterConfig{
			APIKey:      "",
			BaseURL:     "https://openrouter.ai/api/v1",
			Model:       "anthropic/claude-3.7-sonnet",
			TimeoutSecs: 60,
		},

		Store: StoreConfig{},

		Preview: PreviewConfig{},

		Server: ServerConfig{
			Addr:          "127.0.0.1:8177",
			RatePerSecond: 5,
			Burst:         10,
			AllowedOrigin: "*",
		},

		Sync: SyncConfig{
			BaseDelayMs:   50,
			MinIntervalMs: 250,
		},

		UI: UIConfig{
			Theme:    "dark",
			WordWrap: 80,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the vibeforge configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".vibeforge"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on the config file.
// SECURITY: Config files should be 0600 (owner read/write only) to protect
// the API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from ~/.vibeforge/config.toml, falling back to
// defaults when no file exists. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	if err := ensureSecurePermissions(path); err != nil {
		// Permissions might not be fixable on all filesystems.
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	fillDefaults(cfg)
	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.OpenRouter.BaseURL == "" {
		cfg.OpenRouter.BaseURL = defaults.OpenRouter.BaseURL
	}
	if cfg.OpenRouter.Model == "" {
		cfg.OpenRouter.Model = defaults.OpenRouter.Model
	}
	if cfg.OpenRouter.TimeoutSecs == 0 {
		cfg.OpenRouter.TimeoutSecs = defaults.OpenRouter.TimeoutSecs
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaults.Server.Addr
	}
	if cfg.Server.RatePerSecond == 0 {
		cfg.Server.RatePerSecond = defaults.Server.RatePerSecond
	}
	if cfg.Server.Burst == 0 {
		cfg.Server.Burst = defaults.Server.Burst
	}
	if cfg.Server.AllowedOrigin == "" {
		cfg.Server.AllowedOrigin = defaults.Server.AllowedOrigin
	}
	if cfg.Sync.BaseDelayMs == 0 {
		cfg.Sync.BaseDelayMs = defaults.Sync.BaseDelayMs
	}
	if cfg.Sync.MinIntervalMs == 0 {
		cfg.Sync.MinIntervalMs = defaults.Sync.MinIntervalMs
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.UI.WordWrap == 0 {
		cfg.UI.WordWrap = defaults.UI.WordWrap
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
// OPENROUTER_API_KEY wins over the stored key so CI and one-off shells
// never have to touch the config file.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.OpenRouter.APIKey = v
	}
	if v := os.Getenv("VIBEFORGE_MODEL"); v != "" {
		c.OpenRouter.Model = v
	}
	if v := os.Getenv("VIBEFORGE_BASE_URL"); v != "" {
		c.OpenRouter.BaseURL = v
	}
	if v := os.Getenv("VIBEFORGE_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("VIBEFORGE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("VIBEFORGE_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("VIBEFORGE_SYNC_BASE_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Sync.BaseDelayMs = n
		}
	}
	if v := os.Getenv("VIBEFORGE_SYNC_MIN_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Sync.MinIntervalMs = n
		}
	}
}

// =============================================================================
// RESOLVED PATHS
// =============================================================================

// StorePath resolves the document store location.
func (c *Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "vibeforge.db"), nil
}

// PreviewDir resolves the preview workspace location.
func (c *Config) PreviewDir() (string, error) {
	if c.Preview.Dir != "" {
		return c.Preview.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "preview"), nil
}

// ScreenshotDir resolves the screenshot location.
func (c *Config) ScreenshotDir() (string, error) {
	if c.Preview.ScreenshotDir != "" {
		return c.Preview.ScreenshotDir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "screenshots"), nil
}

// SyncBaseDelay returns the throttle base delay as a duration.
func (c *Config) SyncBaseDelay() time.Duration {
	return time.Duration(c.Sync.BaseDelayMs) * time.Millisecond
}

// SyncMinInterval returns the throttle interval floor as a duration.
func (c *Config) SyncMinInterval() time.Duration {
	return time.Duration(c.Sync.MinIntervalMs) * time.Millisecond
}

// =============================================================================
// SAVE
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write
// only).
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# vibeforge configuration file")
	fmt.Fprintln(file, "# Generated by vibeforge - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.OpenRouter.BaseURL != "" {
		if u, err := url.Parse(c.OpenRouter.BaseURL); err != nil || u.Scheme == "" {
			errs = append(errs, ValidationError{
				Field:   "openrouter.base_url",
				Message: fmt.Sprintf("invalid URL %q", c.OpenRouter.BaseURL),
			})
		}
	}

	if c.OpenRouter.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "openrouter.timeout_secs",
			Message: "timeout cannot be negative",
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if c.UI.Theme != "" && !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme %q, must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if c.Server.RatePerSecond < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_per_second",
			Message: "rate cannot be negative",
		})
	}

	if c.Sync.BaseDelayMs < 0 || c.Sync.MinIntervalMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "sync",
			Message: "throttle intervals cannot be negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
