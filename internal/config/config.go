// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for birrwire.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, and validation.
//
// Locations (in order of precedence):
//   - ~/.birrwire/config.toml
//   - Built-in defaults
package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete birrwire configuration.
type Config struct {
	Version string `toml:"version"`

	// API holds collaborator backend settings.
	API APIConfig `toml:"api"`

	// Session holds idle-timeout policy.
	Session SessionConfig `toml:"session"`

	// Transfer holds money-transfer settings.
	Transfer TransferConfig `toml:"transfer"`

	// UI holds terminal UI settings.
	UI UIConfig `toml:"ui"`
}

// APIConfig contains collaborator REST API settings.
type APIConfig struct {
	// BaseURL is the root of the back-office REST API.
	BaseURL string `toml:"base_url"`
	// TimeoutSecs is the per-request transport timeout in seconds.
	TimeoutSecs int `toml:"timeout_secs"`
	// RateLimitPerSec caps outbound request rate. 0 uses the default.
	RateLimitPerSec float64 `toml:"rate_limit_per_sec"`
}

// SessionConfig contains idle-session policy.
//
// The legacy console carried two divergent idle thresholds (15 minutes on
// most screens, 1 minute on one). That was accidental; the threshold is a
// single value here and every screen reads it from this section.
type SessionConfig struct {
	// IdleTimeoutSecs is the idle time after which the session is forced
	// out. Clamped to [60, 1800] on load.
	IdleTimeoutSecs int `toml:"idle_timeout_secs"`
	// WarningSecs is how long before expiry the countdown overlay appears.
	WarningSecs int `toml:"warning_secs"`
	// MFAEnabled requires a TOTP code at login in addition to the password.
	MFAEnabled bool `toml:"mfa_enabled"`
}

// TransferConfig contains transfer-wizard settings.
type TransferConfig struct {
	// ExchangeRate is the fixed USD→ETB rate applied to drafts. Supplied by
	// configuration, never fetched per submission.
	ExchangeRate float64 `toml:"exchange_rate"`
	// RedirectDelaySecs is how long the confirmation screen lingers before
	// returning to the transfers list.
	RedirectDelaySecs int `toml:"redirect_delay_secs"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Theme is "dark", "light", or "auto" (probe the terminal background).
	Theme string `toml:"theme"`
	// CompactMode tightens vertical spacing on small terminals.
	CompactMode bool `toml:"compact_mode"`
}

// Idle timeout clamp bounds.
const (
	MinIdleTimeout = 1 * time.Minute
	MaxIdleTimeout = 30 * time.Minute
)

// IdleTimeout returns the idle timeout as a duration, clamped to the valid
// range. The clamp logs when it adjusts so a misconfigured threshold is
// visible rather than silently rewritten.
func (c *SessionConfig) IdleTimeout() time.Duration {
	d := time.Duration(c.IdleTimeoutSecs) * time.Second
	if d < MinIdleTimeout {
		log.Printf("CONFIG: idle_timeout_secs %d below minimum, using %v", c.IdleTimeoutSecs, MinIdleTimeout)
		return MinIdleTimeout
	}
	if d > MaxIdleTimeout {
		log.Printf("CONFIG: idle_timeout_secs %d above maximum, using %v", c.IdleTimeoutSecs, MaxIdleTimeout)
		return MaxIdleTimeout
	}
	return d
}

// WarningBefore returns the warning lead time as a duration.
func (c *SessionConfig) WarningBefore() time.Duration {
	return time.Duration(c.WarningSecs) * time.Second
}

// RedirectDelay returns the post-success linger time as a duration.
func (c *TransferConfig) RedirectDelay() time.Duration {
	return time.Duration(c.RedirectDelaySecs) * time.Second
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		API: APIConfig{
			BaseURL:         "https://api.birrwire.example.com/api",
			TimeoutSecs:     30,
			RateLimitPerSec: 10,
		},

		Session: SessionConfig{
			IdleTimeoutSecs: 900, // 15 minutes
			WarningSecs:     120,
			MFAEnabled:      false,
		},

		Transfer: TransferConfig{
			ExchangeRate:      127.65,
			RedirectDelaySecs: 2,
		},

		UI: UIConfig{
			Theme:       "auto",
			CompactMode: false,
		},
	}
}

// =============================================================================
// PATH HELPERS
// =============================================================================

// ConfigDir returns the birrwire configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".birrwire"), nil
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
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions tightens permissions on the config file. The file
// never holds the session token, but it does hold the backend URL and MFA
// toggle, so it stays owner-only.
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
// LOAD / SAVE
// =============================================================================

// Load loads configuration from the config file, falling back to defaults.
// Environment overrides are applied last, then validation.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills any missing values with defaults.
func (c *Config) fillDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaults.API.BaseURL
	}
	if c.API.TimeoutSecs == 0 {
		c.API.TimeoutSecs = defaults.API.TimeoutSecs
	}
	if c.API.RateLimitPerSec == 0 {
		c.API.RateLimitPerSec = defaults.API.RateLimitPerSec
	}
	if c.Session.IdleTimeoutSecs == 0 {
		c.Session.IdleTimeoutSecs = defaults.Session.IdleTimeoutSecs
	}
	if c.Session.WarningSecs == 0 {
		c.Session.WarningSecs = defaults.Session.WarningSecs
	}
	if c.Transfer.ExchangeRate == 0 {
		c.Transfer.ExchangeRate = defaults.Transfer.ExchangeRate
	}
	if c.Transfer.RedirectDelaySecs == 0 {
		c.Transfer.RedirectDelaySecs = defaults.Transfer.RedirectDelaySecs
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// ApplyEnvOverrides applies BIRRWIRE_* environment variables over the
// loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("BIRRWIRE_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("BIRRWIRE_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Session.IdleTimeoutSecs = n
		}
	}
	if v := os.Getenv("BIRRWIRE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Transfer.ExchangeRate = f
		}
	}
	if v := os.Getenv("BIRRWIRE_THEME"); v != "" {
		c.UI.Theme = v
	}
}

// Validate checks the configuration for values that cannot be worked around.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url scheme %q is not http or https", u.Scheme)
	}
	if c.API.TimeoutSecs < 0 {
		return errors.New("api.timeout_secs must not be negative")
	}
	if c.Transfer.ExchangeRate <= 0 {
		return fmt.Errorf("transfer.exchange_rate must be positive, got %v", c.Transfer.ExchangeRate)
	}
	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		return fmt.Errorf("ui.theme %q is not one of dark, light, auto", c.UI.Theme)
	}
	return nil
}

// Save saves the configuration to the default TOML file with 0600 perms.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
func SaveTOML(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
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

	fmt.Fprintln(file, "# birrwire configuration file")
	fmt.Fprintln(file, "# Generated by birrwire - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// GLOBAL ACCESSOR
// =============================================================================

var (
	globalMu  sync.RWMutex
	globalCfg *Config
)

// Global returns the process-wide configuration, loading it on first use.
// A load failure falls back to defaults; the console should come up even
// with a broken config file on disk.
func Global() *Config {
	globalMu.RLock()
	if globalCfg != nil {
		defer globalMu.RUnlock()
		return globalCfg
	}
	globalMu.RUnlock()

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCfg == nil {
		cfg, err := Load()
		if err != nil {
			log.Printf("CONFIG: load failed, using defaults: %v", err)
			cfg = Default()
		}
		globalCfg = cfg
	}
	return globalCfg
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalCfg = cfg
}

// ReloadGlobal re-reads the configuration from disk.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// ResetGlobalForTesting clears the global config. Test helper only.
func ResetGlobalForTesting() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalCfg = nil
}
