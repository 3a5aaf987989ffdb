// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Session.IdleTimeoutSecs != 900 {
		t.Errorf("default idle timeout = %d, want 900", cfg.Session.IdleTimeoutSecs)
	}
	if cfg.Transfer.ExchangeRate != 127.65 {
		t.Errorf("default exchange rate = %v, want 127.65", cfg.Transfer.ExchangeRate)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestSessionConfig_IdleTimeoutClamp(t *testing.T) {
	tests := []struct {
		name string
		secs int
		want time.Duration
	}{
		{"below minimum", 10, MinIdleTimeout},
		{"at minimum", 60, time.Minute},
		{"normal", 900, 15 * time.Minute},
		{"above maximum", 7200, MaxIdleTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := SessionConfig{IdleTimeoutSecs: tt.secs}
			if got := sc.IdleTimeout(); got != tt.want {
				t.Errorf("IdleTimeout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"relative url", func(c *Config) { c.API.BaseURL = "/api" }, true},
		{"bad scheme", func(c *Config) { c.API.BaseURL = "ftp://x.example.com" }, true},
		{"zero rate", func(c *Config) { c.Transfer.ExchangeRate = 0 }, true},
		{"negative rate", func(c *Config) { c.Transfer.ExchangeRate = -1 }, true},
		{"bad theme", func(c *Config) { c.UI.Theme = "solarized" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
version = "1.0.0"

[api]
base_url = "https://backoffice.example.net/api"

[session]
idle_timeout_secs = 600

[transfer]
exchange_rate = 131.20
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.API.BaseURL != "https://backoffice.example.net/api" {
		t.Errorf("base_url = %q", cfg.API.BaseURL)
	}
	if cfg.Session.IdleTimeoutSecs != 600 {
		t.Errorf("idle_timeout_secs = %d, want 600", cfg.Session.IdleTimeoutSecs)
	}
	if cfg.Transfer.ExchangeRate != 131.20 {
		t.Errorf("exchange_rate = %v, want 131.20", cfg.Transfer.ExchangeRate)
	}
	// Missing sections fall back to defaults.
	if cfg.Session.WarningSecs != 120 {
		t.Errorf("warning_secs = %d, want default 120", cfg.Session.WarningSecs)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("BIRRWIRE_API_URL", "https://override.example.com")
	t.Setenv("BIRRWIRE_RATE", "140.5")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.API.BaseURL != "https://override.example.com" {
		t.Errorf("base_url = %q", cfg.API.BaseURL)
	}
	if cfg.Transfer.ExchangeRate != 140.5 {
		t.Errorf("exchange_rate = %v, want 140.5", cfg.Transfer.ExchangeRate)
	}
}

// Global(), SetGlobal(), and ReloadGlobal() must be safe to call
// concurrently. Run with: go test -race ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()

		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}
