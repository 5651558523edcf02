package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestEmbeddedDefaultsMatchHardcoded(t *testing.T) {
	var cfg ServerConfig
	if err := yaml.Unmarshal(defaultServerYAML, &cfg); err != nil {
		t.Fatalf("embedded defaults do not parse: %v", err)
	}
	if cfg != DefaultServerConfig() {
		t.Errorf("embedded defaults = %+v, want %+v", cfg, DefaultServerConfig())
	}
}

func TestDefaultServerConfigIsValid(t *testing.T) {
	if err := DefaultServerConfig().Validate(); err != nil {
		t.Errorf("DefaultServerConfig().Validate() = %v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	data := []byte("listen:\n  port: 3000\ngame:\n  ai_interval: 250ms\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen.Port != 3000 {
		t.Errorf("Listen.Port = %d, want 3000", cfg.Listen.Port)
	}
	if cfg.Game.AIInterval != 250*time.Millisecond {
		t.Errorf("Game.AIInterval = %v, want 250ms", cfg.Game.AIInterval)
	}
	// Untouched settings keep their defaults.
	if cfg.Listen.Address != "0.0.0.0" {
		t.Errorf("Listen.Address = %q, want 0.0.0.0", cfg.Listen.Address)
	}
	if cfg.Game.BoardWidth != 10 || cfg.Game.Categories != 5 {
		t.Errorf("Game = %+v, want defaults", cfg.Game)
	}
}

func TestLoadCustomPathErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load(missing) error = nil, want error")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("listen: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("Load(bad yaml) error = nil, want error")
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg != DefaultServerConfig() {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoadLocalConfigsDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.MkdirAll("configs", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join("configs", "server.yaml"), []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*ServerConfig)
		ok     bool
	}{
		{"defaults", func(*ServerConfig) {}, true},
		{"port zero picks any", func(c *ServerConfig) { c.Listen.Port = 0 }, true},
		{"port too large", func(c *ServerConfig) { c.Listen.Port = 70000 }, false},
		{"no poll interval", func(c *ServerConfig) { c.Listen.PollInterval = 0 }, false},
		{"zero width", func(c *ServerConfig) { c.Game.BoardWidth = 0 }, false},
		{"board too large", func(c *ServerConfig) { c.Game.BoardWidth, c.Game.BoardHeight = 100, 100 }, false},
		{"no categories", func(c *ServerConfig) { c.Game.Categories = 0 }, false},
		{"too many categories", func(c *ServerConfig) { c.Game.Categories = 11 }, false},
		{"no ai interval", func(c *ServerConfig) { c.Game.AIInterval = 0 }, false},
		{"no workers", func(c *ServerConfig) { c.Accounts.Workers = 0 }, false},
		{"no backlog", func(c *ServerConfig) { c.Accounts.Backlog = 0 }, false},
		{"bad log level", func(c *ServerConfig) { c.Log.Level = "loud" }, false},
		{"metrics without address", func(c *ServerConfig) {
			c.Metrics.Enabled = true
			c.Metrics.Address = ""
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok {
				if err == nil {
					t.Error("Validate() = nil, want error")
				} else if !errors.Is(err, ErrInvalid) {
					t.Errorf("Validate() = %v, want ErrInvalid", err)
				}
			}
		})
	}
}

func TestListenAddr(t *testing.T) {
	l := ListenConfig{Address: "127.0.0.1", Port: 20678}
	if got := l.Addr(); got != "127.0.0.1:20678" {
		t.Errorf("Addr() = %q, want 127.0.0.1:20678", got)
	}
}
