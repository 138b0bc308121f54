package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8000 {
		t.Errorf("Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Interaction.ListenTimeout != 10*time.Second {
		t.Errorf("ListenTimeout = %s, want 10s", cfg.Interaction.ListenTimeout)
	}
	if cfg.Interaction.PhraseLimit != 10*time.Second {
		t.Errorf("PhraseLimit = %s, want 10s", cfg.Interaction.PhraseLimit)
	}
	if cfg.Interaction.Duration != 0 {
		t.Errorf("Duration = %s, want 0 (unbounded)", cfg.Interaction.Duration)
	}
	if cfg.Interaction.GracePeriod != 5*time.Second {
		t.Errorf("GracePeriod = %s, want 5s", cfg.Interaction.GracePeriod)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9001
  allowed_origins:
    - https://assistant.example.com
interaction:
  listen_timeout: 3s
  grace_period: 1s
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9001 {
		t.Errorf("Port = %d, want 9001", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Interaction.ListenTimeout != 3*time.Second {
		t.Errorf("ListenTimeout = %s, want 3s", cfg.Interaction.ListenTimeout)
	}
	if cfg.Interaction.GracePeriod != time.Second {
		t.Errorf("GracePeriod = %s, want 1s", cfg.Interaction.GracePeriod)
	}
	// Untouched fields keep defaults.
	if cfg.Interaction.PhraseLimit != 10*time.Second {
		t.Errorf("PhraseLimit = %s, want default 10s", cfg.Interaction.PhraseLimit)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load of missing file should error")
	}
}

func TestAuthTokenFromEnvOnly(t *testing.T) {
	t.Setenv("GATEWAY_AUTH_TOKEN", "sekrit")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9002\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.AuthToken != "sekrit" {
		t.Errorf("AuthToken = %q, want value from env", cfg.Server.AuthToken)
	}
}
