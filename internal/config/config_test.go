package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.DatabaseURL == "" {
		t.Error("expected a default database URL")
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Port)
	}
	if cfg.ReadTimeout != 5*time.Second {
		t.Errorf("read timeout = %v, want 5s", cfg.ReadTimeout)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example/db")
	t.Setenv("PORT", "9090")
	t.Setenv("READ_TIMEOUT", "250ms")

	cfg := Load()

	if cfg.DatabaseURL != "postgres://example/db" {
		t.Errorf("database URL = %q", cfg.DatabaseURL)
	}
	if cfg.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.Port)
	}
	if cfg.ReadTimeout != 250*time.Millisecond {
		t.Errorf("read timeout = %v, want 250ms", cfg.ReadTimeout)
	}
}

func TestLoadBadDuration(t *testing.T) {
	t.Setenv("READ_TIMEOUT", "not-a-duration")

	cfg := Load()

	if cfg.ReadTimeout != 5*time.Second {
		t.Errorf("read timeout = %v, want the 5s default", cfg.ReadTimeout)
	}
}
