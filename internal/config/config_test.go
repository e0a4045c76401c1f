package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Port)
	}
	if cfg.Storage != "postgres" {
		t.Errorf("Storage = %s, want postgres", cfg.Storage)
	}
	if cfg.PollInterval != 3*time.Second {
		t.Errorf("PollInterval = %s, want 3s", cfg.PollInterval)
	}
}

func TestLoadMissingFileIsSkipped(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Errorf("Load with missing file failed: %v", err)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("port: \"9090\"\nstorage: memory\ndatabase:\n  host: db.internal\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %s, want 9090", cfg.Port)
	}
	if cfg.Storage != "memory" {
		t.Errorf("Storage = %s, want memory", cfg.Storage)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("Database.Host = %s, want db.internal", cfg.Database.Host)
	}
	// Untouched fields keep their defaults
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want 5432", cfg.Database.Port)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: \"9090\"\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("PORT", "7070")
	t.Setenv("STORAGE", "memory")
	t.Setenv("PG_LISTENER", "true")
	t.Setenv("POLL_INTERVAL", "500ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("Port = %s, want 7070 (env over file)", cfg.Port)
	}
	if cfg.Storage != "memory" {
		t.Errorf("Storage = %s, want memory", cfg.Storage)
	}
	if !cfg.PGListener {
		t.Error("PGListener = false, want true")
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %s, want 500ms", cfg.PollInterval)
	}
}

func TestLoadRejectsUnknownStorage(t *testing.T) {
	t.Setenv("STORAGE", "cassandra")
	if _, err := Load(""); err == nil {
		t.Error("Expected error for unknown storage driver")
	}
}
