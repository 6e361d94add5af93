package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("Empty Path Uses Defaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Coordinator.DrainInterval != time.Second {
			t.Errorf("Expected 1s drain interval, got %v", cfg.Coordinator.DrainInterval)
		}
		if cfg.Risk.ContextExpiry != 30*time.Minute {
			t.Errorf("Expected 30m context expiry, got %v", cfg.Risk.ContextExpiry)
		}
	})

	t.Run("File Overlays Defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "environment: production\ncoordinator:\n  drain_batch: 25\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Environment != "production" {
			t.Errorf("Expected production, got %s", cfg.Environment)
		}
		if cfg.Coordinator.DrainBatch != 25 {
			t.Errorf("Expected drain batch 25, got %d", cfg.Coordinator.DrainBatch)
		}
		// Untouched fields keep their defaults.
		if cfg.Redis.Address != "localhost:6379" {
			t.Errorf("Expected default redis address, got %s", cfg.Redis.Address)
		}
	})

	t.Run("Missing File Is Not An Error", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
			t.Errorf("Expected missing file tolerated, got %v", err)
		}
	})

	t.Run("Malformed File Fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("environment: [unclosed"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Error("Expected parse error")
		}
	})

	t.Run("Environment Overrides File", func(t *testing.T) {
		t.Setenv("COLLECTFLOW_REDIS_ADDRESS", "redis.internal:6380")

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Redis.Address != "redis.internal:6380" {
			t.Errorf("Expected env override, got %s", cfg.Redis.Address)
		}
	})
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config must validate: %v", err)
	}

	cfg.Coordinator.DrainBatch = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for zero drain batch")
	}
}
