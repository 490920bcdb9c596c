package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[installation]
firecracker_path = "/usr/bin/firecracker"
jailer_path = "/usr/bin/jailer"
snapshot_editor_path = "/usr/bin/snapshot-editor"
expected_version = "1.7.0"

[ownership]
kind = "upgraded"
uid = 123
gid = 123

[shutdown]
methods = ["ctrl_alt_del", "kill"]
timeout_each = "15s"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Installation.FirecrackerPath != "/usr/bin/firecracker" {
		t.Fatalf("unexpected firecracker path: %q", cfg.Installation.FirecrackerPath)
	}
	if cfg.Ownership.Kind != "upgraded" || cfg.Ownership.UID != 123 {
		t.Fatalf("unexpected ownership: %+v", cfg.Ownership)
	}
	if cfg.Shutdown.TimeoutEach != 15*time.Second {
		t.Fatalf("unexpected shutdown timeout: %v", cfg.Shutdown.TimeoutEach)
	}
	// Default's API socket budget survives when the file doesn't override it.
	if cfg.APISocket.TotalBudget != 10*time.Second {
		t.Fatalf("expected default api socket budget to survive, got %v", cfg.APISocket.TotalBudget)
	}
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	cfg := Default()
	t.Setenv("FCSDK_FIRECRACKER_PATH", "/opt/firecracker")
	t.Setenv("FCSDK_OWNERSHIP_UID", "555")
	t.Setenv("FCSDK_SHUTDOWN_TIMEOUT_EACH", "45s")

	LoadFromEnv(cfg)

	if cfg.Installation.FirecrackerPath != "/opt/firecracker" {
		t.Fatalf("unexpected firecracker path: %q", cfg.Installation.FirecrackerPath)
	}
	if cfg.Ownership.UID != 555 {
		t.Fatalf("unexpected uid: %d", cfg.Ownership.UID)
	}
	if cfg.Shutdown.TimeoutEach != 45*time.Second {
		t.Fatalf("unexpected shutdown timeout: %v", cfg.Shutdown.TimeoutEach)
	}
}
