package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDaemon_ReloadLogLevel(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeTestConfig(t, tmpDir, "info")
	socketPath := filepath.Join(tmpDir, "dronenet-server.sock")
	pidFile := filepath.Join(tmpDir, "dronenet-server.pid")

	d, err := New(configPath, socketPath, pidFile)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	if d.config.Log.Level != "info" {
		t.Fatalf("expected initial level info, got %s", d.config.Log.Level)
	}

	writeTestConfig(t, tmpDir, "debug")

	if err := d.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if d.config.Log.Level != "debug" {
		t.Fatalf("expected level debug after reload, got %s", d.config.Log.Level)
	}
}

func TestDaemon_ReloadRejectsInvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeTestConfig(t, tmpDir, "info")
	socketPath := filepath.Join(tmpDir, "dronenet-server.sock")
	pidFile := filepath.Join(tmpDir, "dronenet-server.pid")

	d, err := New(configPath, socketPath, pidFile)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	if err := os.WriteFile(configPath, []byte("server:\n  log:\n    level: not-a-level\n"), 0644); err != nil {
		t.Fatalf("write bad config: %v", err)
	}

	if err := d.Reload(); err == nil {
		t.Fatal("expected reload to fail on invalid config")
	}

	// The daemon keeps running on its last-known-good config.
	if d.config.Log.Level != "info" {
		t.Fatalf("expected config to remain at info after failed reload, got %s", d.config.Log.Level)
	}
}

func TestDaemon_ReloadFlagsColdFields(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeTestConfig(t, tmpDir, "info")
	socketPath := filepath.Join(tmpDir, "dronenet-server.sock")
	pidFile := filepath.Join(tmpDir, "dronenet-server.pid")

	d, err := New(configPath, socketPath, pidFile)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	content := `
server:
  node:
    id: 2
    kind: server
  control:
    socket: ` + socketPath + `
    pid_file: ` + pidFile + `
  log:
    level: info
    format: text
  metrics:
    enabled: false
  behavior:
    name: text
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("write new config: %v", err)
	}

	// Reload succeeds even though node.id/behavior.name changed; it only
	// logs that those fields require a restart to take effect.
	if err := d.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if d.config.Node.ID != 2 {
		t.Fatalf("expected config to reflect reloaded node.id, got %d", d.config.Node.ID)
	}

	// Regression: Reload must diff the new config against the
	// pre-reload config, not against itself. Both node.id (1 -> 2) and
	// behavior.name (chat -> text) changed, so both must be flagged.
	wantCold := map[string]bool{"node.id": false, "behavior.name": false}
	for _, field := range d.LastReloadRequiresRestart {
		if _, ok := wantCold[field]; !ok {
			t.Fatalf("unexpected cold field %q in %v", field, d.LastReloadRequiresRestart)
		}
		wantCold[field] = true
	}
	for field, seen := range wantCold {
		if !seen {
			t.Fatalf("expected %q in requires_restart, got %v", field, d.LastReloadRequiresRestart)
		}
	}
}

func TestDaemon_ReloadFlagsNodeIDChangeOnly(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeTestConfig(t, tmpDir, "info")
	socketPath := filepath.Join(tmpDir, "dronenet-server.sock")
	pidFile := filepath.Join(tmpDir, "dronenet-server.pid")

	d, err := New(configPath, socketPath, pidFile)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	// Only node.id changes; behavior.name stays "chat" as in writeTestConfig.
	content := `
server:
  node:
    id: 9
    kind: server
  control:
    socket: ` + socketPath + `
    pid_file: ` + pidFile + `
  log:
    level: info
    format: text
  metrics:
    enabled: false
  behavior:
    name: chat
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("write new config: %v", err)
	}

	if err := d.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if len(d.LastReloadRequiresRestart) != 1 || d.LastReloadRequiresRestart[0] != "node.id" {
		t.Fatalf("expected requires_restart == [node.id], got %v", d.LastReloadRequiresRestart)
	}
}
