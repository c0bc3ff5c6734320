package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dronenet/server/pkg/wire"
)

func writeTmpConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestLoadValidConfigAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeTmpConfig(t, `
server:
  node:
    id: 3
    kind: "server"
  behavior:
    name: "chat"
  neighbors:
    - id: 1
      kind: "drone"
    - id: 2
      kind: "drone"
`))
	require.NoError(t, err)

	assert.EqualValues(t, 3, cfg.Node.ID)
	assert.Equal(t, "server", cfg.Node.Kind)
	assert.Equal(t, "chat", cfg.Behavior.Name)
	assert.Len(t, cfg.Neighbors, 2)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9091", cfg.Metrics.Listen)
	assert.Equal(t, "/var/run/dronenet-server.sock", cfg.Control.Socket)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	_, err := Load(writeTmpConfig(t, `
server:
  node:
    id: 1
    kind: "drone"
  log:
    level: "verbose"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestLoadRejectsUnknownNodeKind(t *testing.T) {
	_, err := Load(writeTmpConfig(t, `
server:
  node:
    id: 1
    kind: "router"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node.kind")
}

func TestLoadRejectsUnknownBehaviorName(t *testing.T) {
	_, err := Load(writeTmpConfig(t, `
server:
  node:
    id: 1
    kind: "server"
  behavior:
    name: "video"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "behavior.name")
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestParseNodeKind(t *testing.T) {
	k, err := ParseNodeKind("Drone")
	require.NoError(t, err)
	assert.Equal(t, wire.Drone, k)

	_, err = ParseNodeKind("bogus")
	assert.Error(t, err)
}
