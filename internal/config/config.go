// Package config handles the engine's static configuration loading using
// viper. Grounded on the teacher's internal/config/config.go: a wrapper
// struct for the YAML root key, mapstructure-tagged nested sections,
// SetDefault-driven defaults, and a post-unmarshal ValidateAndApplyDefaults
// pass.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/dronenet/server/pkg/wire"
)

// EngineConfig is the top-level static configuration. Maps to the
// `server:` root key in YAML.
type EngineConfig struct {
	Node      NodeConfig       `mapstructure:"node"`
	Control   ControlConfig    `mapstructure:"control"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Log       LogConfig        `mapstructure:"log"`
	Behavior  BehaviorConfig   `mapstructure:"behavior"`
	Neighbors []NeighborConfig `mapstructure:"neighbors"`
}

// ─── Node Identity ───

// NodeConfig identifies this node within the overlay.
type NodeConfig struct {
	ID   uint8  `mapstructure:"id"`
	Kind string `mapstructure:"kind"` // client | drone | server
}

// ─── Control Plane ───

// ControlConfig contains local control-plane settings.
type ControlConfig struct {
	Socket  string `mapstructure:"socket"`
	PIDFile string `mapstructure:"pid_file"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string         `mapstructure:"level"`  // debug / info / warn / error
	Format  string         `mapstructure:"format"` // json / text
	Outputs []OutputConfig `mapstructure:"outputs"`
}

// OutputConfig configures one log output destination.
type OutputConfig struct {
	Type string `mapstructure:"type"` // console | file | loki

	// file
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`

	// loki
	Endpoint      string            `mapstructure:"endpoint"`
	Labels        map[string]string `mapstructure:"labels"`
	BatchSize     int               `mapstructure:"batch_size"`
	FlushInterval string            `mapstructure:"flush_interval"`
}

// ─── Behavior ───

// BehaviorConfig selects and configures the application behavior adapter
// this server node runs (spec.md §4.7).
type BehaviorConfig struct {
	Name        string `mapstructure:"name"` // chat | text | media
	ContentPath string `mapstructure:"content_path"`
}

// ─── Neighbors ───

// NeighborConfig describes one statically configured overlay neighbor.
type NeighborConfig struct {
	ID   uint8  `mapstructure:"id"`
	Kind string `mapstructure:"kind"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure
// `server: ...`.
type configRoot struct {
	Server EngineConfig `mapstructure:"server"`
}

// Load reads configuration from path, applies defaults, and validates the
// result. Env vars with prefix SERVER_ override file values, e.g.
// SERVER_LOG_LEVEL overrides server.log.level.
func Load(path string) (*EngineConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Server

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.control.socket", "/var/run/dronenet-server.sock")
	v.SetDefault("server.control.pid_file", "/var/run/dronenet-server.pid")

	v.SetDefault("server.log.level", "info")
	v.SetDefault("server.log.format", "json")

	v.SetDefault("server.metrics.enabled", true)
	v.SetDefault("server.metrics.listen", ":9091")
	v.SetDefault("server.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates the unmarshaled configuration and
// derives any runtime-only defaults.
func (cfg *EngineConfig) ValidateAndApplyDefaults() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json/text)", cfg.Log.Format)
	}

	if _, err := ParseNodeKind(cfg.Node.Kind); err != nil {
		return fmt.Errorf("invalid node.kind: %w", err)
	}

	for i, n := range cfg.Neighbors {
		if _, err := ParseNodeKind(n.Kind); err != nil {
			return fmt.Errorf("invalid neighbors[%d].kind: %w", i, err)
		}
	}

	if cfg.Behavior.Name != "" {
		switch cfg.Behavior.Name {
		case "chat", "text", "media":
		default:
			return fmt.Errorf("unknown behavior.name: %s", cfg.Behavior.Name)
		}
	}

	return nil
}

// ParseNodeKind converts a config string into a wire.NodeKind.
func ParseNodeKind(s string) (wire.NodeKind, error) {
	switch strings.ToLower(s) {
	case "client":
		return wire.Client, nil
	case "drone":
		return wire.Drone, nil
	case "server":
		return wire.Server, nil
	default:
		return 0, fmt.Errorf("unrecognized node kind %q (must be client/drone/server)", s)
	}
}
