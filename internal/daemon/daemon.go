// Package daemon wires one internal/engine.Engine, its control-plane UDS
// server, and its metrics server into a single process lifecycle: config
// load, PID file, signal handling, graceful shutdown, and SIGHUP reload.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dronenet/server/internal/command"
	"github.com/dronenet/server/internal/config"
	"github.com/dronenet/server/internal/engine"
	logpkg "github.com/dronenet/server/internal/log"
	"github.com/dronenet/server/internal/metrics"
	"github.com/dronenet/server/pkg/behavior"
	"github.com/dronenet/server/pkg/wire"

	_ "github.com/dronenet/server/behaviors"
)

// Daemon manages the server endpoint process lifecycle.
type Daemon struct {
	config     *config.EngineConfig
	configPath string
	socketPath string
	pidFile    string

	engine        *engine.Engine
	cmdHandler    *command.CommandHandler
	udsServer     *command.UDSServer
	metricsServer *metrics.Server

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownChan chan struct{}
	sigChan      chan os.Signal

	// LastReloadRequiresRestart names the cold-reload fields (see Reload)
	// that changed on the most recent Reload call, for callers (and tests)
	// that need more than Reload's log line to tell whether a restart is
	// actually owed.
	LastReloadRequiresRestart []string
}

// New loads configPath and builds an unstarted Daemon. socketPath/pidFile,
// when empty, fall back to the loaded config's control.socket/pid_file.
func New(configPath, socketPath, pidFile string) (*Daemon, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if socketPath == "" {
		socketPath = cfg.Control.Socket
	}
	if pidFile == "" {
		pidFile = cfg.Control.PIDFile
	}

	d := &Daemon{
		config:       cfg,
		configPath:   configPath,
		socketPath:   socketPath,
		pidFile:      pidFile,
		shutdownChan: make(chan struct{}),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())

	return d, nil
}

// Start initializes logging, the engine, and all control/observability
// surfaces.
func (d *Daemon) Start() error {
	if err := d.initLogging(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	slog.Info("starting dronenet server endpoint",
		"self", d.config.Node.ID,
		"config", d.configPath,
		"socket", d.socketPath,
	)

	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	if err := d.startMetrics(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	b, err := behavior.New(d.config.Behavior.Name)
	if err != nil {
		return fmt.Errorf("failed to build behavior %q: %w", d.config.Behavior.Name, err)
	}
	if d.config.Behavior.ContentPath != "" {
		if err := b.SetPath(d.config.Behavior.ContentPath); err != nil {
			slog.Warn("initial content path rejected by behavior", "path", d.config.Behavior.ContentPath, "error", err)
		}
	}

	d.engine = engine.New(engine.Config{Self: wire.NodeID(d.config.Node.ID), Behavior: b})
	go d.engine.Run(d.ctx)

	for _, n := range d.config.Neighbors {
		slog.Warn("neighbor listed in config but not wired: frame transport is out of process scope, "+
			"register it at runtime via the transport layer's AddNeighbor call",
			"neighbor_id", n.ID, "kind", n.Kind)
	}

	d.cmdHandler = command.NewCommandHandler(d.engine)
	d.udsServer = command.NewUDSServer(d.socketPath, d.cmdHandler, wire.NodeID(d.config.Node.ID))
	go func() {
		if err := d.udsServer.Start(d.ctx); err != nil && err != context.Canceled {
			slog.Error("uds server failed", "error", err)
		}
	}()

	slog.Info("daemon started successfully")
	return nil
}

// Stop performs graceful shutdown of all daemon components.
func (d *Daemon) Stop() {
	slog.Info("initiating graceful shutdown")

	slog.Info("stopping uds server")
	d.udsServer.Stop()

	slog.Info("crashing engine loop")
	done := make(chan error, 1)
	select {
	case d.engine.Commands() <- wire.Command{Kind: wire.CmdCrash, Done: done}:
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	case <-time.After(time.Second):
		slog.Warn("engine command channel full, crash not acknowledged")
	}

	if d.metricsServer != nil {
		slog.Info("stopping metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.metricsServer.Stop(shutdownCtx); err != nil {
			slog.Error("error stopping metrics server", "error", err)
		}
	}

	d.cancel()

	if d.sigChan != nil {
		signal.Stop(d.sigChan)
	}

	if err := d.removePIDFile(); err != nil {
		slog.Error("error removing PID file", "error", err)
	}

	slog.Info("daemon stopped gracefully")
}

// Run blocks until shutdown is triggered by an OS signal (SIGTERM/SIGINT),
// a TriggerShutdown call, or context cancellation. SIGHUP triggers a configuration reload.
func (d *Daemon) Run() error {
	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	slog.Info("daemon running, waiting for signals or commands")

	for {
		select {
		case sig := <-d.sigChan:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				slog.Info("received shutdown signal", "signal", sig)
				d.Stop()
				return nil
			case syscall.SIGHUP:
				slog.Info("received reload signal")
				if err := d.Reload(); err != nil {
					slog.Error("failed to reload config", "error", err)
				} else {
					slog.Info("configuration reloaded successfully")
				}
			}

		case <-d.shutdownChan:
			slog.Info("shutdown triggered by command")
			d.Stop()
			return nil

		case <-d.ctx.Done():
			slog.Info("context cancelled", "error", d.ctx.Err())
			d.Stop()
			return d.ctx.Err()
		}
	}
}

// Reload re-reads configPath. Hot-reloadable: log level/format. Changes to
// node.id and behavior.name are not applied and are reported in
// LastReloadRequiresRestart. Other fields, such as neighbors, are stored in
// the new config but neither applied to the running engine nor reported.
func (d *Daemon) Reload() error {
	slog.Info("reloading configuration", "path", d.configPath)

	newConfig, err := config.Load(d.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}

	oldLevel, oldFormat := d.config.Log.Level, d.config.Log.Format
	oldNodeID, oldBehaviorName := d.config.Node.ID, d.config.Behavior.Name
	d.config = newConfig

	var hotReloaded []string
	if newConfig.Log.Level != oldLevel || newConfig.Log.Format != oldFormat {
		if err := d.initLogging(); err != nil {
			slog.Error("failed to reinitialize logging", "error", err)
		} else {
			hotReloaded = append(hotReloaded, "log")
		}
	}

	var requiresRestart []string
	if newConfig.Node.ID != oldNodeID {
		requiresRestart = append(requiresRestart, "node.id")
	}
	if newConfig.Behavior.Name != oldBehaviorName {
		requiresRestart = append(requiresRestart, "behavior.name")
	}
	d.LastReloadRequiresRestart = requiresRestart

	slog.Info("configuration reloaded", "hot_reloaded", hotReloaded, "requires_restart", requiresRestart)
	return nil
}

// TriggerShutdown triggers graceful shutdown from an external caller. The
// control plane's "crash" method does not call it: that method stops only
// the engine loop.
func (d *Daemon) TriggerShutdown() {
	select {
	case d.shutdownChan <- struct{}{}:
	default:
	}
}

func (d *Daemon) initLogging() error {
	if err := logpkg.Init(d.config.Log, wire.NodeID(d.config.Node.ID)); err != nil {
		return err
	}
	slog.Debug("logging initialized", "level", d.config.Log.Level, "format", d.config.Log.Format)
	return nil
}

func (d *Daemon) startMetrics() error {
	if !d.config.Metrics.Enabled {
		slog.Info("metrics server disabled")
		return nil
	}

	d.metricsServer = metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path)
	if err := d.metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	slog.Info("metrics server started", "addr", d.config.Metrics.Listen, "path", d.config.Metrics.Path)
	return nil
}

func (d *Daemon) writePIDFile() error {
	if d.pidFile == "" {
		return nil
	}
	pid := os.Getpid()
	if err := os.WriteFile(d.pidFile, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write PID file %s: %w", d.pidFile, err)
	}
	slog.Debug("PID file written", "path", d.pidFile, "pid", pid)
	return nil
}

func (d *Daemon) removePIDFile() error {
	if d.pidFile == "" {
		return nil
	}
	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file %s: %w", d.pidFile, err)
	}
	slog.Debug("PID file removed", "path", d.pidFile)
	return nil
}
