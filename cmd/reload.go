// Package cmd implements CLI commands.
package cmd

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
)

// reloadCmd represents the reload command
var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload the dronenet-server daemon configuration",
	Long: `Reload the configuration of a running dronenet-server daemon.

This sends SIGHUP to the daemon process named by its PID file. Log
level and format are applied immediately; changes to node.id or
behavior.name are logged but require a restart to take effect.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReloadCommand()
	},
}

func runReloadCommand() error {
	path := pidFile
	if path == "" {
		path = "/var/run/dronenet-server.pid"
	}

	pid, err := readPIDFile(path)
	if err != nil {
		return fmt.Errorf("daemon not running (could not read %s): %w", path, err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to locate process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGHUP); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}

	fmt.Printf("Sent reload signal to daemon (pid %d).\n", pid)
	return nil
}
