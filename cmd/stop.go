// Package cmd implements CLI commands.
package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the dronenet-server daemon",
	Long: `Stop the dronenet-server daemon gracefully.

This sends SIGTERM to the daemon process named by its PID file. The
daemon stops the engine loop, removes its control socket, and exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStopCommand()
	},
}

func runStopCommand() error {
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

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}

	fmt.Printf("Sent SIGTERM to daemon (pid %d), waiting for shutdown...\n", pid)
	time.Sleep(500 * time.Millisecond)
	fmt.Println("Daemon stop requested.")
	return nil
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
