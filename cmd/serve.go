// Package cmd implements CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dronenet/server/internal/daemon"
)

// serveCmd runs the daemon in the foreground.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dronenet-server daemon in the foreground",
	Long: `Run the server endpoint daemon in the foreground.

The daemon will:
  1. Load configuration from the config file
  2. Initialize logging and metrics
  3. Build the application behavior and the topology/routing engine
  4. Start the Unix Domain Socket control server
  5. Handle signals for graceful shutdown (SIGTERM, SIGINT) and reload (SIGHUP)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var pidFile string

func init() {
	serveCmd.Flags().StringVarP(&pidFile, "pidfile", "p", "",
		"PID file path (defaults to the config file's control.pid_file)")
}

func runServe() error {
	d, err := daemon.New(configFile, socketPath, pidFile)
	if err != nil {
		return fmt.Errorf("failed to initialize daemon: %w", err)
	}

	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	if err := d.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "daemon exited with error: %v\n", err)
		os.Exit(1)
	}
	return nil
}
