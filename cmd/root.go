// Package cmd implements the dronenet-server CLI using the cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	socketPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dronenet-server",
	Short: "dronenet-server - overlay network server endpoint",
	Long: `dronenet-server runs one server endpoint of the overlay network:
topology discovery, drop-weighted routing, fragmentation/reassembly, and
flood-based neighbor announcements, dispatching reassembled application
payloads to a pluggable behavior.

The "serve" subcommand runs the daemon in the foreground. All other
subcommands are a thin client talking to a running daemon over its
Unix Domain Socket control plane.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(); it only needs to happen
// once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/dronenet-server/config.yml",
		"config file path")
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "/var/run/dronenet-server.sock",
		"daemon control socket path")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(addNeighborCmd)
	rootCmd.AddCommand(removeNeighborCmd)
	rootCmd.AddCommand(setContentPathCmd)
	rootCmd.AddCommand(crashCmd)
	rootCmd.AddCommand(validateCmd)
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
