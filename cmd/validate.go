// Package cmd implements CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dronenet/server/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a server configuration file",
	Long: `Validate a server configuration file without starting the daemon.

Checks node kind, neighbor kinds, log level/format, and behavior name,
applying the same defaults the daemon would at startup.

Examples:
  dronenet-server validate -c config.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		runValidateCommand()
	},
}

func runValidateCommand() {
	if configFile == "" {
		exitWithError("no config file given (-c)", nil)
	}
	if _, err := os.Stat(configFile); err != nil {
		exitWithError(fmt.Sprintf("cannot read %s", configFile), err)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("VALID: node %d (%s), %d neighbor(s), behavior %q\n",
		cfg.Node.ID, cfg.Node.Kind, len(cfg.Neighbors), cfg.Behavior.Name)
}
