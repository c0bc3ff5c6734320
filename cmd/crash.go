// Package cmd implements CLI commands.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dronenet/server/internal/command"
)

var crashCmd = &cobra.Command{
	Use:   "crash",
	Short: "Stop the engine loop without tearing down the daemon process",
	Long: `Send a crash command to the running engine.

This stops the engine's run loop (spec'd fault-injection/test hook); it
does not remove the control socket or PID file. Prefer "stop" for a
normal graceful shutdown of the whole process.`,
	Run: func(cmd *cobra.Command, args []string) {
		runCrashCommand()
	},
}

func runCrashCommand() {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	resp, err := client.Crash(context.Background())
	if err != nil {
		exitWithError("failed to send crash command", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("crash failed: %s", resp.Error.Message), nil)
	}
	fmt.Println("Engine loop stopped.")
}
