// Package cmd implements CLI commands.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dronenet/server/internal/command"
)

var setContentPathCmd = &cobra.Command{
	Use:   "set-content-path <path>",
	Short: "Point the running behavior at a new content path",
	Long: `Tell the daemon's application behavior to load content from a new
path (e.g. a media library directory or a text corpus file). The
behavior validates the path and rejects it if unusable.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSetContentPathCommand(args[0])
	},
}

func runSetContentPathCommand(path string) {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	resp, err := client.SetContentPath(context.Background(), path)
	if err != nil {
		exitWithError("failed to send set-content-path command", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("set_content_path failed: %s", resp.Error.Message), nil)
	}
	fmt.Printf("Content path set to %q.\n", path)
}
