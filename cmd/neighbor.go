// Package cmd implements CLI commands.
package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/dronenet/server/internal/command"
)

var addNeighborCmd = &cobra.Command{
	Use:   "add-neighbor <neighbor-id>",
	Short: "Register a neighbor id with the running engine",
	Long: `Register a neighbor node id with the running daemon's engine.

The id is added to the engine's neighbor table with no frame transport,
replacing any transport already installed for it, so frames the engine
addresses to this neighbor (including flood probes) are dropped. The
topology is not changed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runAddNeighborCommand(args[0])
	},
}

var removeNeighborCmd = &cobra.Command{
	Use:   "remove-neighbor <neighbor-id>",
	Short: "Remove a neighbor from the topology",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRemoveNeighborCommand(args[0])
	},
}

func runAddNeighborCommand(idArg string) {
	id, err := parseNeighborID(idArg)
	if err != nil {
		exitWithError("invalid neighbor id", err)
	}

	client := command.NewUDSClient(socketPath, 10*time.Second)
	resp, err := client.AddNeighbor(context.Background(), id)
	if err != nil {
		exitWithError("failed to send add-neighbor command", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("add_neighbor failed: %s", resp.Error.Message), nil)
	}
	fmt.Printf("Neighbor %d registered.\n", id)
}

func runRemoveNeighborCommand(idArg string) {
	id, err := parseNeighborID(idArg)
	if err != nil {
		exitWithError("invalid neighbor id", err)
	}

	client := command.NewUDSClient(socketPath, 10*time.Second)
	resp, err := client.RemoveNeighbor(context.Background(), id)
	if err != nil {
		exitWithError("failed to send remove-neighbor command", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("remove_neighbor failed: %s", resp.Error.Message), nil)
	}
	fmt.Printf("Neighbor %d removed.\n", id)
}

func parseNeighborID(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, err
	}
	return uint8(n), nil
}
