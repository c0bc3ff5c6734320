// Package main is the entry point for the dronenet-server overlay network
// endpoint.
package main

import (
	"fmt"
	"os"

	"github.com/dronenet/server/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
