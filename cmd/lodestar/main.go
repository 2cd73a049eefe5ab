// Command lodestar is the CLI for the lodestar retrieval engine.
package main

import (
	"fmt"
	"os"

	"github.com/lodestar-search/lodestar/cmd/lodestar/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
