// Locate estimates transmitter positions from DF bearings or TDOA pairs of a
// measurement result, and archives measurement results.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roman-kulish/spectrum-locator/cmd/locate/app"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		cancel()
		os.Exit(1)
	}
}
