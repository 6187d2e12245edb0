package main

import (
	"fmt"
	"os"

	"github.com/marmos91/emstore/cmd/emstore/commands"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/emstore/pkg/metrics/prometheus"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
