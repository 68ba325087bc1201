// ============================================================================
// Bulu Runtime CLI Entrypoint
// ============================================================================
//
// File: cmd/bulu-runtime/main.go
// Purpose: Process entrypoint: panic recovery, version injection, and
// command execution, adapted one-to-one from the donor repository's
// cmd/queue/main.go.
//
// ============================================================================

package main

import (
	"fmt"
	"os"

	"github.com/bulu-lang/bulu-runtime/internal/cli"
)

// Build-time version injection via ldflags, e.g.
// go build -ldflags "-X main.version=0.2.0"
var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", r)
			os.Exit(1)
		}
	}()

	rootCmd := cli.BuildCLI()
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
