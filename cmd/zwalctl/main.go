// ============================================================================
// zwalfs Control Plane - Main Entry Point
// ============================================================================
//
// File: cmd/zwalctl/main.go
// Purpose: Application entry point and CLI initialization
//
// Responsibilities:
//   1. Version Management - Inject build info via ldflags
//   2. Panic Recovery - Catch unexpected panics gracefully
//   3. CLI Setup - Build and configure Cobra command interface
//   4. Error Handling - Unified command execution error handling
//
// Version Injection:
//   Variables injected at build time via -ldflags:
//   go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
//
// Usage:
//   ./zwalctl --help                         # Show help
//   ./zwalctl open --config configs/dev.yaml # Open backend, report zones
//   ./zwalctl write --file wal-0001.log --wal --data "..."
//   ./zwalctl read --file wal-0001.log --wal --offset 0 --length 64
//   ./zwalctl recover --file wal-0001.log --wal
//   ./zwalctl stat --file wal-0001.log --wal
// ============================================================================

package main

import (
	"fmt"
	"os"

	"github.com/zoneio/zwalfs/internal/cli"
)

var (
	version = "1.0.0"
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
